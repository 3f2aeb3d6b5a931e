package main

import (
	"fmt"
	"strconv"
	"strings"

	"casic-ng/internal/casic"
)

// encodeCommand builds one sentence from a key=value argument.
func encodeCommand(arg string) (string, error) {
	key, val, ok := strings.Cut(strings.TrimSpace(arg), "=")
	if !ok {
		return "", fmt.Errorf("expected key=value, got %q", arg)
	}
	val = strings.TrimSpace(val)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "baud":
		n, err := strconv.Atoi(val)
		if err != nil {
			return "", fmt.Errorf("baud %q: %w", val, err)
		}
		b, ok := casic.BaudRateFor(n)
		if !ok {
			return "", fmt.Errorf("baud %d is not supported", n)
		}
		return casic.BaudRateSentence(b), nil
	case "rate":
		n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(val), "hz"))
		if err != nil {
			return "", fmt.Errorf("rate %q: %w", val, err)
		}
		r, ok := casic.UpdateRateFor(n)
		if !ok {
			return "", fmt.Errorf("rate %dHz is not supported", n)
		}
		return casic.UpdateRateSentence(r), nil
	case "mode":
		m, err := casic.ParseMode(val)
		if err != nil {
			return "", err
		}
		return casic.ModeSentence(m), nil
	case "restart":
		r, err := casic.ParseRestartType(val)
		if err != nil {
			return "", err
		}
		return casic.RestartSentence(r), nil
	case "output":
		o, err := parseOutputRates(val)
		if err != nil {
			return "", err
		}
		return casic.OutputRatesSentence(o), nil
	default:
		return "", fmt.Errorf("unknown command %q", key)
	}
}

// parseOutputRates reads the twelve rates in wire order without the
// reserved fields: GGA,GLL,GSA,GSV,RMC,VTG,ZDA,ANT,DHV,LPS,UTC,GST.
func parseOutputRates(val string) (casic.OutputRates, error) {
	parts := strings.Split(val, ",")
	if len(parts) != 12 {
		return casic.OutputRates{}, fmt.Errorf("output wants 12 rates, got %d", len(parts))
	}
	v := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return casic.OutputRates{}, fmt.Errorf("output rate %d: %w", i+1, err)
		}
		v[i] = n
	}
	o := casic.OutputRates{
		GGA: v[0], GLL: v[1], GSA: v[2], GSV: v[3], RMC: v[4], VTG: v[5],
		ZDA: v[6], ANT: v[7], DHV: v[8], LPS: v[9], UTC: v[10], GST: v[11],
	}
	if !o.Valid() {
		return casic.OutputRates{}, fmt.Errorf("output rates must be 0..9")
	}
	return o, nil
}

// describeSentence renders what the decoder makes of one sentence.
// Sentences that are not vendor types are reported, not rejected.
func describeSentence(s string) (string, error) {
	s = strings.TrimSpace(s)
	typ := casic.Classify(s)
	if typ == casic.None {
		return "type=none", nil
	}
	msg, err := casic.Parse(s)
	if err != nil {
		return "", fmt.Errorf("type=%s: %w", typ, err)
	}
	return fmt.Sprintf("type=%s antenna=%s", msg.Type, msg.Txt.AntennaStatus), nil
}
