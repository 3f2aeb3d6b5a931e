package nmealog

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"casic-ng/internal/casic"
)

type Summary struct {
	Segments    int
	Sentences   int
	Malformed   int
	BadChecksum int
	MaxDuration time.Duration
	IDCounts    map[string]int
	Antenna     map[casic.AntennaStatus]int
}

// Summarize counts sentences per identifier and the antenna reports found
// in GPTXT sentences.
func Summarize(records []Record) Summary {
	s := Summary{IDCounts: map[string]int{}, Antenna: map[casic.AntennaStatus]int{}}
	origin := time.Duration(0)
	segments := 0

	for _, r := range records {
		if r.Start {
			segments++
			origin = r.At
			continue
		}
		s.Sentences++
		if at := r.At - origin; at > s.MaxDuration {
			s.MaxDuration = at
		}

		id, ok := sentenceID(r.Sentence)
		if !ok {
			s.Malformed++
			continue
		}
		s.IDCounts[id]++

		if casic.Classify(r.Sentence) != casic.Txt {
			continue
		}
		msg, err := casic.Parse(r.Sentence)
		switch {
		case err == nil:
			s.Antenna[msg.Txt.AntennaStatus]++
		case errors.Is(err, casic.ErrChecksumMismatch):
			s.BadChecksum++
		default:
			s.Malformed++
		}
	}
	if segments == 0 && s.Sentences > 0 {
		segments = 1
	}
	s.Segments = segments
	return s
}

// sentenceID extracts the identifier between '$' and the first delimiter.
func sentenceID(s string) (string, bool) {
	if !strings.HasPrefix(s, "$") {
		return "", false
	}
	end := strings.IndexAny(s, ",*")
	if end == -1 {
		end = len(s)
	}
	id := s[1:end]
	if id == "" {
		return "", false
	}
	return id, true
}

func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "sentences: %d\n", s.Sentences)
	fmt.Fprintf(w, "malformed: %d\n", s.Malformed)
	fmt.Fprintf(w, "bad_checksum: %d\n", s.BadChecksum)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)

	ids := make([]string, 0, len(s.IDCounts))
	for k := range s.IDCounts {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	fmt.Fprintf(w, "id_counts:\n")
	for _, k := range ids {
		fmt.Fprintf(w, "  %s: %d\n", k, s.IDCounts[k])
	}

	fmt.Fprintf(w, "antenna:\n")
	for _, a := range []casic.AntennaStatus{casic.AntennaOK, casic.AntennaOpen, casic.AntennaShort, casic.AntennaUnknown} {
		if n := s.Antenna[a]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", a, n)
		}
	}
}
