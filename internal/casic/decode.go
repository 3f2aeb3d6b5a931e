package casic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const txtID = "GPTXT"

// maxTxtLength bounds the free-text field of a GPTXT sentence.
const maxTxtLength = 31

var (
	ErrUnrecognizedType  = errors.New("casic: unrecognized sentence type")
	ErrMalformedSentence = errors.New("casic: malformed sentence")
	ErrChecksumMismatch  = errors.New("casic: checksum mismatch")
)

// CustomMessageType identifies vendor sentences this package can parse.
type CustomMessageType int

const (
	None CustomMessageType = iota
	Txt
)

func (t CustomMessageType) String() string {
	switch t {
	case None:
		return "none"
	case Txt:
		return "txt"
	default:
		return fmt.Sprintf("CustomMessageType(%d)", int(t))
	}
}

type AntennaStatus int

const (
	AntennaUnknown AntennaStatus = iota
	AntennaOpen
	AntennaOK
	AntennaShort
)

func (a AntennaStatus) String() string {
	switch a {
	case AntennaOpen:
		return "open"
	case AntennaOK:
		return "ok"
	case AntennaShort:
		return "short"
	default:
		return "unknown"
	}
}

// antennaTexts are the literal GPTXT payloads reporting antenna state.
var antennaTexts = map[string]AntennaStatus{
	"ANTENNA OPEN":  AntennaOpen,
	"ANTENNA OK":    AntennaOK,
	"ANTENNA SHORT": AntennaShort,
}

type TxtMessage struct {
	AntennaStatus AntennaStatus
}

// CustomMessage holds one parsed vendor sentence. Only the field matching
// Type is meaningful.
type CustomMessage struct {
	Type CustomMessageType
	Txt  TxtMessage
}

// Classify reports which vendor sentence s is, by identifier prefix only.
// Anything else, including input without a leading '$', is None.
func Classify(s string) CustomMessageType {
	if strings.HasPrefix(s, "$"+txtID) {
		return Txt
	}
	return None
}

// Parse decodes a recognized vendor sentence. The returned error wraps
// ErrUnrecognizedType, ErrMalformedSentence or ErrChecksumMismatch.
func Parse(s string) (CustomMessage, error) {
	switch Classify(s) {
	case Txt:
		txt, err := parseTxt(s)
		if err != nil {
			return CustomMessage{}, err
		}
		return CustomMessage{Type: Txt, Txt: txt}, nil
	default:
		return CustomMessage{}, ErrUnrecognizedType
	}
}

// GPTXT: vendor text status
// Fields:
//
//	0: talker+type (GPTXT)
//	1: total sentences
//	2: sentence number
//	3: text identifier
//	4: text
//	5: checksum
func parseTxt(s string) (TxtMessage, error) {
	if len(s) > MaxSentenceLength {
		return TxtMessage{}, fmt.Errorf("%w: length %d exceeds %d", ErrMalformedSentence, len(s), MaxSentenceLength)
	}
	f := tokenize(s[1:])
	if len(f) != 6 {
		return TxtMessage{}, fmt.Errorf("%w: got %d fields want 6", ErrMalformedSentence, len(f))
	}
	if f[0] != txtID {
		return TxtMessage{}, fmt.Errorf("%w: identifier %q", ErrMalformedSentence, f[0])
	}
	text := f[4]
	if len(text) > maxTxtLength {
		return TxtMessage{}, fmt.Errorf("%w: text length %d exceeds %d", ErrMalformedSentence, len(text), maxTxtLength)
	}
	if len(f[5]) != 2 {
		return TxtMessage{}, fmt.Errorf("%w: checksum %q", ErrMalformedSentence, f[5])
	}
	claimed, err := strconv.ParseUint(f[5], 16, 8)
	if err != nil {
		return TxtMessage{}, fmt.Errorf("%w: checksum %q", ErrMalformedSentence, f[5])
	}
	if !VerifyChecksum(s, byte(claimed)) {
		return TxtMessage{}, ErrChecksumMismatch
	}
	return TxtMessage{AntennaStatus: antennaTexts[text]}, nil
}
