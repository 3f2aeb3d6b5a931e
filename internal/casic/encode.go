package casic

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	baudRateID   = "PCAS01"
	updateRateID = "PCAS02"
	outputID     = "PCAS03"
	modeID       = "PCAS04"
	restartID    = "PCAS10"
)

// DefaultBaud is the line rate the receiver uses out of the factory.
const DefaultBaud = 38400

// Command is one outbound configuration sentence.
type Command interface {
	Sentence() string
}

// BaudRate selects the receiver UART speed (PCAS01). The wire value is the
// code, not the bit rate.
type BaudRate int

const (
	B4800   BaudRate = 0
	B9600   BaudRate = 1
	B19200  BaudRate = 2
	B38400  BaudRate = 3
	B57600  BaudRate = 4
	B115200 BaudRate = 5
)

var baudRateBps = [...]int{4800, 9600, 19200, 38400, 57600, 115200}

// BaudRateFor maps a bit rate to its PCAS01 code.
func BaudRateFor(bps int) (BaudRate, bool) {
	for i, v := range baudRateBps {
		if v == bps {
			return BaudRate(i), true
		}
	}
	return 0, false
}

func (b BaudRate) Valid() bool { return b >= B4800 && b <= B115200 }

// Bps returns the bit rate for b, or 0 when b is out of range.
func (b BaudRate) Bps() int {
	if !b.Valid() {
		return 0
	}
	return baudRateBps[b]
}

func (b BaudRate) String() string {
	if !b.Valid() {
		return fmt.Sprintf("BaudRate(%d)", int(b))
	}
	return strconv.Itoa(b.Bps())
}

func (b BaudRate) Sentence() string { return BaudRateSentence(b) }

// UpdateRate is the position fix interval in milliseconds (PCAS02).
type UpdateRate int

const (
	Hz1  UpdateRate = 1000
	Hz2  UpdateRate = 500
	Hz4  UpdateRate = 250
	Hz5  UpdateRate = 200
	Hz10 UpdateRate = 100
)

// UpdateRateFor maps a fix frequency in Hz to its interval.
func UpdateRateFor(hz int) (UpdateRate, bool) {
	switch hz {
	case 1:
		return Hz1, true
	case 2:
		return Hz2, true
	case 4:
		return Hz4, true
	case 5:
		return Hz5, true
	case 10:
		return Hz10, true
	default:
		return 0, false
	}
}

func (r UpdateRate) Valid() bool {
	switch r {
	case Hz1, Hz2, Hz4, Hz5, Hz10:
		return true
	}
	return false
}

func (r UpdateRate) String() string {
	if !r.Valid() {
		return fmt.Sprintf("UpdateRate(%d)", int(r))
	}
	return fmt.Sprintf("%dHz", 1000/int(r))
}

func (r UpdateRate) Sentence() string { return UpdateRateSentence(r) }

// OutputRates sets, per sentence type, how many fixes pass between two
// outputs (PCAS03). 0 disables the sentence; 1..9 are valid.
type OutputRates struct {
	GGA int
	GLL int
	GSA int
	GSV int
	RMC int
	VTG int
	ZDA int
	ANT int
	DHV int
	LPS int
	UTC int
	GST int
}

func (o OutputRates) fields() []int {
	return []int{o.GGA, o.GLL, o.GSA, o.GSV, o.RMC, o.VTG, o.ZDA, o.ANT, o.DHV, o.LPS, o.UTC, o.GST}
}

// Valid reports whether every rate is within 0..9.
func (o OutputRates) Valid() bool {
	for _, v := range o.fields() {
		if v < 0 || v > 9 {
			return false
		}
	}
	return true
}

func (o OutputRates) Sentence() string { return OutputRatesSentence(o) }

// Mode selects the constellations used for positioning (PCAS04). Values
// combine GPS=1, BDS=2 and GLONASS=4.
type Mode int

const (
	GPS           Mode = 1
	BDS           Mode = 2
	GPSBDS        Mode = 3
	GLONASS       Mode = 4
	GPSGLONASS    Mode = 5
	BDSGLONASS    Mode = 6
	GPSBDSGLONASS Mode = 7
)

func (m Mode) Valid() bool { return m >= GPS && m <= GPSBDSGLONASS }

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	var parts []string
	if m&GPS != 0 {
		parts = append(parts, "gps")
	}
	if m&BDS != 0 {
		parts = append(parts, "bds")
	}
	if m&GLONASS != 0 {
		parts = append(parts, "glonass")
	}
	return strings.Join(parts, "+")
}

// ParseMode accepts constellation names joined by '+', in any order and
// case, e.g. "gps+bds" or "GLONASS+GPS".
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("casic: empty mode")
	}
	var m Mode
	for _, p := range strings.Split(s, "+") {
		var bit Mode
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "gps":
			bit = GPS
		case "bds", "beidou":
			bit = BDS
		case "glonass", "glo":
			bit = GLONASS
		default:
			return 0, fmt.Errorf("casic: unknown constellation %q in mode %q", p, s)
		}
		if m&bit != 0 {
			return 0, fmt.Errorf("casic: duplicate constellation %q in mode %q", p, s)
		}
		m |= bit
	}
	return m, nil
}

func (m Mode) Sentence() string { return ModeSentence(m) }

// RestartType selects how much receiver state survives a restart (PCAS10).
type RestartType int

const (
	Hot         RestartType = 0
	Warm        RestartType = 1
	Cold        RestartType = 2
	FactoryBoot RestartType = 3
)

var restartNames = [...]string{"hot", "warm", "cold", "factory"}

func (r RestartType) Valid() bool { return r >= Hot && r <= FactoryBoot }

func (r RestartType) String() string {
	if !r.Valid() {
		return fmt.Sprintf("RestartType(%d)", int(r))
	}
	return restartNames[r]
}

// ParseRestartType accepts hot, warm, cold or factory.
func ParseRestartType(s string) (RestartType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range restartNames {
		if n == name {
			return RestartType(i), nil
		}
	}
	return 0, fmt.Errorf("casic: unknown restart type %q", s)
}

func (r RestartType) Sentence() string { return RestartSentence(r) }

// buildSentence frames id and fields as "$ID,f1,...,fn*HH".
func buildSentence(id string, fields ...int) string {
	var b strings.Builder
	b.Grow(MaxSentenceLength)
	b.WriteByte('$')
	b.WriteString(id)
	for _, f := range fields {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(f))
	}
	b.WriteByte('*')
	return WriteChecksum(b.String())
}

func BaudRateSentence(b BaudRate) string {
	return buildSentence(baudRateID, int(b))
}

func UpdateRateSentence(r UpdateRate) string {
	return buildSentence(updateRateID, int(r))
}

// OutputRatesSentence emits the twelve rates with the two reserved zero
// fields the receiver expects between LPS and UTC.
func OutputRatesSentence(o OutputRates) string {
	return buildSentence(outputID,
		o.GGA, o.GLL, o.GSA, o.GSV, o.RMC, o.VTG, o.ZDA, o.ANT, o.DHV, o.LPS,
		0, 0,
		o.UTC, o.GST)
}

func ModeSentence(m Mode) string {
	return buildSentence(modeID, int(m))
}

func RestartSentence(r RestartType) string {
	return buildSentence(restartID, int(r))
}
