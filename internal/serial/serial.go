// Package serial opens the UART a receiver is attached to, in raw 8N1 mode.
package serial

import (
	"fmt"
	"io"
	"os"
	"strings"

	"casic-ng/internal/casic"
)

// Open opens device at baud. Only the rates the receiver itself can be
// switched to (PCAS01) are accepted.
func Open(device string, baud int) (io.ReadWriteCloser, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil, fmt.Errorf("serial: device is empty")
	}
	if _, ok := casic.BaudRateFor(baud); !ok {
		return nil, fmt.Errorf("serial: unsupported baud %d", baud)
	}
	return openPort(device, baud)
}

// AutoDetect returns the first USB serial device present, or "".
func AutoDetect() string {
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
