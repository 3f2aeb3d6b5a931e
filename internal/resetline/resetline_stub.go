//go:build !linux

package resetline

import "fmt"

func openLine(pin int) (line, error) {
	return nil, fmt.Errorf("resetline: gpio unsupported on this platform")
}
