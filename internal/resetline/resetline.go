// Package resetline pulses the receiver's active-low reset input from a
// host GPIO.
package resetline

import (
	"fmt"
	"time"
)

// line is the part of a requested GPIO output the pulse needs.
type line interface {
	SetValue(v int) error
	Close() error
}

var (
	openLineFn = openLine
	sleepFn    = time.Sleep
)

// Pulse holds BCM line GPIO<pin> low for width, then releases it high.
func Pulse(pin int, width time.Duration) error {
	if pin <= 0 {
		return fmt.Errorf("resetline: invalid gpio pin %d", pin)
	}
	if width <= 0 {
		return fmt.Errorf("resetline: pulse width must be > 0")
	}
	l, err := openLineFn(pin)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	if err := l.SetValue(0); err != nil {
		return fmt.Errorf("resetline: assert reset: %w", err)
	}
	sleepFn(width)
	if err := l.SetValue(1); err != nil {
		return fmt.Errorf("resetline: release reset: %w", err)
	}
	return nil
}
