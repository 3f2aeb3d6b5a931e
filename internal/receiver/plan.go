package receiver

import (
	"fmt"
	"time"

	"casic-ng/internal/casic"
	"casic-ng/internal/config"
)

// Config controls the receiver service. Zero values leave the matching
// receiver setting untouched.
type Config struct {
	Device string
	// Baud is the rate the receiver currently talks at.
	Baud int
	// TargetBaud, when non-zero and different from Baud, switches the
	// receiver (PCAS01) and reopens the port at the new rate.
	TargetBaud  int
	UpdateRate  casic.UpdateRate
	Mode        casic.Mode
	OutputRates *casic.OutputRates
	Restart     *casic.RestartType

	CommandGap time.Duration
	ResetGPIO  int
	ResetPulse time.Duration
}

// FromConfig converts the validated YAML receiver section.
func FromConfig(rc config.ReceiverConfig) (Config, error) {
	cfg := Config{
		Device:     rc.Device,
		Baud:       rc.Baud,
		TargetBaud: rc.TargetBaud,
		CommandGap: rc.CommandGap,
		ResetGPIO:  rc.ResetGPIO,
		ResetPulse: rc.ResetPulse,
	}
	if rc.UpdateHz != 0 {
		r, ok := casic.UpdateRateFor(rc.UpdateHz)
		if !ok {
			return Config{}, fmt.Errorf("receiver: update rate %dHz not supported", rc.UpdateHz)
		}
		cfg.UpdateRate = r
	}
	if rc.Mode != "" {
		m, err := casic.ParseMode(rc.Mode)
		if err != nil {
			return Config{}, err
		}
		cfg.Mode = m
	}
	if rc.OutputRates != nil {
		o := rc.OutputRates.Rates()
		cfg.OutputRates = &o
	}
	if rc.Restart != "" {
		r, err := casic.ParseRestartType(rc.Restart)
		if err != nil {
			return Config{}, err
		}
		cfg.Restart = &r
	}
	return cfg, nil
}

// Plan returns the commands to send, in order. The baud change goes first
// so everything after it is sent at the final rate; the restart goes last
// since the receiver stops listening while it reboots.
func Plan(cfg Config) []casic.Command {
	var cmds []casic.Command
	if cfg.TargetBaud != 0 && cfg.TargetBaud != cfg.Baud {
		if b, ok := casic.BaudRateFor(cfg.TargetBaud); ok {
			cmds = append(cmds, b)
		}
	}
	if cfg.UpdateRate != 0 {
		cmds = append(cmds, cfg.UpdateRate)
	}
	if cfg.OutputRates != nil {
		cmds = append(cmds, *cfg.OutputRates)
	}
	if cfg.Mode != 0 {
		cmds = append(cmds, cfg.Mode)
	}
	if cfg.Restart != nil {
		cmds = append(cmds, *cfg.Restart)
	}
	return cmds
}
