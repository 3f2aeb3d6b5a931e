package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"casic-ng/internal/casic"
)

type Config struct {
	Receiver ReceiverConfig `yaml:"receiver"`
	Forward  ForwardConfig  `yaml:"forward"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Record   RecordConfig   `yaml:"record"`
	Replay   ReplayConfig   `yaml:"replay"`
	Web      WebConfig      `yaml:"web"`
}

type ReceiverConfig struct {
	Device string `yaml:"device"`
	// Baud is the rate the receiver is talking at right now.
	Baud int `yaml:"baud"`
	// TargetBaud, when set and different from Baud, is sent as PCAS01 and
	// the port is reopened at that rate.
	TargetBaud  int                `yaml:"target_baud"`
	UpdateHz    int                `yaml:"update_hz"`
	Mode        string             `yaml:"mode"`
	OutputRates *OutputRatesConfig `yaml:"output_rates"`
	Restart     string             `yaml:"restart"`
	CommandGap  time.Duration      `yaml:"command_gap"`
	ResetGPIO   int                `yaml:"reset_gpio"`
	ResetPulse  time.Duration      `yaml:"reset_pulse"`
}

type OutputRatesConfig struct {
	GGA int `yaml:"gga"`
	GLL int `yaml:"gll"`
	GSA int `yaml:"gsa"`
	GSV int `yaml:"gsv"`
	RMC int `yaml:"rmc"`
	VTG int `yaml:"vtg"`
	ZDA int `yaml:"zda"`
	ANT int `yaml:"ant"`
	DHV int `yaml:"dhv"`
	LPS int `yaml:"lps"`
	UTC int `yaml:"utc"`
	GST int `yaml:"gst"`
}

func (o OutputRatesConfig) Rates() casic.OutputRates {
	return casic.OutputRates{
		GGA: o.GGA, GLL: o.GLL, GSA: o.GSA, GSV: o.GSV,
		RMC: o.RMC, VTG: o.VTG, ZDA: o.ZDA, ANT: o.ANT,
		DHV: o.DHV, LPS: o.LPS, UTC: o.UTC, GST: o.GST,
	}
}

type ForwardConfig struct {
	UDPDest string `yaml:"udp_dest"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type WebConfig struct {
	// Listen is host:port for the JSON status API; empty disables it.
	Listen string `yaml:"listen"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML config bytes, applies defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "not found in type") {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", unknownFieldMsg(err))
		}
		return Config{}, err
	}

	if err := applyReceiver(&cfg.Receiver, cfg.Replay.Enable); err != nil {
		return Config{}, err
	}

	cfg.Forward.UDPDest = strings.TrimSpace(cfg.Forward.UDPDest)
	cfg.Web.Listen = strings.TrimSpace(cfg.Web.Listen)

	cfg.MQTT.Broker = strings.TrimSpace(cfg.MQTT.Broker)
	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = "EVENTS/gnss/antenna"
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "casic-ng"
		}
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return Config{}, fmt.Errorf("record.path is required when record.enable is true")
	}

	if cfg.Replay.Enable {
		if cfg.Replay.Path == "" {
			return Config{}, fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return Config{}, fmt.Errorf("replay.speed must be > 0")
		}
	}

	if cfg.Record.Enable && cfg.Replay.Enable {
		return Config{}, fmt.Errorf("record and replay cannot both be enabled")
	}

	return cfg, nil
}

func applyReceiver(rc *ReceiverConfig, replay bool) error {
	rc.Device = strings.TrimSpace(rc.Device)
	if rc.Device == "" && !replay {
		return fmt.Errorf("receiver.device is required")
	}
	if rc.Baud == 0 {
		rc.Baud = casic.DefaultBaud
	}
	if _, ok := casic.BaudRateFor(rc.Baud); !ok {
		return fmt.Errorf("receiver.baud %d is not supported", rc.Baud)
	}
	if rc.TargetBaud != 0 {
		if _, ok := casic.BaudRateFor(rc.TargetBaud); !ok {
			return fmt.Errorf("receiver.target_baud %d is not supported", rc.TargetBaud)
		}
	}
	if rc.UpdateHz != 0 {
		if _, ok := casic.UpdateRateFor(rc.UpdateHz); !ok {
			return fmt.Errorf("receiver.update_hz %d is not supported", rc.UpdateHz)
		}
	}
	if rc.Mode != "" {
		if _, err := casic.ParseMode(rc.Mode); err != nil {
			return fmt.Errorf("receiver.mode: %w", err)
		}
	}
	if rc.OutputRates != nil {
		if err := checkOutputRates(*rc.OutputRates); err != nil {
			return err
		}
	}
	if rc.Restart != "" {
		if _, err := casic.ParseRestartType(rc.Restart); err != nil {
			return fmt.Errorf("receiver.restart: %w", err)
		}
	}
	if rc.CommandGap <= 0 {
		rc.CommandGap = 100 * time.Millisecond
	}
	if rc.ResetGPIO < 0 {
		return fmt.Errorf("receiver.reset_gpio must be >= 0")
	}
	if rc.ResetGPIO > 0 && rc.ResetPulse <= 0 {
		rc.ResetPulse = 100 * time.Millisecond
	}
	return nil
}

func checkOutputRates(o OutputRatesConfig) error {
	fields := []struct {
		name string
		v    int
	}{
		{"gga", o.GGA}, {"gll", o.GLL}, {"gsa", o.GSA}, {"gsv", o.GSV},
		{"rmc", o.RMC}, {"vtg", o.VTG}, {"zda", o.ZDA}, {"ant", o.ANT},
		{"dhv", o.DHV}, {"lps", o.LPS}, {"utc", o.UTC}, {"gst", o.GST},
	}
	for _, f := range fields {
		if f.v < 0 || f.v > 9 {
			return fmt.Errorf("receiver.output_rates.%s must be 0..9", f.name)
		}
	}
	return nil
}

// unknownFieldMsg trims yaml's "line N: " prefixes so the message is stable.
func unknownFieldMsg(err error) string {
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg := te.Errors[0]
		if i := strings.Index(msg, ": "); i != -1 && strings.HasPrefix(msg, "line ") {
			msg = msg[i+2:]
		}
		return msg
	}
	return err.Error()
}
