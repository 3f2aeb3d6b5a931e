package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"casic-ng/internal/config"
	"casic-ng/internal/mqtt"
	"casic-ng/internal/nmealog"
	"casic-ng/internal/receiver"
	"casic-ng/internal/serial"
	"casic-ng/internal/udp"
	"casic-ng/internal/web"
)

const statusLogInterval = time.Minute

// run wires the optional sinks around the receiver service and blocks until
// ctx is done.
func run(ctx context.Context, cfg config.Config, rcfg receiver.Config) error {
	var opts receiver.Options

	if cfg.Forward.UDPDest != "" {
		fwd, err := udp.NewForwarder(cfg.Forward.UDPDest)
		if err != nil {
			return fmt.Errorf("udp forwarder init failed: %w", err)
		}
		defer fwd.Close()
		opts.PassThrough = fwd
		log.Printf("forwarding pass-through sentences udp_dest=%s", fwd.Dest())
	}

	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewPublisher(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		})
		if err != nil {
			return fmt.Errorf("mqtt init failed: %w", err)
		}
		defer pub.Close()
		opts.Antenna = pub
		log.Printf("publishing antenna status broker=%s topic=%s", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}

	if cfg.Record.Enable {
		w, err := nmealog.CreateWriter(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("record init failed: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Printf("record close failed: %v", err)
			}
		}()
		opts.Recorder = w
		log.Printf("recording sentences path=%s", cfg.Record.Path)
	}

	if !cfg.Replay.Enable && strings.EqualFold(rcfg.Device, "auto") {
		rcfg.Device = serial.AutoDetect()
		if rcfg.Device == "" {
			return fmt.Errorf("receiver auto-detect failed: no /dev/ttyUSB* or /dev/ttyACM* found")
		}
	}

	svc := receiver.New(rcfg, opts)
	defer svc.Close()

	if cfg.Replay.Enable {
		recs, err := nmealog.ReadFile(cfg.Replay.Path)
		if err != nil {
			return fmt.Errorf("replay load failed: %w", err)
		}
		log.Printf("replaying path=%s records=%d speed=%v loop=%v", cfg.Replay.Path, len(recs), cfg.Replay.Speed, cfg.Replay.Loop)
		if err := svc.StartReplay(ctx, recs, cfg.Replay.Speed, cfg.Replay.Loop); err != nil {
			return err
		}
	} else if err := svc.Start(ctx); err != nil {
		return err
	}

	if cfg.Web.Listen != "" {
		log.Printf("status api listen=%s", cfg.Web.Listen)
		webDone := make(chan struct{})
		go func() {
			defer close(webDone)
			if err := web.Serve(ctx, cfg.Web.Listen, svc); err != nil {
				log.Printf("status api stopped: %v", err)
			}
		}()
		// Deferred after svc.Close, so the server is down first.
		defer func() { <-webDone }()
	}

	t := time.NewTicker(statusLogInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logSnapshot(svc.Snapshot())
			return nil
		case <-t.C:
			logSnapshot(svc.Snapshot())
		}
	}
}

func logSnapshot(s receiver.Snapshot) {
	log.Printf("receiver status state=%s device=%s baud=%d antenna=%s sentences=%d pass_through=%d txt=%d bad_checksum=%d malformed=%d last_error=%q",
		s.State, s.Device, s.Baud, s.Antenna, s.Sentences, s.PassThrough, s.Txt, s.BadChecksum, s.Malformed, s.LastError)
}
