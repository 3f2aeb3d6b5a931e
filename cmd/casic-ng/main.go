package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"casic-ng/internal/config"
	"casic-ng/internal/receiver"
)

func main() {
	var (
		configPath  string
		printPlan   bool
		encodeArg   string
		decodeArg   string
		summaryPath string
	)
	flag.StringVar(&configPath, "config", "./casic.yaml", "Path to YAML config")
	flag.BoolVar(&printPlan, "print", false, "Print the configuration sentences for -config and exit")
	flag.StringVar(&encodeArg, "encode", "", "Print one command sentence: baud=N, rate=HZ, mode=gps+bds, restart=hot|warm|cold|factory, output=12 comma separated rates")
	flag.StringVar(&decodeArg, "decode", "", "Classify and parse one received sentence")
	flag.StringVar(&summaryPath, "log-summary", "", "Summarize a recorded sentence log and exit")
	flag.Parse()

	switch {
	case summaryPath != "":
		if err := printLogSummary(os.Stdout, summaryPath); err != nil {
			log.Fatalf("log summary failed: %v", err)
		}
		return
	case encodeArg != "":
		s, err := encodeCommand(encodeArg)
		if err != nil {
			log.Fatalf("encode failed: %v", err)
		}
		fmt.Println(s)
		return
	case decodeArg != "":
		out, err := describeSentence(decodeArg)
		if err != nil {
			log.Fatalf("decode failed: %v", err)
		}
		fmt.Println(out)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	rcfg, err := receiver.FromConfig(cfg.Receiver)
	if err != nil {
		log.Fatalf("receiver config failed: %v", err)
	}

	if printPlan {
		for _, cmd := range receiver.Plan(rcfg) {
			fmt.Println(cmd.Sentence())
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("casic-ng starting")
	if err := run(ctx, cfg, rcfg); err != nil {
		log.Fatalf("casic-ng failed: %v", err)
	}
	log.Printf("casic-ng stopping")
}
