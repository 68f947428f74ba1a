package main

import (
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/logging"
	"SpectraGuard/internal/model"
	"SpectraGuard/internal/probe"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	natsURL := flag.String("nats", "", "NATS URL, overrides nats.url from the config.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *natsURL != "" {
		cfg.NATS.URL = *natsURL
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sub, err := probe.NewSubscriber(cfg.NATS, logger)
	if err != nil {
		logger.Fatal("Failed to create subscriber", zap.Error(err))
	}
	defer sub.Close()

	if err := sub.Start(printDocument); err != nil {
		logger.Fatal("Failed to subscribe", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down report watcher")
}

func printDocument(doc *model.LogDocument) {
	ts := color.New(color.Faint).Sprint(doc.TS.Local().Format(time.TimeOnly))
	headline := doc.Headline
	switch {
	case doc.Label == core.LabelMalicious, doc.Findings > 0:
		headline = color.RedString("%s", headline)
	case doc.Label == core.LabelSuspicious:
		headline = color.YellowString("%s", headline)
	default:
		headline = color.GreenString("%s", headline)
	}
	name := doc.Filename
	if name == "" {
		name = doc.ReportID
	}
	fmt.Printf("%s %-8s %-24s %s\n", ts, doc.Kind, name, headline)
}
