package main

import (
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/scanner"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Configuration file; defaults are used when it does not exist.")
	mode := flag.String("mode", "auto", "How to treat inputs: 'auto', 'file' or 'capture'.")
	asJSON := flag.Bool("json", false, "Print full reports as JSON lines.")
	failOnThreat := flag.Bool("fail-on-threat", false, "Exit with status 3 when any input is malicious or has findings.")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ns-scan [flags] <path>...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}
	opts, err := cfg.ScannerOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}
	sc, err := scanner.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}

	failed, threats := 0, 0
	for _, path := range flag.Args() {
		report, err := scanPath(sc, path, *mode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", red("error:"), path, err)
			failed++
			continue
		}
		if isThreat(report) {
			threats++
		}
		if *asJSON {
			json.NewEncoder(os.Stdout).Encode(report)
			continue
		}
		printReport(path, report)
	}

	switch {
	case failed > 0:
		os.Exit(1)
	case *failOnThreat && threats > 0:
		os.Exit(3)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func scanPath(sc *scanner.Scanner, path, mode string) (*core.ScanReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if mode == "auto" {
		mode = "file"
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pcap", ".pcapng":
			mode = "capture"
		}
	}
	switch mode {
	case "file":
		return sc.ScanFile(data)
	case "capture":
		return sc.ScanCapture(data)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

func isThreat(r *core.ScanReport) bool {
	if r.File != nil {
		return r.File.Label == core.LabelMalicious
	}
	return r.Traffic != nil && len(r.Traffic.Findings) > 0
}

func labelColor(l core.Label) string {
	switch l {
	case core.LabelMalicious:
		return red(l)
	case core.LabelSuspicious:
		return yellow(l)
	default:
		return green(l)
	}
}

func printReport(path string, r *core.ScanReport) {
	switch {
	case r.File != nil:
		v := r.File
		fmt.Printf("%s  %s  score=%.3f threshold=%.2f header=%s size=%d\n",
			path, labelColor(v.Label), v.Score, v.Threshold, v.Header, v.Size)
		for _, s := range v.Signals {
			fmt.Printf("    %-20s %s\n", s.Name, faint(fmt.Sprintf("+%.3f (weight %.2f, observed %s)", s.Contribution, s.Weight, s.Observed)))
		}
	case r.Traffic != nil:
		s := r.Traffic.Summary
		fmt.Printf("%s  %d packets, %d bytes, %d flows, %d addresses over %s\n",
			path, s.PacketCount, s.ByteCount, s.FlowCount, s.UniqueAddresses, s.Duration)
		if s.MalformedCount > 0 || s.Truncated {
			fmt.Printf("    %s\n", yellow(fmt.Sprintf("malformed=%d non-ip=%d truncated=%t", s.MalformedCount, s.NonIPCount, s.Truncated)))
		}
		for _, t := range s.TopTalkers {
			fmt.Printf("    %-40s %s\n", t.Address, faint(fmt.Sprintf("%d packets, %d bytes %s", t.Packets, t.Bytes, t.Country)))
		}
		if len(r.Traffic.Findings) == 0 {
			fmt.Printf("    %s\n", green("no findings"))
		}
		for _, f := range r.Traffic.Findings {
			fmt.Printf("    %s %s from %s: %d SYN / %d SYN-ACK to %d destination(s)\n",
				red(f.Severity), f.Kind, f.Source, f.Evidence.SynCount, f.Evidence.SynAckCount, f.Evidence.DistinctDestinations)
		}
	}
}
