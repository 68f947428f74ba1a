// Package scanner exposes the two analysis entry points of the core: file
// scans and capture scans. Both are pure computations over caller-supplied
// bytes and may run concurrently on one Scanner.
package scanner

import (
	"SpectraGuard/internal/core/model"
	"SpectraGuard/internal/engine/features"
	"SpectraGuard/internal/engine/flow"
	"SpectraGuard/internal/engine/traffic"
	"SpectraGuard/internal/engine/verdict"
	"SpectraGuard/pkg/pcap"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
)

// Options collects the validated settings of every engine.
type Options struct {
	Features   features.Options
	Scoring    verdict.ScoringConfig
	Traffic    traffic.Config
	MaxPackets int
}

// DefaultOptions returns the stock settings of every engine.
func DefaultOptions() Options {
	return Options{
		Features:   features.DefaultOptions(),
		Scoring:    verdict.DefaultScoringConfig(),
		Traffic:    traffic.DefaultConfig(),
		MaxPackets: 1_000_000,
	}
}

// Scanner holds the engines built once from Options.
type Scanner struct {
	extractor *features.Extractor
	verdicts  *verdict.Engine
	tracker   *flow.Tracker
	traffic   *traffic.Engine

	now func() time.Time
}

// New validates opts and builds the engines. Any invalid setting is an ErrInvalidConfig.
func New(opts Options) (*Scanner, error) {
	// The extractor searches every run for the strings the scorer weighs.
	fopts := opts.Features
	fopts.Needles = opts.Scoring.SuspiciousStrings
	extractor, err := features.NewExtractor(fopts)
	if err != nil {
		return nil, fmt.Errorf("feature extractor: %w", err)
	}
	verdicts, err := verdict.NewEngine(opts.Scoring)
	if err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	tracker, err := flow.NewTracker(opts.MaxPackets)
	if err != nil {
		return nil, fmt.Errorf("flow tracker: %w", err)
	}
	trafficEngine, err := traffic.NewEngine(opts.Traffic)
	if err != nil {
		return nil, fmt.Errorf("traffic: %w", err)
	}
	return &Scanner{
		extractor: extractor,
		verdicts:  verdicts,
		tracker:   tracker,
		traffic:   trafficEngine,
		now:       time.Now,
	}, nil
}

// ScanFile extracts features from data and scores them. The report identity
// is the sha256 of data.
func (s *Scanner) ScanFile(data []byte) (*model.ScanReport, error) {
	fs, err := s.extractor.Extract(data)
	if err != nil {
		return nil, err
	}
	return s.report(model.KindFile, Identity(data), func(r *model.ScanReport) {
		r.File = s.verdicts.Score(fs)
	}), nil
}

// ScanCapture decodes a pcap or pcapng capture held in memory and evaluates
// its traffic. The report identity is the sha256 of the capture.
func (s *Scanner) ScanCapture(data []byte) (*model.ScanReport, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty capture", model.ErrInvalidInput)
	}
	reader, err := pcap.NewBytesReader(data)
	if err != nil {
		return nil, err
	}
	return s.ScanPackets(Identity(data), reader.Packets()), nil
}

// ScanPackets evaluates an already decoded packet sequence under captureID.
func (s *Scanner) ScanPackets(captureID string, packets iter.Seq[model.Packet]) *model.ScanReport {
	res := s.tracker.Ingest(packets)
	return s.report(model.KindTraffic, captureID, func(r *model.ScanReport) {
		r.Traffic = s.traffic.EvaluateResult(res)
	})
}

func (s *Scanner) report(kind model.Kind, identity string, fill func(*model.ScanReport)) *model.ScanReport {
	r := &model.ScanReport{
		ID:            uuid.NewString(),
		Kind:          kind,
		InputIdentity: identity,
	}
	fill(r)
	r.GeneratedAt = s.now().UTC()
	return r
}

// Identity is the lowercase hex sha256 of data.
func Identity(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
