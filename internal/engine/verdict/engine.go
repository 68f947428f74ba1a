// Package verdict turns a FeatureSet into a bounded, explainable file score.
package verdict

import (
	"SpectraGuard/internal/core/model"
	"fmt"
	"math"
	"strings"
)

// Signal names as they appear in a FileVerdict.
const (
	SignalEntropy           = "entropy"
	SignalHeader            = "header_signature"
	SignalSizeMismatch      = "size_mismatch"
	SignalStringScarcity    = "string_scarcity"
	SignalSuspiciousStrings = "suspicious_strings"
)

// Engine scores feature sets against one validated ScoringConfig.
type Engine struct {
	cfg         ScoringConfig
	headers     map[model.HeaderSignature]struct{}
	needles     []string
	totalWeight float64
}

// NewEngine validates cfg and prepares the lookup tables used while scoring.
func NewEngine(cfg ScoringConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	total := cfg.EntropyWeight + cfg.HeaderWeight + cfg.SizeMismatchWeight +
		cfg.MinStringCountPenalty + cfg.SuspiciousStringWeight
	e := &Engine{
		cfg:         cfg,
		headers:     make(map[model.HeaderSignature]struct{}, len(cfg.SuspiciousHeaders)),
		totalWeight: total,
	}
	for _, h := range cfg.SuspiciousHeaders {
		e.headers[h] = struct{}{}
	}
	for _, s := range cfg.SuspiciousStrings {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			e.needles = append(e.needles, s)
		}
	}
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() ScoringConfig {
	return e.cfg
}

// Score computes the weighted average of every signal's sub-score and labels it.
func (e *Engine) Score(fs *model.FeatureSet) *model.FileVerdict {
	signals := []model.Signal{
		e.entropySignal(fs),
		e.headerSignal(fs),
		e.sizeSignal(fs),
		e.scarcitySignal(fs),
		e.suspiciousStringSignal(fs),
	}

	score := 0.0
	for i := range signals {
		signals[i].Contribution = signals[i].Weight * signals[i].SubScore / e.totalWeight
		score += signals[i].Contribution
	}
	score = clamp01(score)

	return &model.FileVerdict{
		Score:     score,
		Label:     e.Label(score),
		Threshold: e.cfg.VerdictThreshold,
		Signals:   signals,
		Header:    fs.Header,
		Size:      fs.Size,
	}
}

// Label maps a score to a label. The threshold is inclusive.
func (e *Engine) Label(score float64) model.Label {
	switch {
	case score >= e.cfg.VerdictThreshold:
		return model.LabelMalicious
	case score >= e.cfg.VerdictThreshold/2:
		return model.LabelSuspicious
	default:
		return model.LabelBenign
	}
}

func (e *Engine) entropySignal(fs *model.FeatureSet) model.Signal {
	sub := 0.0
	if fs.Entropy > e.cfg.HighEntropyCutoff {
		sub = clamp01((fs.Entropy - e.cfg.HighEntropyCutoff) / (e.cfg.EntropySaturation - e.cfg.HighEntropyCutoff))
	}
	return model.Signal{
		Name:     SignalEntropy,
		Weight:   e.cfg.EntropyWeight,
		SubScore: sub,
		Observed: fmt.Sprintf("%.4f", fs.Entropy),
	}
}

func (e *Engine) headerSignal(fs *model.FeatureSet) model.Signal {
	sub := 0.0
	if _, ok := e.headers[fs.Header]; ok {
		sub = 1
	}
	return model.Signal{
		Name:     SignalHeader,
		Weight:   e.cfg.HeaderWeight,
		SubScore: sub,
		Observed: string(fs.Header),
	}
}

func (e *Engine) sizeSignal(fs *model.FeatureSet) model.Signal {
	sub := 0.0
	if fs.SizeMismatch {
		sub = 1
	}
	return model.Signal{
		Name:     SignalSizeMismatch,
		Weight:   e.cfg.SizeMismatchWeight,
		SubScore: sub,
		Observed: fmt.Sprintf("declared=%d actual=%d", fs.DeclaredSize, fs.Size),
	}
}

func (e *Engine) scarcitySignal(fs *model.FeatureSet) model.Signal {
	sub := 0.0
	if floor := e.cfg.MinStringCount; floor > 0 && fs.StringCount < floor {
		sub = float64(floor-fs.StringCount) / float64(floor)
	}
	return model.Signal{
		Name:     SignalStringScarcity,
		Weight:   e.cfg.MinStringCountPenalty,
		SubScore: sub,
		Observed: fmt.Sprintf("%d", fs.StringCount),
	}
}

func (e *Engine) suspiciousStringSignal(fs *model.FeatureSet) model.Signal {
	var hits []string
	if e.cfg.SuspiciousStringWeight > 0 && len(e.needles) > 0 {
		found := make([]bool, len(e.needles))
		matched := make(map[string]bool, len(fs.Matches))
		for _, m := range fs.Matches {
			matched[m] = true
		}
		for i, n := range e.needles {
			if matched[n] {
				found[i] = true
				hits = append(hits, n)
			}
		}
		for _, s := range fs.Strings {
			if len(hits) == len(e.needles) {
				break
			}
			lower := strings.ToLower(s.Value)
			for i, n := range e.needles {
				if !found[i] && strings.Contains(lower, n) {
					found[i] = true
					hits = append(hits, n)
				}
			}
		}
	}

	sub := 0.0
	if len(hits) > 0 {
		sub = clamp01(float64(len(hits)) / float64(e.cfg.SuspiciousStringSaturation))
	}
	return model.Signal{
		Name:     SignalSuspiciousStrings,
		Weight:   e.cfg.SuspiciousStringWeight,
		SubScore: sub,
		Observed: strings.Join(hits, ","),
	}
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
