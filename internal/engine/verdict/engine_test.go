package verdict

import (
	"SpectraGuard/internal/core/model"
	"errors"
	"math"
	"testing"
)

func newTestEngine(t *testing.T, cfg ScoringConfig) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func baseFeatures() *model.FeatureSet {
	return &model.FeatureSet{
		Size:         4096,
		Entropy:      4.2,
		StringCount:  40,
		Header:       model.SigUnknown,
		DeclaredSize: -1,
	}
}

func TestScore_MonotonicInEntropy(t *testing.T) {
	e := newTestEngine(t, DefaultScoringConfig())
	fs := baseFeatures()
	fs.Header = model.SigPE

	prev := -1.0
	for h := 0.0; h <= 8.0; h += 0.05 {
		fs.Entropy = h
		v := e.Score(fs)
		if v.Score < prev {
			t.Fatalf("Score decreased from %f to %f when entropy rose to %f", prev, v.Score, h)
		}
		prev = v.Score
	}
}

func TestScore_ThresholdIsInclusive(t *testing.T) {
	cfg := ScoringConfig{
		HeaderWeight:      1,
		SuspiciousHeaders: []model.HeaderSignature{model.SigPE},
		HighEntropyCutoff: 7,
		EntropySaturation: 8,
		VerdictThreshold:  1,
	}
	e := newTestEngine(t, cfg)
	fs := baseFeatures()
	fs.Header = model.SigPE

	v := e.Score(fs)
	if v.Score != 1 {
		t.Fatalf("Expected score exactly 1, got %v", v.Score)
	}
	if v.Label != model.LabelMalicious {
		t.Errorf("Expected score == threshold to be malicious, got %s", v.Label)
	}

	cfg.SizeMismatchWeight = 1
	cfg.VerdictThreshold = 0.5
	e = newTestEngine(t, cfg)
	v = e.Score(fs)
	if v.Score != 0.5 || v.Label != model.LabelMalicious {
		t.Errorf("Expected 0.5 to be malicious at threshold 0.5, got %v %s", v.Score, v.Label)
	}
}

func TestLabel_Bands(t *testing.T) {
	e := newTestEngine(t, DefaultScoringConfig())
	cases := map[float64]model.Label{
		0.0:  model.LabelBenign,
		0.29: model.LabelBenign,
		0.3:  model.LabelSuspicious,
		0.59: model.LabelSuspicious,
		0.6:  model.LabelMalicious,
		1.0:  model.LabelMalicious,
	}
	for score, want := range cases {
		if got := e.Label(score); got != want {
			t.Errorf("Label(%v): expected %s, got %s", score, want, got)
		}
	}
}

func TestScore_ContributionsReproduceScore(t *testing.T) {
	e := newTestEngine(t, DefaultScoringConfig())
	fs := &model.FeatureSet{
		Size:         2048,
		Entropy:      7.6,
		StringCount:  3,
		Header:       model.SigPE,
		DeclaredSize: 1024,
		SizeMismatch: true,
		Strings: []model.PrintableString{
			{Offset: 10, Value: "kernel32!VirtualAlloc", Encoding: model.EncodingASCII},
			{Offset: 40, Value: "CreateRemoteThread", Encoding: model.EncodingASCII},
			{Offset: 90, Value: "hello", Encoding: model.EncodingASCII},
		},
	}
	v := e.Score(fs)

	sum := 0.0
	for _, s := range v.Signals {
		if s.SubScore < 0 || s.SubScore > 1 {
			t.Errorf("Signal %s sub-score %f outside [0,1]", s.Name, s.SubScore)
		}
		sum += s.Contribution
	}
	if math.Abs(sum-v.Score) > 1e-12 {
		t.Errorf("Contributions sum to %f, score is %f", sum, v.Score)
	}
	if v.Score < 0 || v.Score > 1 {
		t.Errorf("Score %f outside [0,1]", v.Score)
	}
	if v.Label != model.LabelMalicious {
		t.Errorf("Expected a packed PE with injection APIs to be malicious, got %s (%f)", v.Label, v.Score)
	}

	var hits string
	for _, s := range v.Signals {
		if s.Name == SignalSuspiciousStrings {
			hits = s.Observed
		}
	}
	if hits != "virtualalloc,createremotethread" {
		t.Errorf("Unexpected suspicious string hits: %q", hits)
	}
}

func TestScore_ExtractorMatchesCount(t *testing.T) {
	e := newTestEngine(t, DefaultScoringConfig())
	fs := baseFeatures()
	fs.Matches = []string{"createremotethread", "virtualalloc", "writeprocessmemory"}

	v := e.Score(fs)
	for _, s := range v.Signals {
		if s.Name != SignalSuspiciousStrings {
			continue
		}
		if s.SubScore != 1 {
			t.Errorf("Expected a saturated sub-score, got %f", s.SubScore)
		}
		if s.Observed != "virtualalloc,writeprocessmemory,createremotethread" {
			t.Errorf("Unexpected hits %q", s.Observed)
		}
	}
}

func TestScore_BenignText(t *testing.T) {
	e := newTestEngine(t, DefaultScoringConfig())
	v := e.Score(baseFeatures())
	if v.Label != model.LabelBenign || v.Score != 0 {
		t.Errorf("Expected benign zero score for plain text, got %s %f", v.Label, v.Score)
	}
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(c *ScoringConfig){
		"negative weight":      func(c *ScoringConfig) { c.EntropyWeight = -0.1 },
		"threshold above one":  func(c *ScoringConfig) { c.VerdictThreshold = 1.2 },
		"threshold below zero": func(c *ScoringConfig) { c.VerdictThreshold = -0.01 },
		"all weights zero": func(c *ScoringConfig) {
			c.EntropyWeight, c.HeaderWeight, c.SizeMismatchWeight = 0, 0, 0
			c.MinStringCountPenalty, c.SuspiciousStringWeight = 0, 0
		},
		"cutoff above saturation": func(c *ScoringConfig) { c.HighEntropyCutoff = 7.95 },
		"zero saturation hits":    func(c *ScoringConfig) { c.SuspiciousStringSaturation = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultScoringConfig()
		mutate(&cfg)
		if _, err := NewEngine(cfg); !errors.Is(err, model.ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}
