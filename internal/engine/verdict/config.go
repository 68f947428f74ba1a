package verdict

import (
	"SpectraGuard/internal/core/model"
	"fmt"
	"math"
)

// ScoringConfig holds the weights and cutoffs of the file verdict. It is
// validated once at startup and never mutated while scans run.
type ScoringConfig struct {
	EntropyWeight     float64 `yaml:"entropy_weight"`
	HighEntropyCutoff float64 `yaml:"high_entropy_cutoff"`
	// EntropySaturation is the entropy at which the entropy sub-score reaches 1.
	EntropySaturation float64 `yaml:"entropy_saturation"`

	HeaderWeight      float64                 `yaml:"header_weight"`
	SuspiciousHeaders []model.HeaderSignature `yaml:"suspicious_header_set"`

	SizeMismatchWeight float64 `yaml:"size_mismatch_weight"`

	// Buffers with fewer than MinStringCount printable runs are penalised
	// proportionally, up to MinStringCountPenalty.
	MinStringCount        int     `yaml:"min_string_count"`
	MinStringCountPenalty float64 `yaml:"min_string_count_penalty"`

	SuspiciousStringWeight     float64  `yaml:"suspicious_string_weight"`
	SuspiciousStrings          []string `yaml:"suspicious_strings"`
	SuspiciousStringSaturation int      `yaml:"suspicious_string_saturation"`

	VerdictThreshold float64 `yaml:"verdict_threshold"`
}

// DefaultScoringConfig returns the stock weights. They sum to 1.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		EntropyWeight:     0.35,
		HighEntropyCutoff: 7.0,
		EntropySaturation: 7.9,
		HeaderWeight:      0.15,
		SuspiciousHeaders: []model.HeaderSignature{
			model.SigPE, model.SigELF, model.SigMachO, model.SigMachOFat, model.SigOLE2, model.SigScript,
		},
		SizeMismatchWeight:     0.2,
		MinStringCount:         8,
		MinStringCountPenalty:  0.1,
		SuspiciousStringWeight: 0.2,
		SuspiciousStrings: []string{
			"VirtualAlloc", "WriteProcessMemory", "CreateRemoteThread", "LoadLibrary",
			"GetProcAddress", "IsDebuggerPresent", "URLDownloadToFile", "WinExec",
			"powershell -enc", "cmd.exe /c", "/bin/sh", "wget http", "curl http",
			"mimikatz", "sekurlsa::", "ReflectiveLoader", "beacon.dll", "metsrv",
		},
		SuspiciousStringSaturation: 3,
		VerdictThreshold:           0.6,
	}
}

// Validate rejects negative weights, out-of-range cutoffs and thresholds.
func (c *ScoringConfig) Validate() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"entropy_weight", c.EntropyWeight},
		{"header_weight", c.HeaderWeight},
		{"size_mismatch_weight", c.SizeMismatchWeight},
		{"min_string_count_penalty", c.MinStringCountPenalty},
		{"suspicious_string_weight", c.SuspiciousStringWeight},
	}
	total := 0.0
	for _, w := range weights {
		if w.value < 0 || math.IsNaN(w.value) || math.IsInf(w.value, 0) {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", model.ErrInvalidConfig, w.name, w.value)
		}
		total += w.value
	}
	if total <= 0 {
		return fmt.Errorf("%w: at least one signal weight must be positive", model.ErrInvalidConfig)
	}

	if c.VerdictThreshold < 0 || c.VerdictThreshold > 1 || math.IsNaN(c.VerdictThreshold) {
		return fmt.Errorf("%w: verdict_threshold must be within [0,1], got %v", model.ErrInvalidConfig, c.VerdictThreshold)
	}
	if c.HighEntropyCutoff < 0 || c.HighEntropyCutoff >= 8 {
		return fmt.Errorf("%w: high_entropy_cutoff must be within [0,8), got %v", model.ErrInvalidConfig, c.HighEntropyCutoff)
	}
	if c.EntropySaturation <= c.HighEntropyCutoff || c.EntropySaturation > 8 {
		return fmt.Errorf("%w: entropy_saturation must be within (high_entropy_cutoff,8], got %v", model.ErrInvalidConfig, c.EntropySaturation)
	}
	if c.MinStringCount < 0 {
		return fmt.Errorf("%w: min_string_count must not be negative, got %d", model.ErrInvalidConfig, c.MinStringCount)
	}
	if c.SuspiciousStringWeight > 0 && c.SuspiciousStringSaturation < 1 {
		return fmt.Errorf("%w: suspicious_string_saturation must be at least 1, got %d", model.ErrInvalidConfig, c.SuspiciousStringSaturation)
	}
	return nil
}
