// Package features computes the statistical profile of a byte buffer:
// Shannon entropy, printable strings, header signature and declared-size checks.
package features

import (
	"SpectraGuard/internal/core/model"
	"fmt"
	"math"
	"strings"
)

// Options tunes an Extractor.
type Options struct {
	MinStringLength int
	MaxStrings      int
	UTF16           bool
	// Needles are searched case-insensitively inside every printable run,
	// including runs past MaxStrings and bytes past the kept value.
	Needles []string
	// Signatures overrides DefaultSignatures when non-nil.
	Signatures []Signature
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MinStringLength: 4,
		MaxStrings:      10000,
		UTF16:           true,
	}
}

// Extractor is a stateless feature extractor; one value can serve concurrent calls.
type Extractor struct {
	opts    Options
	table   []Signature
	needles []string
}

// NewExtractor validates opts and builds an Extractor.
func NewExtractor(opts Options) (*Extractor, error) {
	if opts.MinStringLength < 1 {
		return nil, fmt.Errorf("%w: min_string_length must be at least 1, got %d", model.ErrInvalidConfig, opts.MinStringLength)
	}
	if opts.MaxStrings < 0 {
		return nil, fmt.Errorf("%w: max_strings must not be negative, got %d", model.ErrInvalidConfig, opts.MaxStrings)
	}
	table := opts.Signatures
	if table == nil {
		table = DefaultSignatures
	}
	for i, sig := range table {
		if len(sig.Magic) == 0 {
			return nil, fmt.Errorf("%w: signature %d (%s) has an empty magic", model.ErrInvalidConfig, i, sig.Tag)
		}
	}
	e := &Extractor{opts: opts, table: table}
	for _, n := range opts.Needles {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			e.needles = append(e.needles, n)
		}
	}
	return e, nil
}

// Extract profiles buf. It never modifies buf and fails only on empty input.
func (e *Extractor) Extract(buf []byte) (*model.FeatureSet, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", model.ErrInvalidInput)
	}

	scan := scanStrings(buf, e.opts.MinStringLength, e.opts.MaxStrings, e.opts.UTF16, e.needles)
	header := matchHeader(buf, e.table)

	declared, ok := declaredSize(header, buf)
	mismatch := !ok || (declared != noDeclaredSize && declared != int64(len(buf)))

	return &model.FeatureSet{
		Size:         len(buf),
		Entropy:      Entropy(buf),
		Strings:      scan.kept,
		StringCount:  scan.total,
		Matches:      scan.matches,
		Header:       header,
		DeclaredSize: declared,
		SizeMismatch: mismatch,
	}, nil
}

// Entropy returns the Shannon entropy of buf's byte histogram in bits per byte.
func Entropy(buf []byte) float64 {
	if len(buf) == 0 {
		return 0
	}
	var hist [256]uint64
	for _, b := range buf {
		hist[b]++
	}

	n := float64(len(buf))
	h := 0.0
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return math.Min(math.Max(h, 0), 8)
}
