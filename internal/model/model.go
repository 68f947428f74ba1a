package model

import (
	core "SpectraGuard/internal/core/model"
	"time"
)

// LogDocument is the persisted form of a scan: the report plus the metadata
// the upload layer knows about its input.
type LogDocument struct {
	ReportID string           `json:"report_id"`
	TS       time.Time        `json:"ts"`
	Kind     core.Kind        `json:"kind"`
	Label    core.Label       `json:"label,omitempty"`
	Score    float64          `json:"score"`
	Findings int              `json:"findings"`
	Identity string           `json:"identity"`
	Filename string           `json:"filename,omitempty"`
	Headline string           `json:"headline"`
	Report   *core.ScanReport `json:"report"`
}

// NewLogDocument flattens r for storage. filename may be empty.
func NewLogDocument(r *core.ScanReport, filename string) *LogDocument {
	doc := &LogDocument{
		ReportID: r.ID,
		TS:       r.GeneratedAt.UTC(),
		Kind:     r.Kind,
		Identity: r.InputIdentity,
		Filename: filename,
		Headline: r.Headline(),
		Report:   r,
	}
	if r.File != nil {
		doc.Label = r.File.Label
		doc.Score = r.File.Score
	}
	if r.Traffic != nil {
		doc.Findings = len(r.Traffic.Findings)
	}
	return doc
}
