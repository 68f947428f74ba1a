package query

import (
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/model"
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoStore is returned by New when no queryable writer is enabled.
var ErrNoStore = errors.New("no report store configured")

// Filter selects stored documents. Zero Since/Until leave that side open;
// Until is exclusive.
type Filter struct {
	Kind  core.Kind
	Since time.Time
	Until time.Time
	Limit int
}

func (f Filter) matches(doc *model.LogDocument) bool {
	if f.Kind != "" && doc.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && doc.TS.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !doc.TS.Before(f.Until) {
		return false
	}
	return true
}

// Counts are totals over every stored document.
type Counts struct {
	FileScans       uint64 `json:"file_scans"`
	MaliciousFiles  uint64 `json:"malicious_files"`
	TrafficAnalyses uint64 `json:"traffic_analyses"`
	TrafficThreats  uint64 `json:"traffic_threats"`
}

// Summary is the reporting overview: counts plus the newest documents per kind.
type Summary struct {
	Counts Counts                             `json:"counts"`
	Recent map[core.Kind][]*model.LogDocument `json:"recent"`
}

// Querier defines the interface for querying stored scan reports.
type Querier interface {
	Counts(ctx context.Context) (Counts, error)
	// Documents returns matching documents, newest first.
	Documents(ctx context.Context, f Filter) ([]*model.LogDocument, error)
	// Store names the backing writer type.
	Store() string
	Close() error
}

// New returns a querier over the first enabled queryable writer,
// preferring ClickHouse.
func New(cfg *config.Config) (Querier, error) {
	var gobDef *config.WriterDef
	for i, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}
		switch def.Type {
		case "clickhouse":
			return NewClickHouseQuerier(def.ClickHouse)
		case "gob":
			if gobDef == nil {
				gobDef = &cfg.Writers[i]
			}
		}
	}
	if gobDef != nil {
		return NewGobQuerier(gobDef.Gob.RootPath), nil
	}
	return nil, ErrNoStore
}

// BuildSummary collects counts and the limit newest documents of each kind
// within the window of f.
func BuildSummary(ctx context.Context, q Querier, f Filter) (*Summary, error) {
	counts, err := q.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}
	s := &Summary{Counts: counts, Recent: make(map[core.Kind][]*model.LogDocument, 2)}
	for _, kind := range []core.Kind{core.KindFile, core.KindTraffic} {
		f.Kind = kind
		docs, err := q.Documents(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to load recent %s reports: %w", kind, err)
		}
		if docs == nil {
			docs = []*model.LogDocument{}
		}
		s.Recent[kind] = docs
	}
	return s, nil
}

func countInto(c *Counts, doc *model.LogDocument) {
	switch doc.Kind {
	case core.KindFile:
		c.FileScans++
		if doc.Label == core.LabelMalicious {
			c.MaliciousFiles++
		}
	case core.KindTraffic:
		c.TrafficAnalyses++
		if doc.Findings > 0 {
			c.TrafficThreats++
		}
	}
}
