package writer

import (
	"SpectraGuard/internal/config"
	"SpectraGuard/internal/factory"
	"SpectraGuard/internal/model"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

func init() {
	factory.RegisterWriter("gob", func(def config.WriterDef, _ *config.Config, logger *zap.Logger) (model.Writer, error) {
		return NewGobWriter(def.Gob.RootPath, logger)
	})
}

const (
	dayLayout   = "2006-01-02"
	gobExt      = ".gob"
	summaryFile = "summary.json"
)

// DaySummary is kept next to each day's documents.
type DaySummary struct {
	Date      string         `json:"date"`
	Documents int            `json:"documents"`
	ByKind    map[string]int `json:"by_kind"`
	ByLabel   map[string]int `json:"by_label"`
	Findings  int            `json:"findings"`
}

// GobWriter stores each log document as its own gob file under a
// per-day directory and keeps a summary.json for the day.
type GobWriter struct {
	rootPath string
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewGobWriter creates rootPath if needed.
func NewGobWriter(rootPath string, logger *zap.Logger) (*GobWriter, error) {
	if rootPath == "" {
		return nil, fmt.Errorf("gob writer: root_path must be set")
	}
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &GobWriter{rootPath: rootPath, logger: logger}, nil
}

func (w *GobWriter) Name() string { return "gob" }

// Write encodes doc to <root>/<day>/<kind>_<report id>.gob and updates the day summary.
func (w *GobWriter) Write(ctx context.Context, doc *model.LogDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	day := doc.TS.UTC().Format(dayLayout)
	dayDir := filepath.Join(w.rootPath, day)
	if err := os.MkdirAll(dayDir, 0755); err != nil {
		return fmt.Errorf("failed to create day directory: %w", err)
	}

	filePath := filepath.Join(dayDir, fmt.Sprintf("%s_%s%s", doc.Kind, doc.ReportID, gobExt))
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create log file '%s': %w", filePath, err)
	}
	if err := gob.NewEncoder(file).Encode(doc); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode document to gob for file '%s': %w", filePath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close log file '%s': %w", filePath, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.updateSummary(dayDir, day, doc); err != nil {
		return err
	}
	w.logger.Debug("Wrote log document", zap.String("path", filePath))
	return nil
}

func (w *GobWriter) updateSummary(dayDir, day string, doc *model.LogDocument) error {
	path := filepath.Join(dayDir, summaryFile)
	summary := DaySummary{Date: day, ByKind: map[string]int{}, ByLabel: map[string]int{}}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &summary); err != nil {
			w.logger.Warn("Discarding unreadable day summary", zap.String("path", path), zap.Error(err))
			summary = DaySummary{Date: day, ByKind: map[string]int{}, ByLabel: map[string]int{}}
		}
	}

	summary.Documents++
	summary.ByKind[string(doc.Kind)]++
	if doc.Label != "" {
		summary.ByLabel[string(doc.Label)]++
	}
	summary.Findings += doc.Findings

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

func (w *GobWriter) Close() error { return nil }

// ReadGobDocuments loads every document stored under rootPath, oldest first.
func ReadGobDocuments(rootPath string) ([]*model.LogDocument, error) {
	var docs []*model.LogDocument
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, gobExt) {
			return nil
		}
		doc, err := readGob(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].TS.Before(docs[j].TS) })
	return docs, nil
}

func readGob(path string) (*model.LogDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var doc model.LogDocument
	if err := gob.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode '%s': %w", path, err)
	}
	return &doc, nil
}
