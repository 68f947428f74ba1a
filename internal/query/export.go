package query

import (
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/model"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var csvHeader = []string{"report_id", "ts", "kind", "label", "score", "findings", "identity", "filename", "headline"}

// Export is the JSON export envelope.
type Export struct {
	Kind  core.Kind            `json:"kind"`
	Count int                  `json:"count"`
	Data  []*model.LogDocument `json:"data"`
}

// WriteExport writes docs to w in the given format.
func WriteExport(w io.Writer, format string, kind core.Kind, docs []*model.LogDocument) error {
	switch format {
	case FormatJSON:
		if docs == nil {
			docs = []*model.LogDocument{}
		}
		return json.NewEncoder(w).Encode(Export{Kind: kind, Count: len(docs), Data: docs})
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for _, doc := range docs {
			if err := cw.Write(csvRecord(doc)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// csvText prefixes cells a spreadsheet would evaluate as a formula.
func csvText(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

func csvRecord(doc *model.LogDocument) []string {
	return []string{
		doc.ReportID,
		doc.TS.UTC().Format(time.RFC3339),
		string(doc.Kind),
		string(doc.Label),
		strconv.FormatFloat(doc.Score, 'f', 4, 64),
		strconv.Itoa(doc.Findings),
		csvText(doc.Identity),
		csvText(doc.Filename),
		csvText(doc.Headline),
	}
}
