package query

import (
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/model"
	"SpectraGuard/internal/writer"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := writer.OpenClickHouse(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func (q *clickhouseQuerier) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	row := q.conn.QueryRow(ctx, `
		SELECT
			countIf(Kind = 'file'),
			countIf(Kind = 'file' AND Label = 'malicious'),
			countIf(Kind = 'traffic'),
			countIf(Kind = 'traffic' AND Findings > 0)
		FROM `+writer.ReportsTable)
	if err := row.Scan(&c.FileScans, &c.MaliciousFiles, &c.TrafficAnalyses, &c.TrafficThreats); err != nil {
		return c, fmt.Errorf("failed to scan counts: %w", err)
	}
	return c, nil
}

// documentsQuery builds the filtered select for f.
func documentsQuery(f Filter) (string, []any) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT ReportID, Timestamp, Kind, Label, Score, Findings, Identity, Filename, Headline, Report
		FROM ` + writer.ReportsTable)

	var whereClauses []string
	args := []any{}
	if f.Kind != "" {
		whereClauses = append(whereClauses, "Kind = ?")
		args = append(args, string(f.Kind))
	}
	if !f.Since.IsZero() {
		whereClauses = append(whereClauses, "Timestamp >= ?")
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		whereClauses = append(whereClauses, "Timestamp < ?")
		args = append(args, f.Until.UTC())
	}
	if len(whereClauses) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY Timestamp DESC")
	if f.Limit > 0 {
		queryBuilder.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}
	return queryBuilder.String(), args
}

func (q *clickhouseQuerier) Documents(ctx context.Context, f Filter) ([]*model.LogDocument, error) {
	query, args := documentsQuery(f)
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var docs []*model.LogDocument
	for rows.Next() {
		var (
			doc         model.LogDocument
			ts          time.Time
			kind, label string
			findings    uint32
			report      string
		)
		if err := rows.Scan(&doc.ReportID, &ts, &kind, &label, &doc.Score, &findings,
			&doc.Identity, &doc.Filename, &doc.Headline, &report); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		doc.TS = ts.UTC()
		doc.Kind = core.Kind(kind)
		doc.Label = core.Label(label)
		doc.Findings = int(findings)
		if report != "" {
			var r core.ScanReport
			if err := json.Unmarshal([]byte(report), &r); err != nil {
				return nil, fmt.Errorf("failed to decode report %s: %w", doc.ReportID, err)
			}
			doc.Report = &r
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (q *clickhouseQuerier) Store() string {
	return "clickhouse"
}

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}
