package writer

import (
	"SpectraGuard/internal/config"
	"SpectraGuard/internal/factory"
	"SpectraGuard/internal/model"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef, _ *config.Config, logger *zap.Logger) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse, logger)
	})
}

// ReportsTable is the ClickHouse table holding log documents.
const ReportsTable = "scan_reports"

const createTableStatement = `
CREATE TABLE IF NOT EXISTS scan_reports (
    ReportID  String,
    Timestamp DateTime64(3, 'UTC'),
    Kind      LowCardinality(String),
    Label     LowCardinality(String),
    Score     Float64,
    Findings  UInt32,
    Identity  String,
    Filename  String,
    Headline  String,
    Report    String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Kind, Timestamp);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseWriter connects and ensures the reports table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseWriter, error) {
	conn, err := OpenClickHouse(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	logger.Info("Connected to ClickHouse and ensured table exists", zap.String("table", ReportsTable))

	return &ClickHouseWriter{conn: conn, logger: logger}, nil
}

// OpenClickHouse opens and pings a ClickHouse connection.
func OpenClickHouse(ctx context.Context, cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (w *ClickHouseWriter) Name() string { return "clickhouse" }

// Write inserts one document into the scan_reports table.
func (w *ClickHouseWriter) Write(ctx context.Context, doc *model.LogDocument) error {
	row, err := reportRow(doc)
	if err != nil {
		return err
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+ReportsTable)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	if err := sendRow(batch, row); err != nil {
		return err
	}

	w.logger.Debug("Wrote document to ClickHouse", zap.String("report_id", doc.ReportID))
	return nil
}

// sendRow appends one row and sends the batch. A batch that never reaches
// Send is aborted so its connection goes back to the pool.
func sendRow(batch driver.Batch, row []any) error {
	if err := batch.Append(row...); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("failed to append document to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

// reportRow lays doc out in scan_reports column order.
func reportRow(doc *model.LogDocument) ([]any, error) {
	report, err := json.Marshal(doc.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return []any{
		doc.ReportID,
		doc.TS.UTC(),
		string(doc.Kind),
		string(doc.Label),
		doc.Score,
		uint32(doc.Findings),
		doc.Identity,
		doc.Filename,
		doc.Headline,
		string(report),
	}, nil
}
