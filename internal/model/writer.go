package model

import "context"

// Writer defines a generic interface for persisting scan log documents.
type Writer interface {
	// Name identifies the writer in logs and metrics.
	Name() string

	// Write persists one document. Implementations must be safe for concurrent use.
	Write(ctx context.Context, doc *LogDocument) error

	// Close flushes buffered state and releases connections.
	Close() error
}
