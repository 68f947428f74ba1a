package probe

import (
	"SpectraGuard/internal/config"
	"SpectraGuard/internal/factory"
	"SpectraGuard/internal/model"
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func init() {
	factory.RegisterWriter(factory.NATSWriterType, func(_ config.WriterDef, cfg *config.Config, logger *zap.Logger) (model.Writer, error) {
		return NewPublisher(cfg.NATS, logger)
	})
}

// Publisher publishes log documents to a NATS subject. It is a model.Writer.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.NATSConfig, logger *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("spectraguard-publisher"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	logger.Info("Connected to NATS server", zap.String("url", cfg.URL), zap.String("subject", cfg.Subject))
	return &Publisher{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

func (p *Publisher) Name() string { return "nats" }

// Write serializes doc and publishes it to the configured subject.
func (p *Publisher) Write(ctx context.Context, doc *model.LogDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return err
	}
	p.logger.Info("NATS connection drained and closed")
	return nil
}
