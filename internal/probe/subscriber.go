package probe

import (
	"SpectraGuard/internal/config"
	"SpectraGuard/internal/model"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DocumentHandler processes one received log document.
type DocumentHandler func(doc *model.LogDocument)

// Subscriber consumes the report feed from a NATS subject.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	logger  *zap.Logger
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.NATSConfig, logger *zap.Logger) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("spectraguard-subscriber"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	logger.Info("Connected to NATS server", zap.String("url", cfg.URL))
	return &Subscriber{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Start subscribes to the subject and hands every decodable document to handler.
func (s *Subscriber) Start(handler DocumentHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		doc, err := Decode(msg.Data)
		if err != nil {
			s.logger.Warn("Dropping undecodable message", zap.Error(err))
			return
		}
		handler(doc)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	s.logger.Info("Subscribed to report feed", zap.String("subject", s.subject))
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.Warn("Failed to unsubscribe", zap.Error(err))
		}
	}
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("NATS connection closed")
	}
}
