package factory

import (
	"SpectraGuard/internal/config"
	"SpectraGuard/internal/model"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// NATSWriterType is the registry name of the report feed. It is created from
// the nats section rather than from a writers entry.
const NATSWriterType = "nats"

// WriterFactory builds one writer from its definition.
type WriterFactory func(def config.WriterDef, cfg *config.Config, logger *zap.Logger) (model.Writer, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]WriterFactory)
)

// RegisterWriter registers a writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered returns the registered writer types in sorted order.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateWriters builds every enabled writer in cfg, plus the NATS feed when
// it is enabled. On failure the writers built so far are closed.
func CreateWriters(cfg *config.Config, logger *zap.Logger) ([]model.Writer, error) {
	defs := make([]config.WriterDef, 0, len(cfg.Writers)+1)
	for _, def := range cfg.Writers {
		if def.Enabled {
			defs = append(defs, def)
		}
	}
	if cfg.NATS.Enabled {
		defs = append(defs, config.WriterDef{Type: NATSWriterType, Enabled: true})
	}

	var writers []model.Writer
	for _, def := range defs {
		logger.Info("Creating report writer", zap.String("type", def.Type))

		mu.RLock()
		factory, ok := registry[def.Type]
		mu.RUnlock()
		if !ok {
			closeAll(writers, logger)
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		w, err := factory(def, cfg, logger)
		if err != nil {
			closeAll(writers, logger)
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}
		writers = append(writers, w)
	}
	return writers, nil
}

func closeAll(writers []model.Writer, logger *zap.Logger) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			logger.Warn("Failed to close writer", zap.String("writer", w.Name()), zap.Error(err))
		}
	}
}
