package manager

import (
	"SpectraGuard/internal/alerter"
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/factory"
	"SpectraGuard/internal/geo"
	"SpectraGuard/internal/metrics"
	"SpectraGuard/internal/model"
	"SpectraGuard/internal/notification"
	_ "SpectraGuard/internal/probe" // Registers the nats writer
	"SpectraGuard/internal/scanner"
	_ "SpectraGuard/internal/writer" // Registers gob and clickhouse writers
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("scan queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("manager is stopped")
	// ErrScanTimeout is returned when a scan does not finish within the configured timeout.
	ErrScanTimeout = errors.New("scan timed out")
)

const subscriberBuffer = 16

// Job is one unit of scanning work.
type Job struct {
	Kind core.Kind
	Data []byte
	// Filename is recorded on the persisted document. Optional.
	Filename string
}

type result struct {
	report *core.ScanReport
	err    error
}

type request struct {
	ctx  context.Context
	job  Job
	done chan result
}

// Options wires a Manager to its collaborators. Only Logger is required
// besides the scanner; nil collaborators are skipped.
type Options struct {
	NumWorkers int
	QueueSize  int
	Timeout    time.Duration
	Writers    []model.Writer
	Alerter    *alerter.Alerter
	Geo        *geo.Enricher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Manager runs scans on a bounded worker pool and fans every report out to
// the writers, the alerter and live subscribers.
type Manager struct {
	scanner *scanner.Scanner
	opts    Options
	logger  *zap.Logger

	jobs     chan request
	workerWg sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	subsMu  sync.Mutex
	subs    map[int]chan *model.LogDocument
	nextSub int
}

// New creates a Manager around sc.
func New(sc *scanner.Scanner, opts Options) (*Manager, error) {
	if opts.NumWorkers < 1 {
		return nil, fmt.Errorf("manager needs at least one worker, got %d", opts.NumWorkers)
	}
	if opts.QueueSize < 0 {
		return nil, fmt.Errorf("manager queue size must not be negative, got %d", opts.QueueSize)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		scanner: sc,
		opts:    opts,
		logger:  opts.Logger,
		jobs:    make(chan request, opts.QueueSize),
		subs:    make(map[int]chan *model.LogDocument),
	}, nil
}

// NewManager builds the scanner and every configured collaborator from cfg.
func NewManager(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*Manager, error) {
	scanOpts, err := cfg.ScannerOptions()
	if err != nil {
		return nil, err
	}
	sc, err := scanner.New(scanOpts)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Manager.Timeout()
	if err != nil {
		return nil, err
	}

	writers, err := factory.CreateWriters(cfg, logger)
	if err != nil {
		return nil, err
	}

	var alertr *alerter.Alerter
	if cfg.Alerter.Enabled {
		alertr, err = alerter.NewAlerter(cfg.Alerter, notification.New(cfg.SMTP, logger), m, logger)
		if err != nil {
			closeWriters(writers, logger)
			return nil, fmt.Errorf("failed to create alerter: %w", err)
		}
		logger.Info("Alerter enabled and initialized", zap.Int("rules", len(cfg.Alerter.Rules)))
	}

	enricher, err := geo.Open(cfg.GeoIP, logger)
	if err != nil {
		closeWriters(writers, logger)
		return nil, err
	}

	return New(sc, Options{
		NumWorkers: cfg.Manager.NumWorkers,
		QueueSize:  cfg.Manager.QueueSize,
		Timeout:    timeout,
		Writers:    writers,
		Alerter:    alertr,
		Geo:        enricher,
		Metrics:    m,
		Logger:     logger,
	})
}

// Start launches the worker pool and the alerter.
func (m *Manager) Start() {
	if m.opts.Alerter != nil {
		m.opts.Alerter.Start()
	}
	m.workerWg.Add(m.opts.NumWorkers)
	for i := 0; i < m.opts.NumWorkers; i++ {
		go m.worker()
	}
	m.logger.Info("Manager started", zap.Int("workers", m.opts.NumWorkers), zap.Int("queue_size", m.opts.QueueSize), zap.Int("writers", len(m.opts.Writers)))
}

// Submit queues job and waits for its report. It never blocks on a full queue.
func (m *Manager) Submit(ctx context.Context, job Job) (*core.ScanReport, error) {
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, m.opts.Timeout, ErrScanTimeout)
		defer cancel()
	}
	req := request{ctx: ctx, job: job, done: make(chan result, 1)}

	m.mu.RLock()
	if m.stopped {
		m.mu.RUnlock()
		return nil, ErrStopped
	}
	select {
	case m.jobs <- req:
	default:
		m.mu.RUnlock()
		return nil, ErrQueueFull
	}
	m.mu.RUnlock()
	m.setQueueDepth()

	select {
	case res := <-req.done:
		return res.report, res.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Subscribe returns a channel receiving every persisted document and a func
// that ends the subscription. Slow subscribers miss documents.
func (m *Manager) Subscribe() (<-chan *model.LogDocument, func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan *model.LogDocument, subscriberBuffer)
	m.subs[id] = ch
	return ch, func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// Stop drains the queue, then flushes the alerter and closes every collaborator.
func (m *Manager) Stop() {
	m.logger.Info("Manager stopping...")
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.jobs)
	m.mu.Unlock()

	m.logger.Info("Waiting for workers to finish...")
	m.workerWg.Wait()

	if m.opts.Alerter != nil {
		m.opts.Alerter.Stop()
	}
	closeWriters(m.opts.Writers, m.logger)
	if err := m.opts.Geo.Close(); err != nil {
		m.logger.Warn("Failed to close geoip database", zap.Error(err))
	}

	m.subsMu.Lock()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.subsMu.Unlock()
	m.logger.Info("Manager stopped")
}

func (m *Manager) worker() {
	defer m.workerWg.Done()
	for req := range m.jobs {
		m.setQueueDepth()
		if err := req.ctx.Err(); err != nil {
			req.done <- result{err: context.Cause(req.ctx)}
			continue
		}
		report, err := m.process(req.ctx, req.job)
		req.done <- result{report: report, err: err}
	}
}

func (m *Manager) process(ctx context.Context, job Job) (*core.ScanReport, error) {
	start := time.Now()
	report, err := m.scan(job)
	if err != nil {
		if m.opts.Metrics != nil {
			m.opts.Metrics.ObserveFailure(job.Kind, outcome(err))
		}
		return nil, err
	}
	m.opts.Geo.Enrich(report)
	if m.opts.Metrics != nil {
		m.opts.Metrics.ObserveReport(report, time.Since(start))
	}

	doc := model.NewLogDocument(report, job.Filename)
	m.persist(context.WithoutCancel(ctx), doc)
	if m.opts.Alerter != nil {
		m.opts.Alerter.Observe(report)
	}
	m.broadcast(doc)

	m.logger.Info("Scan completed",
		zap.String("report_id", report.ID),
		zap.String("kind", string(report.Kind)),
		zap.String("headline", doc.Headline),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

func (m *Manager) scan(job Job) (*core.ScanReport, error) {
	switch job.Kind {
	case core.KindFile:
		return m.scanner.ScanFile(job.Data)
	case core.KindTraffic:
		return m.scanner.ScanCapture(job.Data)
	default:
		return nil, fmt.Errorf("unknown scan kind %q: %w", job.Kind, core.ErrInvalidInput)
	}
}

func (m *Manager) persist(ctx context.Context, doc *model.LogDocument) {
	for _, w := range m.opts.Writers {
		if err := w.Write(ctx, doc); err != nil {
			m.logger.Error("Error writing report", zap.String("writer", w.Name()), zap.String("report_id", doc.ReportID), zap.Error(err))
			if m.opts.Metrics != nil {
				m.opts.Metrics.WriterError(w.Name())
			}
		}
	}
}

func (m *Manager) broadcast(doc *model.LogDocument) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- doc:
		default:
		}
	}
}

func (m *Manager) setQueueDepth() {
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetQueueDepth(len(m.jobs))
	}
}

func outcome(err error) string {
	if errors.Is(err, core.ErrInvalidInput) {
		return "invalid_input"
	}
	return "error"
}

func closeWriters(writers []model.Writer, logger *zap.Logger) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			logger.Warn("Failed to close writer", zap.String("writer", w.Name()), zap.Error(err))
		}
	}
}
