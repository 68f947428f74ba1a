package alerter

import (
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/metrics"
	"SpectraGuard/internal/model"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gomarkdown/markdown"
	"go.uber.org/zap"
)

type triggered struct {
	rule   string
	report *core.ScanReport
}

// Alerter evaluates scan reports against the configured rules and sends one
// consolidated notification per check interval for the reports that matched.
type Alerter struct {
	rules         []config.AlerterRule
	notifier      model.Notifier
	metrics       *metrics.Metrics
	logger        *zap.Logger
	checkInterval time.Duration

	mu      sync.Mutex
	pending []triggered

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAlerter creates a new Alerter instance. m may be nil.
func NewAlerter(cfg config.AlerterConfig, notifier model.Notifier, m *metrics.Metrics, logger *zap.Logger) (*Alerter, error) {
	interval, err := cfg.Interval()
	if err != nil {
		return nil, err
	}
	return &Alerter{
		rules:         cfg.Rules,
		notifier:      notifier,
		metrics:       m,
		logger:        logger,
		checkInterval: interval,
		stopChan:      make(chan struct{}),
	}, nil
}

// Matches reports whether r triggers rule.
func Matches(rule config.AlerterRule, r *core.ScanReport) bool {
	if rule.Kind != r.Kind {
		return false
	}
	switch r.Kind {
	case core.KindFile:
		return r.File != nil && r.File.Label.Rank() >= rule.MinLabel.Rank()
	case core.KindTraffic:
		return r.Traffic != nil && len(r.Traffic.Findings) >= rule.MinFindings
	}
	return false
}

// Observe queues r under the first rule it matches. It reports whether r matched.
func (a *Alerter) Observe(r *core.ScanReport) bool {
	for _, rule := range a.rules {
		if Matches(rule, r) {
			a.mu.Lock()
			a.pending = append(a.pending, triggered{rule: rule.Name, report: r})
			a.mu.Unlock()
			return true
		}
	}
	return false
}

// Start begins the periodic flush of triggered alerts.
func (a *Alerter) Start() {
	a.logger.Info("Alerter started", zap.Duration("check_interval", a.checkInterval), zap.Int("rules", len(a.rules)))
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.flush()
			case <-a.stopChan:
				return
			}
		}
	}()
}

// Stop ends the evaluation loop and sends whatever is still pending.
func (a *Alerter) Stop() {
	a.logger.Info("Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
	a.flush()
}

func (a *Alerter) flush() {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	a.logger.Info("Alerter evaluation completed", zap.Int("triggered", len(batch)))

	body := markdown.ToHTML(summaryMarkdown(batch), nil, nil)
	subject := fmt.Sprintf("SpectraGuard Alert Summary (%d Triggered)", len(batch))
	if err := a.notifier.Send(subject, string(body)); err != nil {
		a.logger.Error("Failed to send consolidated alert notification", zap.Error(err))
		return
	}
	if a.metrics != nil {
		a.metrics.AlertSent()
	}
	a.logger.Info("Consolidated alert notification sent")
}

func summaryMarkdown(batch []triggered) []byte {
	var b strings.Builder
	b.WriteString("# SpectraGuard Alert Summary\n\n")
	fmt.Fprintf(&b, "The following %d report(s) triggered alert rules during the last check.\n", len(batch))
	for _, t := range batch {
		r := t.report
		fmt.Fprintf(&b, "\n## %s\n\n", t.rule)
		fmt.Fprintf(&b, "- **Report**: `%s`\n", r.ID)
		fmt.Fprintf(&b, "- **Generated**: %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "- **Input**: `%s`\n", r.InputIdentity)
		fmt.Fprintf(&b, "- **Verdict**: %s\n", r.Headline())
		if r.Traffic != nil {
			for _, f := range r.Traffic.Findings {
				fmt.Fprintf(&b, "  - %s from `%s` (%s): %d SYN / %d SYN-ACK to %d destination(s)\n",
					f.Kind, f.Source, f.Severity, f.Evidence.SynCount, f.Evidence.SynAckCount, f.Evidence.DistinctDestinations)
			}
		}
	}
	return []byte(b.String())
}
