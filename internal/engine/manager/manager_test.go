package manager

import (
	"SpectraGuard/internal/alerter"
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/engine/protocol"
	"SpectraGuard/internal/metrics"
	"SpectraGuard/internal/model"
	"SpectraGuard/internal/scanner"
	"SpectraGuard/pkg/pcap"
	"bytes"
	"context"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

type recordingWriter struct {
	mu   sync.Mutex
	docs []*model.LogDocument
	err  error
}

func (w *recordingWriter) Name() string { return "recording" }

func (w *recordingWriter) Write(_ context.Context, doc *model.LogDocument) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.docs = append(w.docs, doc)
	return w.err
}

func (w *recordingWriter) Close() error { return nil }

type countingNotifier struct {
	mu    sync.Mutex
	sends int
}

func (n *countingNotifier) Send(string, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends++
	return nil
}

func newManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	sc, err := scanner.New(scanner.DefaultOptions())
	if err != nil {
		t.Fatalf("scanner.New failed: %v", err)
	}
	if opts.NumWorkers == 0 {
		opts.NumWorkers = 2
	}
	m, err := New(sc, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func synCapture(t *testing.T, syns int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := pcap.NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	victim := netip.MustParseAddrPort("203.0.113.10:443")
	for i := 0; i < syns; i++ {
		data, err := protocol.Serialize(protocol.Frame{
			Src:      netip.AddrPortFrom(netip.MustParseAddr("198.51.100.66"), uint16(40000+i)),
			Dst:      victim,
			Protocol: core.ProtoTCP,
			Flags:    core.FlagSYN,
		})
		if err != nil {
			t.Fatalf("Serialize failed: %v", err)
		}
		ts = ts.Add(time.Millisecond)
		if err := w.WriteFrame(ts, data); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}
	return buf.Bytes()
}

func TestSubmit_File(t *testing.T) {
	w := &recordingWriter{}
	reg := metrics.New()
	m := newManager(t, Options{QueueSize: 4, Writers: []model.Writer{w}, Metrics: reg})
	m.Start()
	defer m.Stop()

	docs, cancel := m.Subscribe()
	defer cancel()

	r, err := m.Submit(context.Background(), Job{Kind: core.KindFile, Data: []byte(strings.Repeat("hello world ", 50)), Filename: "notes.txt"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if r.Kind != core.KindFile || r.File == nil {
		t.Fatalf("Unexpected report %+v", r)
	}

	select {
	case doc := <-docs:
		if doc.ReportID != r.ID || doc.Filename != "notes.txt" {
			t.Errorf("Subscriber got the wrong document %+v", doc)
		}
	case <-time.After(time.Second):
		t.Fatal("Subscriber did not receive the document")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.docs) != 1 || w.docs[0].ReportID != r.ID {
		t.Errorf("Writer did not receive the document: %d docs", len(w.docs))
	}
	if n, err := testutil.GatherAndCount(reg.Registry(), "spectraguard_scans_total"); err != nil || n != 1 {
		t.Errorf("Expected one scans_total series, got %d (%v)", n, err)
	}
}

func TestSubmit_CaptureTriggersAlert(t *testing.T) {
	n := &countingNotifier{}
	a, err := alerter.NewAlerter(config.AlerterConfig{
		CheckInterval: "1h",
		Rules:         []config.AlerterRule{{Name: "SYN flood", Kind: core.KindTraffic, MinFindings: 1}},
	}, n, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAlerter failed: %v", err)
	}
	m := newManager(t, Options{QueueSize: 4, Alerter: a})
	m.Start()

	r, err := m.Submit(context.Background(), Job{Kind: core.KindTraffic, Data: synCapture(t, 150)})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(r.Traffic.Findings) != 1 {
		t.Fatalf("Expected one finding, got %+v", r.Traffic.Findings)
	}

	m.Stop()
	if n.sends != 1 {
		t.Errorf("Expected the alert to be flushed on stop, got %d sends", n.sends)
	}
}

func TestSubmit_InvalidInput(t *testing.T) {
	w := &recordingWriter{}
	m := newManager(t, Options{QueueSize: 4, Writers: []model.Writer{w}})
	m.Start()
	defer m.Stop()

	if _, err := m.Submit(context.Background(), Job{Kind: core.KindFile}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for an empty file, got %v", err)
	}
	if _, err := m.Submit(context.Background(), Job{Kind: "email", Data: []byte("x")}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for an unknown kind, got %v", err)
	}
	if len(w.docs) != 0 {
		t.Errorf("Rejected scans must not be persisted")
	}
}

func TestSubmit_WriterErrorIsCounted(t *testing.T) {
	w := &recordingWriter{err: errors.New("disk full")}
	reg := metrics.New()
	m := newManager(t, Options{QueueSize: 4, Writers: []model.Writer{w}, Metrics: reg})
	m.Start()
	defer m.Stop()

	if _, err := m.Submit(context.Background(), Job{Kind: core.KindFile, Data: []byte("some bytes here")}); err != nil {
		t.Fatalf("A writer failure must not fail the scan: %v", err)
	}
	if n, _ := testutil.GatherAndCount(reg.Registry(), "spectraguard_writer_errors_total"); n != 1 {
		t.Errorf("Expected one writer_errors_total series, got %d", n)
	}
}

func TestSubmit_QueueFull(t *testing.T) {
	m := newManager(t, Options{QueueSize: 0})
	if _, err := m.Submit(context.Background(), Job{Kind: core.KindFile, Data: []byte("x")}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull without free workers, got %v", err)
	}
}

func TestSubmit_Timeout(t *testing.T) {
	m := newManager(t, Options{QueueSize: 1, Timeout: 20 * time.Millisecond})
	if _, err := m.Submit(context.Background(), Job{Kind: core.KindFile, Data: []byte("x")}); !errors.Is(err, ErrScanTimeout) {
		t.Errorf("Expected ErrScanTimeout, got %v", err)
	}
}

func TestSubmit_AfterStop(t *testing.T) {
	m := newManager(t, Options{QueueSize: 1})
	m.Start()
	m.Stop()
	m.Stop()
	if _, err := m.Submit(context.Background(), Job{Kind: core.KindFile, Data: []byte("x")}); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
}

func TestStop_ClosesSubscribers(t *testing.T) {
	m := newManager(t, Options{QueueSize: 1})
	m.Start()
	docs, cancel := m.Subscribe()
	m.Stop()
	if _, ok := <-docs; ok {
		t.Error("Expected the subscription to be closed")
	}
	cancel()
}

func TestNew_RejectsBadPool(t *testing.T) {
	sc, _ := scanner.New(scanner.DefaultOptions())
	if _, err := New(sc, Options{NumWorkers: 0}); err == nil {
		t.Error("Expected an error without workers")
	}
	if _, err := New(sc, Options{NumWorkers: 1, QueueSize: -1}); err == nil {
		t.Error("Expected an error for a negative queue")
	}
}

func TestNewManager_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Writers = []config.WriterDef{{Type: "gob", Enabled: true, Gob: config.GobConfig{RootPath: t.TempDir()}}}
	m, err := NewManager(cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	m.Start()
	defer m.Stop()
	if _, err := m.Submit(context.Background(), Job{Kind: core.KindFile, Data: []byte("MZ fake header")}); err != nil {
		t.Errorf("Submit failed: %v", err)
	}
}
