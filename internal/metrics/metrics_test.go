package metrics

import (
	"SpectraGuard/internal/core/model"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveReport(t *testing.T) {
	m := New()

	m.ObserveReport(&model.ScanReport{
		Kind: model.KindFile,
		File: &model.FileVerdict{Score: 0.8, Label: model.LabelMalicious},
	}, 3*time.Millisecond)
	m.ObserveReport(&model.ScanReport{
		Kind: model.KindTraffic,
		Traffic: &model.TrafficVerdict{
			Summary: model.TrafficSummary{PacketCount: 999, MalformedCount: 1, Truncated: true},
			Findings: []model.Finding{
				{Kind: model.FindingSynFlood, Severity: "high"},
			},
		},
	}, time.Second)
	m.ObserveFailure(model.KindFile, "invalid_input")

	if got := testutil.ToFloat64(m.scans.WithLabelValues("file", "ok")); got != 1 {
		t.Errorf("Expected 1 ok file scan, got %v", got)
	}
	if got := testutil.ToFloat64(m.scans.WithLabelValues("file", "invalid_input")); got != 1 {
		t.Errorf("Expected 1 rejected file scan, got %v", got)
	}
	if got := testutil.ToFloat64(m.fileLabels.WithLabelValues("malicious")); got != 1 {
		t.Errorf("Expected 1 malicious verdict, got %v", got)
	}
	if got := testutil.ToFloat64(m.packets); got != 999 {
		t.Errorf("Expected 999 packets, got %v", got)
	}
	if got := testutil.ToFloat64(m.malformed); got != 1 {
		t.Errorf("Expected 1 malformed packet, got %v", got)
	}
	if got := testutil.ToFloat64(m.truncated); got != 1 {
		t.Errorf("Expected 1 truncated capture, got %v", got)
	}
	if got := testutil.ToFloat64(m.findings.WithLabelValues("syn_flood", "high")); got != 1 {
		t.Errorf("Expected 1 syn_flood finding, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetQueueDepth(3)
	m.WriterError("gob")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		"spectraguard_scan_queue_depth 3",
		`spectraguard_writer_errors_total{writer="gob"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Exposition is missing %q", want)
		}
	}
}
