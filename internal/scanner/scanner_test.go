package scanner

import (
	"SpectraGuard/internal/core/model"
	"SpectraGuard/internal/engine/protocol"
	"SpectraGuard/pkg/pcap"
	"bytes"
	"errors"
	"net/netip"
	"slices"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

func newScanner(t *testing.T, opts Options) *Scanner {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.now = func() time.Time { return fixedNow }
	return s
}

// floodCapture writes syns SYNs from attacker to a single victim port and
// answers synAcks of them, plus any extra raw frames.
func floodCapture(t *testing.T, syns, synAcks int, extra ...[]byte) []byte {
	t.Helper()
	attacker := netip.MustParseAddr("198.51.100.66")
	victim := netip.MustParseAddrPort("203.0.113.10:80")

	var buf bytes.Buffer
	w, err := pcap.NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	write := func(f protocol.Frame) {
		data, err := protocol.Serialize(f)
		if err != nil {
			t.Fatalf("Serialize failed: %v", err)
		}
		ts = ts.Add(time.Millisecond)
		if err := w.WriteFrame(ts, data); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}
	for i := 0; i < syns; i++ {
		src := netip.AddrPortFrom(attacker, uint16(30000+i))
		write(protocol.Frame{Src: src, Dst: victim, Protocol: model.ProtoTCP, Flags: model.FlagSYN})
		if i < synAcks {
			write(protocol.Frame{Src: victim, Dst: src, Protocol: model.ProtoTCP, Flags: model.FlagSYN | model.FlagACK})
		}
	}
	for _, raw := range extra {
		ts = ts.Add(time.Millisecond)
		if err := w.WriteFrame(ts, raw); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}
	return buf.Bytes()
}

func TestScanFile(t *testing.T) {
	s := newScanner(t, DefaultOptions())
	data := []byte(strings.Repeat("plain old text file, nothing to see here\n", 20))

	r, err := s.ScanFile(data)
	if err != nil {
		t.Fatalf("ScanFile failed: %v", err)
	}
	if r.Kind != model.KindFile || r.File == nil || r.Traffic != nil {
		t.Fatalf("Unexpected report shape: %+v", r)
	}
	if r.InputIdentity != Identity(data) || len(r.InputIdentity) != 64 {
		t.Errorf("Unexpected identity %q", r.InputIdentity)
	}
	if r.ID == "" {
		t.Error("Report ID should be set")
	}
	if r.GeneratedAt.Location() != time.UTC || !r.GeneratedAt.Equal(fixedNow) {
		t.Errorf("Expected GeneratedAt %v in UTC, got %v", fixedNow, r.GeneratedAt)
	}
	if r.File.Label != model.LabelBenign {
		t.Errorf("Expected plain text to be benign, got %s (%f)", r.File.Label, r.File.Score)
	}

	again, err := s.ScanFile(data)
	if err != nil {
		t.Fatalf("ScanFile failed: %v", err)
	}
	if again.ID == r.ID {
		t.Error("Each report should get its own ID")
	}
	if again.File.Score != r.File.Score {
		t.Errorf("Scores differ across calls: %f vs %f", r.File.Score, again.File.Score)
	}
}

func TestScanFile_PaddedSuspiciousStrings(t *testing.T) {
	s := newScanner(t, DefaultOptions())
	apis := "CreateRemoteThread VirtualAlloc WriteProcessMemory"
	plain := append([]byte("MZ\x90\x00\x03\x00\x00\x00"), apis...)
	padded := append([]byte("MZ\x90\x00\x03\x00\x00\x00"), strings.Repeat("A", 1024)+apis...)

	var scores []float64
	for _, data := range [][]byte{plain, padded} {
		r, err := s.ScanFile(data)
		if err != nil {
			t.Fatalf("ScanFile failed: %v", err)
		}
		for _, sig := range r.File.Signals {
			if sig.Name == "suspicious_strings" && sig.SubScore != 1 {
				t.Errorf("Expected every API name to count, got sub-score %f (%q)", sig.SubScore, sig.Observed)
			}
		}
		scores = append(scores, r.File.Score)
	}
	if scores[0] != scores[1] {
		t.Errorf("Padding changed the score from %f to %f", scores[0], scores[1])
	}
}

func TestScanFile_Empty(t *testing.T) {
	s := newScanner(t, DefaultOptions())
	if _, err := s.ScanFile(nil); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestScanCapture_SynFlood(t *testing.T) {
	s := newScanner(t, DefaultOptions())

	r, err := s.ScanCapture(floodCapture(t, 150, 5))
	if err != nil {
		t.Fatalf("ScanCapture failed: %v", err)
	}
	if r.Kind != model.KindTraffic || r.Traffic == nil {
		t.Fatalf("Unexpected report shape: %+v", r)
	}
	if n := len(r.Traffic.Findings); n != 1 {
		t.Fatalf("Expected one finding, got %d", n)
	}
	if src := r.Traffic.Findings[0].Source; src != "198.51.100.66" {
		t.Errorf("Unexpected finding source %s", src)
	}
	if r.Traffic.Summary.PacketCount != 155 {
		t.Errorf("Expected 155 packets, got %d", r.Traffic.Summary.PacketCount)
	}

	r, err = s.ScanCapture(floodCapture(t, 50, 5))
	if err != nil {
		t.Fatalf("ScanCapture failed: %v", err)
	}
	if len(r.Traffic.Findings) != 0 {
		t.Errorf("Expected no finding for 50 SYNs, got %+v", r.Traffic.Findings)
	}
}

func TestScanCapture_MalformedFrame(t *testing.T) {
	// Ethernet header announcing IPv4, followed by three bytes.
	bad := []byte{
		0x00, 0x66, 0x77, 0x88, 0x99, 0xaa,
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0x08, 0x00,
		0x45, 0x00, 0x00,
	}
	s := newScanner(t, DefaultOptions())

	r, err := s.ScanCapture(floodCapture(t, 10, 0, bad))
	if err != nil {
		t.Fatalf("ScanCapture failed: %v", err)
	}
	sum := r.Traffic.Summary
	if sum.MalformedCount != 1 {
		t.Errorf("Expected malformed_count 1, got %d", sum.MalformedCount)
	}
	if sum.PacketCount != 10 {
		t.Errorf("Expected 10 packets over the good frames, got %d", sum.PacketCount)
	}
}

func TestScanCapture_RejectsGarbage(t *testing.T) {
	s := newScanner(t, DefaultOptions())
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("this is not a capture file at all"),
	} {
		if _, err := s.ScanCapture(data); !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestScanPackets_Truncated(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxPackets = 3
	s := newScanner(t, opts)

	pkts := make([]model.Packet, 5)
	for i := range pkts {
		pkts[i] = model.Packet{
			SrcAddr:  netip.MustParseAddr("10.0.0.1"),
			DstAddr:  netip.MustParseAddr("10.0.0.2"),
			Protocol: model.ProtoUDP,
			Length:   100,
		}
	}
	r := s.ScanPackets("capture-42", slices.Values(pkts))
	if !r.Traffic.Summary.Truncated {
		t.Error("Expected a truncated summary")
	}
	if r.Traffic.Summary.PacketCount != 3 {
		t.Errorf("Expected 3 packets, got %d", r.Traffic.Summary.PacketCount)
	}
	if r.InputIdentity != "capture-42" {
		t.Errorf("Expected the capture id as identity, got %q", r.InputIdentity)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	opts := DefaultOptions()
	opts.Scoring.VerdictThreshold = 2
	if _, err := New(opts); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}

	opts = DefaultOptions()
	opts.MaxPackets = -1
	if _, err := New(opts); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for max_packets, got %v", err)
	}
}
