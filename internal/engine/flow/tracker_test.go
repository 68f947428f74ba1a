package flow

import (
	"SpectraGuard/internal/core/model"
	"net/netip"
	"reflect"
	"slices"
	"testing"
	"time"
)

var (
	client = netip.MustParseAddr("10.1.0.5")
	server = netip.MustParseAddr("10.1.0.9")
	t0     = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func tcp(src, dst netip.Addr, sport, dport uint16, flags model.TCPFlags, at time.Duration) model.Packet {
	return model.Packet{
		Timestamp: t0.Add(at),
		SrcAddr:   src,
		DstAddr:   dst,
		SrcPort:   sport,
		DstPort:   dport,
		Protocol:  model.ProtoTCP,
		Flags:     flags,
		Length:    60,
	}
}

func handshake() []model.Packet {
	return []model.Packet{
		tcp(client, server, 5555, 80, model.FlagSYN, 0),
		tcp(server, client, 80, 5555, model.FlagSYN|model.FlagACK, time.Millisecond),
		tcp(client, server, 5555, 80, model.FlagACK, 2*time.Millisecond),
		tcp(client, server, 5555, 80, model.FlagACK|model.FlagPSH, 3*time.Millisecond),
	}
}

func newTracker(t *testing.T, limit int) *Tracker {
	t.Helper()
	tr, err := NewTracker(limit)
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}
	return tr
}

func TestIngest_BidirectionalFlow(t *testing.T) {
	res := newTracker(t, 0).Ingest(slices.Values(handshake()))

	if len(res.Flows) != 1 {
		t.Fatalf("Expected both directions in one flow, got %d flows", len(res.Flows))
	}
	key := model.NewFlowKey(
		model.Endpoint{Addr: server, Port: 80},
		model.Endpoint{Addr: client, Port: 5555},
		model.ProtoTCP,
	)
	st, ok := res.Flows[key]
	if !ok {
		t.Fatalf("Flow %s not found", key)
	}
	if st.PacketCount != 4 || st.TotalBytes != 240 {
		t.Errorf("Unexpected counters: packets %d bytes %d", st.PacketCount, st.TotalBytes)
	}
	if st.SynCount != 1 || st.SynAckCount != 1 {
		t.Errorf("Expected 1 SYN and 1 SYN-ACK, got %d and %d", st.SynCount, st.SynAckCount)
	}
	if st.Initiator.Addr != client {
		t.Errorf("Expected initiator %s, got %s", client, st.Initiator)
	}
	if !st.FirstSeen.Equal(t0) || !st.LastSeen.Equal(t0.Add(3*time.Millisecond)) {
		t.Errorf("Unexpected time bounds %v - %v", st.FirstSeen, st.LastSeen)
	}
}

func TestIngest_InitiatorIsSynSender(t *testing.T) {
	// The SYN-ACK arrives first in capture order.
	pkts := handshake()
	pkts[0], pkts[1] = pkts[1], pkts[0]

	res := newTracker(t, 0).Ingest(slices.Values(pkts))
	for _, st := range res.Flows {
		if st.Initiator.Addr != client {
			t.Errorf("Expected initiator %s, got %s", client, st.Initiator)
		}
	}
}

func TestIngest_OutOfOrderTimestamps(t *testing.T) {
	pkts := []model.Packet{
		tcp(client, server, 1, 2, model.FlagACK, 5*time.Second),
		tcp(client, server, 1, 2, model.FlagACK, 1*time.Second),
		tcp(client, server, 1, 2, model.FlagACK, 9*time.Second),
	}
	res := newTracker(t, 0).Ingest(slices.Values(pkts))
	for _, st := range res.Flows {
		if !st.FirstSeen.Equal(t0.Add(time.Second)) || !st.LastSeen.Equal(t0.Add(9*time.Second)) {
			t.Errorf("Unexpected time bounds %v - %v", st.FirstSeen, st.LastSeen)
		}
	}
}

func TestIngest_IndependentCalls(t *testing.T) {
	tr := newTracker(t, 0)
	pkts := append(handshake(),
		tcp(client, server, 6000, 443, model.FlagSYN, 4*time.Millisecond),
		model.Packet{Protocol: model.ProtoUDP, SrcAddr: client, DstAddr: server, SrcPort: 53, DstPort: 53, Length: 80},
	)

	first := tr.Ingest(slices.Values(pkts))
	second := tr.Ingest(slices.Values(pkts))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Two ingests of the same packets differ:\n%+v\n%+v", first, second)
	}
	if len(first.Flows) != 3 {
		t.Errorf("Expected 3 flows, got %d", len(first.Flows))
	}
}

func TestIngest_MalformedTolerance(t *testing.T) {
	pkts := make([]model.Packet, 0, 1000)
	for i := 0; i < 1000; i++ {
		if i == 500 {
			pkts = append(pkts, model.Packet{Malformed: true, Length: 17})
			continue
		}
		pkts = append(pkts, tcp(client, server, 5555, 80, model.FlagACK, time.Duration(i)*time.Millisecond))
	}

	res := newTracker(t, 0).Ingest(slices.Values(pkts))
	if res.MalformedCount != 1 {
		t.Errorf("Expected malformed_count 1, got %d", res.MalformedCount)
	}
	if res.Processed != 1000 {
		t.Errorf("Expected 1000 processed, got %d", res.Processed)
	}
	var total uint64
	for _, st := range res.Flows {
		total += st.PacketCount
	}
	if total != 999 {
		t.Errorf("Expected 999 packets across flows, got %d", total)
	}
}

func TestIngest_NonIPCounted(t *testing.T) {
	pkts := append(handshake(), model.Packet{Length: 42})
	res := newTracker(t, 0).Ingest(slices.Values(pkts))
	if res.NonIPCount != 1 || res.MalformedCount != 0 {
		t.Errorf("Expected one non-IP packet, got non_ip %d malformed %d", res.NonIPCount, res.MalformedCount)
	}
}

func TestIngest_Truncation(t *testing.T) {
	const total = 2_000_000
	const limit = 1_000_000

	seq := func(yield func(model.Packet) bool) {
		for i := 0; i < total; i++ {
			p := tcp(client, server, uint16(1024+i%8), 80, model.FlagACK, time.Duration(i)*time.Microsecond)
			if !yield(p) {
				return
			}
		}
	}

	res := newTracker(t, limit).Ingest(seq)
	if !res.Truncated {
		t.Error("Expected truncated result")
	}
	if res.Processed != limit {
		t.Errorf("Expected %d processed, got %d", limit, res.Processed)
	}
	var packets uint64
	for _, st := range res.Flows {
		packets += st.PacketCount
	}
	if packets != limit {
		t.Errorf("Expected %d packets in flows, got %d", limit, packets)
	}
}

func TestIngest_ExactlyMaxIsNotTruncated(t *testing.T) {
	res := newTracker(t, 4).Ingest(slices.Values(handshake()))
	if res.Truncated {
		t.Error("A capture of exactly max packets should not be truncated")
	}
}

func TestNewTracker_RejectsNegativeMax(t *testing.T) {
	if _, err := NewTracker(-1); err == nil {
		t.Error("Expected an error for negative max_packets")
	}
}
