// Package traffic applies rate and ratio heuristics to reconstructed flows.
package traffic

import (
	"SpectraGuard/internal/core/model"
	"SpectraGuard/internal/engine/flow"
	"cmp"
	"fmt"
	"math"
	"net/netip"
	"slices"
	"time"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Config holds the SYN-flood gate and summary options.
type Config struct {
	// A source is flagged when syn/syn_ack exceeds SynRatioMultiplier and
	// syn exceeds SynCountFloor.
	SynRatioMultiplier float64
	SynCountFloor      uint64
	// Window bounds the span of flows aggregated per source. Zero means the whole capture.
	Window     time.Duration
	TopTalkers int
}

// DefaultConfig returns the stock gate: 10x ratio over a floor of 100 SYNs.
func DefaultConfig() Config {
	return Config{
		SynRatioMultiplier: 10,
		SynCountFloor:      100,
		TopTalkers:         5,
	}
}

// Validate rejects negative or non-finite settings.
func (c Config) Validate() error {
	if c.SynRatioMultiplier < 0 || math.IsNaN(c.SynRatioMultiplier) || math.IsInf(c.SynRatioMultiplier, 0) {
		return fmt.Errorf("%w: syn_ratio_multiplier must be a non-negative number, got %v", model.ErrInvalidConfig, c.SynRatioMultiplier)
	}
	if c.Window < 0 {
		return fmt.Errorf("%w: window must not be negative, got %s", model.ErrInvalidConfig, c.Window)
	}
	if c.TopTalkers < 0 {
		return fmt.Errorf("%w: top_talkers must not be negative, got %d", model.ErrInvalidConfig, c.TopTalkers)
	}
	return nil
}

// Engine evaluates flow maps. It keeps no state between calls.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// EvaluateResult evaluates an ingest result over the configured window and
// carries its malformed, non-IP and truncation counters into the summary.
func (e *Engine) EvaluateResult(res *flow.Result) *model.TrafficVerdict {
	v := e.Evaluate(res.Flows, e.cfg.Window)
	v.Summary.MalformedCount = res.MalformedCount
	v.Summary.NonIPCount = res.NonIPCount
	v.Summary.Truncated = res.Truncated
	return v
}

// Evaluate flags SYN-flood sources and summarizes the capture. A window of
// zero or less aggregates each source over the whole capture.
func (e *Engine) Evaluate(flows map[model.FlowKey]*model.FlowState, window time.Duration) *model.TrafficVerdict {
	bySource := make(map[netip.Addr][]sourceFlow)
	for key, st := range flows {
		if st.SynCount == 0 && st.SynAckCount == 0 {
			continue
		}
		src := st.Initiator.Addr
		bySource[src] = append(bySource[src], sourceFlow{key: key, state: st})
	}

	findings := []model.Finding{}
	for src, sf := range bySource {
		ev := busiestWindow(sf, window)
		if !e.gate(ev.SynCount, ev.SynAckCount) {
			continue
		}
		severity := SeverityMedium
		if ev.SynCount >= 2*e.cfg.SynCountFloor {
			severity = SeverityHigh
		}
		findings = append(findings, model.Finding{
			Kind:     model.FindingSynFlood,
			Source:   src.String(),
			Severity: severity,
			Evidence: ev,
		})
	}
	slices.SortFunc(findings, func(a, b model.Finding) int {
		if c := cmp.Compare(b.Evidence.SynCount, a.Evidence.SynCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Source, b.Source)
	})

	return &model.TrafficVerdict{
		Summary:  e.summarize(flows),
		Findings: findings,
	}
}

func (e *Engine) gate(syn, synAck uint64) bool {
	if syn <= e.cfg.SynCountFloor {
		return false
	}
	if synAck == 0 {
		return true
	}
	return float64(syn)/float64(synAck) > e.cfg.SynRatioMultiplier
}

type sourceFlow struct {
	key   model.FlowKey
	state *model.FlowState
}

// busiestWindow returns the evidence of the window holding the most SYNs,
// the earliest one on ties.
func busiestWindow(sf []sourceFlow, window time.Duration) model.SynEvidence {
	slices.SortFunc(sf, func(a, b sourceFlow) int {
		if c := a.state.FirstSeen.Compare(b.state.FirstSeen); c != 0 {
			return c
		}
		return compareKeys(a.key, b.key)
	})

	lo, hi := 0, len(sf)
	if window > 0 {
		var syn, synAck, bestSyn uint64
		bestLo, bestHi := 0, 0
		j := 0
		for i := range sf {
			end := sf[i].state.FirstSeen.Add(window)
			for j < len(sf) && !sf[j].state.FirstSeen.After(end) {
				syn += sf[j].state.SynCount
				synAck += sf[j].state.SynAckCount
				j++
			}
			if syn > bestSyn || bestHi == 0 {
				bestSyn, bestLo, bestHi = syn, i, j
			}
			syn -= sf[i].state.SynCount
			synAck -= sf[i].state.SynAckCount
		}
		lo, hi = bestLo, bestHi
	}

	ev := model.SynEvidence{}
	dests := make(map[model.Endpoint]struct{})
	for k, f := range sf[lo:hi] {
		st := f.state
		ev.SynCount += st.SynCount
		ev.SynAckCount += st.SynAckCount
		dests[f.key.Peer(st.Initiator)] = struct{}{}
		if k == 0 || st.FirstSeen.Before(ev.WindowStart) {
			ev.WindowStart = st.FirstSeen
		}
		if st.LastSeen.After(ev.WindowEnd) {
			ev.WindowEnd = st.LastSeen
		}
	}
	ev.DistinctDestinations = len(dests)
	if ev.SynCount > 0 {
		ev.AckRatio = float64(ev.SynAckCount) / float64(ev.SynCount)
	}
	return ev
}

func compareKeys(a, b model.FlowKey) int {
	if c := a.A.Compare(b.A); c != 0 {
		return c
	}
	if c := a.B.Compare(b.B); c != 0 {
		return c
	}
	return cmp.Compare(a.Protocol, b.Protocol)
}

func (e *Engine) summarize(flows map[model.FlowKey]*model.FlowState) model.TrafficSummary {
	s := model.TrafficSummary{
		FlowCount: len(flows),
		ProtocolStats: map[string]uint64{
			model.ProtocolName(model.ProtoTCP):  0,
			model.ProtocolName(model.ProtoUDP):  0,
			model.ProtocolName(model.ProtoICMP): 0,
			model.ProtocolName(0):               0,
		},
		TopTalkers: []model.Talker{},
	}

	talkers := make(map[netip.Addr]*model.Talker)
	credit := func(addr netip.Addr, st *model.FlowState) {
		t, ok := talkers[addr]
		if !ok {
			t = &model.Talker{Address: addr.String()}
			talkers[addr] = t
		}
		t.Packets += st.PacketCount
		t.Bytes += st.TotalBytes
	}

	first := true
	for key, st := range flows {
		s.PacketCount += st.PacketCount
		s.ByteCount += st.TotalBytes
		s.ProtocolStats[model.ProtocolName(key.Protocol)] += st.PacketCount

		credit(key.A.Addr, st)
		if key.B.Addr != key.A.Addr {
			credit(key.B.Addr, st)
		}

		if first || st.FirstSeen.Before(s.FirstSeen) {
			s.FirstSeen = st.FirstSeen
		}
		if first || st.LastSeen.After(s.LastSeen) {
			s.LastSeen = st.LastSeen
		}
		first = false
	}
	s.UniqueAddresses = len(talkers)
	s.Duration = s.LastSeen.Sub(s.FirstSeen)

	ranked := make([]model.Talker, 0, len(talkers))
	for _, t := range talkers {
		ranked = append(ranked, *t)
	}
	slices.SortFunc(ranked, func(a, b model.Talker) int {
		if c := cmp.Compare(b.Bytes, a.Bytes); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Packets, a.Packets); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})
	if len(ranked) > e.cfg.TopTalkers {
		ranked = ranked[:e.cfg.TopTalkers]
	}
	s.TopTalkers = append(s.TopTalkers, ranked...)
	return s
}
