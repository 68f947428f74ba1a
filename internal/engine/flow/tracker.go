// Package flow reconstructs per-flow state from an ordered packet sequence.
//
// A Tracker holds only its limits; every Ingest call builds a fresh flow map,
// so one Tracker may serve concurrent scans.
package flow

import (
	"SpectraGuard/internal/core/model"
	"fmt"
	"iter"
)

// Result is the outcome of one capture ingest.
type Result struct {
	Flows map[model.FlowKey]*model.FlowState

	// Processed counts every packet consumed, including malformed and non-IP ones.
	Processed      uint64
	MalformedCount uint64
	NonIPCount     uint64
	// Truncated is set when the sequence held more than the configured maximum.
	Truncated bool
}

// Tracker ingests packet sequences into flow maps.
type Tracker struct {
	maxPackets uint64
}

// NewTracker returns a Tracker that stops after maxPackets packets. Zero means unbounded.
func NewTracker(maxPackets int) (*Tracker, error) {
	if maxPackets < 0 {
		return nil, fmt.Errorf("%w: max_packets must not be negative, got %d", model.ErrInvalidConfig, maxPackets)
	}
	return &Tracker{maxPackets: uint64(maxPackets)}, nil
}

// Ingest consumes packets in the order received. Timestamps out of order
// widen FirstSeen/LastSeen but are never sorted.
func (t *Tracker) Ingest(packets iter.Seq[model.Packet]) *Result {
	res := &Result{Flows: make(map[model.FlowKey]*model.FlowState)}

	for p := range packets {
		if t.maxPackets > 0 && res.Processed == t.maxPackets {
			res.Truncated = true
			break
		}
		res.Processed++

		switch {
		case p.Malformed:
			res.MalformedCount++
			continue
		case !p.IsIP():
			res.NonIPCount++
			continue
		}

		src := p.Source()
		key := model.NewFlowKey(src, p.Destination(), p.Protocol)
		state, ok := res.Flows[key]
		if !ok {
			state = &model.FlowState{
				FirstSeen: p.Timestamp,
				LastSeen:  p.Timestamp,
				Initiator: src,
			}
			res.Flows[key] = state
		}
		update(state, p)
	}

	return res
}

func update(state *model.FlowState, p model.Packet) {
	state.PacketCount++
	state.TotalBytes += uint64(p.Length)

	if p.Protocol == model.ProtoTCP && p.Flags.Has(model.FlagSYN) {
		if p.Flags.Has(model.FlagACK) {
			state.SynAckCount++
		} else {
			if state.SynCount == 0 {
				state.Initiator = p.Source()
			}
			state.SynCount++
		}
	}

	if p.Timestamp.Before(state.FirstSeen) {
		state.FirstSeen = p.Timestamp
	}
	if p.Timestamp.After(state.LastSeen) {
		state.LastSeen = p.Timestamp
	}
}
