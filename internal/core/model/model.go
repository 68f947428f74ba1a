package model

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// IP protocol numbers the flow tracker distinguishes.
const (
	ProtoICMP   uint8 = 1
	ProtoTCP    uint8 = 6
	ProtoUDP    uint8 = 17
	ProtoICMPv6 uint8 = 58
)

// ProtocolName returns the summary bucket for an IP protocol number.
func ProtocolName(proto uint8) string {
	switch proto {
	case ProtoTCP:
		return "TCP"
	case ProtoUDP:
		return "UDP"
	case ProtoICMP, ProtoICMPv6:
		return "ICMP"
	default:
		return "Other"
	}
}

// TCPFlags is the set of TCP control bits carried by a packet. Bit positions
// match the wire layout of the flags octet.
type TCPFlags uint8

const (
	FlagFIN TCPFlags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
)

var flagNames = []struct {
	flag TCPFlags
	name string
}{
	{FlagSYN, "SYN"}, {FlagACK, "ACK"}, {FlagFIN, "FIN"},
	{FlagRST, "RST"}, {FlagPSH, "PSH"}, {FlagURG, "URG"},
}

// Has reports whether every bit of f is set.
func (t TCPFlags) Has(f TCPFlags) bool {
	return t&f == f
}

func (t TCPFlags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if t.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Endpoint is one side of a flow.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

func (e Endpoint) String() string {
	return netip.AddrPortFrom(e.Addr, e.Port).String()
}

// Compare orders endpoints by address, then port.
func (e Endpoint) Compare(o Endpoint) int {
	if c := e.Addr.Compare(o.Addr); c != 0 {
		return c
	}
	switch {
	case e.Port < o.Port:
		return -1
	case e.Port > o.Port:
		return 1
	}
	return 0
}

// Packet holds the metadata extracted from a single captured frame.
// Packets are read-only once decoded.
type Packet struct {
	Timestamp time.Time
	SrcAddr   netip.Addr
	DstAddr   netip.Addr
	SrcPort   uint16
	DstPort   uint16
	Protocol  uint8
	Flags     TCPFlags
	Length    int

	// Malformed marks a frame whose headers could not be decoded.
	Malformed bool
}

// IsIP reports whether the packet carried a decodable IP header.
func (p Packet) IsIP() bool {
	return p.SrcAddr.IsValid() && p.DstAddr.IsValid()
}

// Source returns the sending endpoint.
func (p Packet) Source() Endpoint {
	return Endpoint{Addr: p.SrcAddr, Port: p.SrcPort}
}

// Destination returns the receiving endpoint.
func (p Packet) Destination() Endpoint {
	return Endpoint{Addr: p.DstAddr, Port: p.DstPort}
}

// FlowKey identifies a flow without direction: A is always the lower endpoint.
type FlowKey struct {
	A        Endpoint
	B        Endpoint
	Protocol uint8
}

// NewFlowKey builds the canonical key for a packet travelling from src to dst.
func NewFlowKey(src, dst Endpoint, proto uint8) FlowKey {
	if src.Compare(dst) > 0 {
		src, dst = dst, src
	}
	return FlowKey{A: src, B: dst, Protocol: proto}
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s<->%s/%s", k.A, k.B, ProtocolName(k.Protocol))
}

// Peer returns the endpoint of k that is not e. If e is not part of the key, B is returned.
func (k FlowKey) Peer(e Endpoint) Endpoint {
	if k.B == e {
		return k.A
	}
	return k.B
}

// FlowState holds the rolling counters of one flow during a single capture analysis.
type FlowState struct {
	PacketCount uint64
	SynCount    uint64
	SynAckCount uint64
	TotalBytes  uint64
	FirstSeen   time.Time
	LastSeen    time.Time

	// Initiator is the sender of the first SYN without ACK, or of the first
	// packet when the flow carried no such SYN.
	Initiator Endpoint
}
