package protocol

import (
	"SpectraGuard/internal/core/model"
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	// ErrMalformed marks a frame whose network or transport header failed to decode.
	ErrMalformed = errors.New("malformed packet")
	// ErrNotIP marks a well-formed frame without an IP layer (ARP, LLDP, ...).
	ErrNotIP = errors.New("not an IP packet")
)

// Decode decodes one captured frame of the given link type. The returned
// packet always carries the capture timestamp and length; on error it is
// flagged Malformed or left without addresses.
func Decode(data []byte, link gopacket.Decoder, ci gopacket.CaptureInfo) (model.Packet, error) {
	packet := gopacket.NewPacket(data, link, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	packet.Metadata().CaptureInfo = ci
	return ParsePacket(packet)
}

// ParsePacket uses gopacket to extract the addresses, ports, protocol and TCP
// flags of a decoded packet.
func ParsePacket(packet gopacket.Packet) (model.Packet, error) {
	info := model.Packet{
		Length: len(packet.Data()),
	}
	if meta := packet.Metadata(); meta != nil {
		info.Timestamp = meta.Timestamp
		if meta.Length > 0 {
			info.Length = meta.Length
		}
	}

	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		info.SrcAddr = addrFrom(ip.SrcIP)
		info.DstAddr = addrFrom(ip.DstIP)
		info.Protocol = uint8(ip.Protocol)
	case *layers.IPv6:
		info.SrcAddr = addrFrom(ip.SrcIP)
		info.DstAddr = addrFrom(ip.DstIP)
		info.Protocol = uint8(ip.NextHeader)
	default:
		if errLayer := packet.ErrorLayer(); errLayer != nil {
			info.Malformed = true
			return info, fmt.Errorf("%w: %v", ErrMalformed, errLayer.Error())
		}
		return info, ErrNotIP
	}
	if !info.SrcAddr.IsValid() || !info.DstAddr.IsValid() {
		info.Malformed = true
		return info, fmt.Errorf("%w: unusable IP addresses", ErrMalformed)
	}

	// The transport layer wins over NextHeader, which names the first
	// extension header when one precedes TCP or UDP.
	switch l := packet.TransportLayer().(type) {
	case *layers.TCP:
		info.Protocol = model.ProtoTCP
		info.SrcPort = uint16(l.SrcPort)
		info.DstPort = uint16(l.DstPort)
		info.Flags = tcpFlags(l)
	case *layers.UDP:
		info.Protocol = model.ProtoUDP
		info.SrcPort = uint16(l.SrcPort)
		info.DstPort = uint16(l.DstPort)
	default:
		// A TCP or UDP header that failed to decode leaves no transport layer.
		if info.Protocol == model.ProtoTCP || info.Protocol == model.ProtoUDP {
			if errLayer := packet.ErrorLayer(); errLayer != nil {
				info.Malformed = true
				return info, fmt.Errorf("%w: %v", ErrMalformed, errLayer.Error())
			}
		}
	}

	return info, nil
}

func addrFrom(ip []byte) netip.Addr {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return addr.Unmap()
}

func tcpFlags(tcp *layers.TCP) model.TCPFlags {
	var f model.TCPFlags
	if tcp.FIN {
		f |= model.FlagFIN
	}
	if tcp.SYN {
		f |= model.FlagSYN
	}
	if tcp.RST {
		f |= model.FlagRST
	}
	if tcp.PSH {
		f |= model.FlagPSH
	}
	if tcp.ACK {
		f |= model.FlagACK
	}
	if tcp.URG {
		f |= model.FlagURG
	}
	return f
}
