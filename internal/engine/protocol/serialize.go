package protocol

import (
	"SpectraGuard/internal/core/model"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Frame describes a synthetic Ethernet frame for capture generation.
type Frame struct {
	Src      netip.AddrPort
	Dst      netip.AddrPort
	Protocol uint8
	Flags    model.TCPFlags
	Seq      uint32
	Payload  []byte
}

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xaa}
)

// Serialize builds the wire bytes of f with checksums and lengths filled in.
func Serialize(f Frame) ([]byte, error) {
	src, dst := f.Src.Addr().Unmap(), f.Dst.Addr().Unmap()
	if src.Is4() != dst.Is4() {
		return nil, fmt.Errorf("mixed address families %s -> %s", src, dst)
	}

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC}
	var network gopacket.NetworkLayer
	stack := []gopacket.SerializableLayer{eth}
	if src.Is4() {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocol(f.Protocol),
			SrcIP:    net.IP(src.AsSlice()),
			DstIP:    net.IP(dst.AsSlice()),
		}
		network = ip
		stack = append(stack, ip)
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocol(f.Protocol),
			SrcIP:      net.IP(src.AsSlice()),
			DstIP:      net.IP(dst.AsSlice()),
		}
		network = ip
		stack = append(stack, ip)
	}

	switch f.Protocol {
	case model.ProtoTCP:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(f.Src.Port()),
			DstPort: layers.TCPPort(f.Dst.Port()),
			Seq:     f.Seq,
			Window:  14600,
			FIN:     f.Flags.Has(model.FlagFIN),
			SYN:     f.Flags.Has(model.FlagSYN),
			RST:     f.Flags.Has(model.FlagRST),
			PSH:     f.Flags.Has(model.FlagPSH),
			ACK:     f.Flags.Has(model.FlagACK),
			URG:     f.Flags.Has(model.FlagURG),
		}
		if err := tcp.SetNetworkLayerForChecksum(network); err != nil {
			return nil, err
		}
		stack = append(stack, tcp)
	case model.ProtoUDP:
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(f.Src.Port()),
			DstPort: layers.UDPPort(f.Dst.Port()),
		}
		if err := udp.SetNetworkLayerForChecksum(network); err != nil {
			return nil, err
		}
		stack = append(stack, udp)
	}
	stack = append(stack, gopacket.Payload(f.Payload))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		return nil, fmt.Errorf("failed to serialize layers: %w", err)
	}
	return buf.Bytes(), nil
}
