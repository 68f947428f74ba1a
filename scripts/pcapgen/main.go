package main

import (
	"SpectraGuard/internal/core/model"
	"SpectraGuard/internal/engine/protocol"
	"SpectraGuard/pkg/pcap"
	"flag"
	"log"
	"math/rand"
	"net/netip"
	"os"
	"time"
)

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	background := flag.Int("c", 1000, "Number of background handshakes to generate")
	synFlood := flag.Int("syn-flood", 0, "Number of unanswered SYNs from the attacker")
	attacker := flag.String("attacker", "198.51.100.66", "Source address of the SYN flood")
	victim := flag.String("victim", "203.0.113.10:80", "Target address:port of the SYN flood")
	malformed := flag.Int("malformed", 0, "Number of truncated frames to append")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	attackerAddr, err := netip.ParseAddr(*attacker)
	if err != nil {
		log.Fatalf("Invalid attacker address: %v", err)
	}
	victimAddr, err := netip.ParseAddrPort(*victim)
	if err != nil {
		log.Fatalf("Invalid victim address: %v", err)
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w, err := pcap.NewWriter(f)
	if err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	ts := time.Now().UTC()
	written := 0
	write := func(frame protocol.Frame) {
		data, err := protocol.Serialize(frame)
		if err != nil {
			log.Fatalf("Failed to serialize frame: %v", err)
		}
		ts = ts.Add(time.Duration(rng.Intn(2000)) * time.Microsecond)
		if err := w.WriteFrame(ts, data); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
		written++
	}

	log.Printf("Generating %d handshakes and %d flood SYNs into %s...", *background, *synFlood, *outputFile)

	for i := 0; i < *background; i++ {
		client := netip.AddrPortFrom(randomAddr(rng, 10), uint16(rng.Intn(65535-1024)+1024))
		server := netip.AddrPortFrom(randomAddr(rng, 172), 443)
		payload := make([]byte, rng.Intn(1400)+50)
		rng.Read(payload)

		write(protocol.Frame{Src: client, Dst: server, Protocol: model.ProtoTCP, Flags: model.FlagSYN})
		write(protocol.Frame{Src: server, Dst: client, Protocol: model.ProtoTCP, Flags: model.FlagSYN | model.FlagACK})
		write(protocol.Frame{Src: client, Dst: server, Protocol: model.ProtoTCP, Flags: model.FlagACK | model.FlagPSH, Payload: payload})
		if i%10 == 0 {
			dns := netip.AddrPortFrom(randomAddr(rng, 192), 53)
			write(protocol.Frame{Src: client, Dst: dns, Protocol: model.ProtoUDP, Payload: payload[:32]})
		}
	}

	for i := 0; i < *synFlood; i++ {
		src := netip.AddrPortFrom(attackerAddr, uint16(rng.Intn(65535-1024)+1024))
		write(protocol.Frame{Src: src, Dst: victimAddr, Protocol: model.ProtoTCP, Flags: model.FlagSYN, Seq: rng.Uint32()})
	}

	for i := 0; i < *malformed; i++ {
		ts = ts.Add(time.Millisecond)
		if err := w.WriteFrame(ts, []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x00, 0x66, 0x77, 0x88, 0x99, 0xaa, 0x08, 0x00, 0x45, 0x00, 0x00}); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
		written++
	}

	log.Printf("Successfully generated %d packets into %s.", written, *outputFile)
}

func randomAddr(rng *rand.Rand, first byte) netip.Addr {
	return netip.AddrFrom4([4]byte{first, byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(254) + 1)})
}
