package main

import (
	"SpectraGuard/internal/core/model"
	"SpectraGuard/pkg/pcap"
	"fmt"
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/pcapana/main.go <path_to_capture> [limit]")
		os.Exit(1)
	}
	limit := 20
	if len(os.Args) > 2 {
		if _, err := fmt.Sscanf(os.Args[2], "%d", &limit); err != nil {
			log.Fatalf("Invalid limit: %v", err)
		}
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	reader, err := pcap.NewReader(f, pcap.FormatAuto)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Format %s, link type %s\n", reader.Format(), reader.LinkType())

	i := 0
	for p := range reader.Packets() {
		i++
		if i > limit {
			break
		}
		switch {
		case p.Malformed:
			fmt.Printf("%5d  malformed\n", i)
		case !p.IsIP():
			fmt.Printf("%5d  non-IP, %d bytes\n", i, p.Length)
		default:
			fmt.Printf("%5d  %s  %s %s -> %s [%s] %d bytes\n", i, p.Timestamp.Format("15:04:05.000000"),
				model.ProtocolName(p.Protocol), p.Source(), p.Destination(), p.Flags, p.Length)
		}
	}
}
