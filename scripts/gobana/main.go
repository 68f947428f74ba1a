package main

import (
	"SpectraGuard/internal/writer"
	"encoding/json"
	"fmt"
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <log_root> [-v]")
		os.Exit(1)
	}
	verbose := len(os.Args) > 2 && os.Args[2] == "-v"

	docs, err := writer.ReadGobDocuments(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read gob documents: %v", err)
	}

	fmt.Printf("Decoded %d documents:\n", len(docs))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, doc := range docs {
		if verbose {
			enc.Encode(doc)
			continue
		}
		fmt.Printf("%s  %-8s %s  %s\n", doc.TS.Format("2006-01-02 15:04:05"), doc.Kind, doc.ReportID, doc.Headline)
	}
}
