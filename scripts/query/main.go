package main

import (
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/query"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

func main() {
	mode := flag.String("mode", "api", "Query mode: 'api' to query via HTTP API, 'direct' to query the configured store.")
	apiURL := flag.String("api", "http://localhost:8080", "Base URL of ns-api.")
	configPath := flag.String("config", "configs/config.yaml", "Configuration file for direct mode.")
	kind := flag.String("kind", "", "Export this kind (file or traffic) instead of printing the summary.")
	format := flag.String("format", "json", "Export format: json or csv.")
	limit := flag.Int("limit", 5, "Maximum documents per kind.")
	flag.Parse()

	log.Printf("Running in '%s' mode.", *mode)

	switch *mode {
	case "api":
		queryViaAPI(*apiURL, *kind, *format, *limit)
	case "direct":
		queryDirect(*configPath, *kind, *format, *limit)
	default:
		log.Fatalf("Invalid mode: %s. Use 'api' or 'direct'.", *mode)
	}
}

func queryViaAPI(base, kind, format string, limit int) {
	params := url.Values{"limit": {fmt.Sprint(limit)}}
	path := "/reporting/summary"
	if kind != "" {
		path = "/reporting/export"
		params.Set("kind", kind)
		params.Set("format", format)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(base + path + "?" + params.Encode())
	if err != nil {
		log.Fatalf("Failed to send request to API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("API returned %s: %s", resp.Status, body)
	}
	io.Copy(os.Stdout, resp.Body)
}

func queryDirect(configPath, kind, format string, limit int) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	q, err := query.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create querier: %v", err)
	}
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if kind != "" {
		docs, err := q.Documents(ctx, query.Filter{Kind: core.Kind(kind), Limit: limit})
		if err != nil {
			log.Fatalf("Failed to query documents: %v", err)
		}
		if err := query.WriteExport(os.Stdout, format, core.Kind(kind), docs); err != nil {
			log.Fatalf("Failed to export: %v", err)
		}
		return
	}

	summary, err := query.BuildSummary(ctx, q, query.Filter{Limit: limit})
	if err != nil {
		log.Fatalf("Failed to build summary: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(summary)
}
