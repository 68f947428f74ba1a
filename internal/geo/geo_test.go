package geo

import (
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

type fakeDB struct {
	countries map[string]string
	lookups   int
}

func (f *fakeDB) Country(ip net.IP) (*geoip2.Country, error) {
	f.lookups++
	code, ok := f.countries[ip.String()]
	if !ok {
		return nil, errors.New("not found")
	}
	rec := &geoip2.Country{}
	rec.Country.IsoCode = code
	return rec, nil
}

func (f *fakeDB) Close() error { return nil }

func TestEnrich(t *testing.T) {
	db := &fakeDB{countries: map[string]string{"8.8.8.8": "US", "2001:4860:4860::8888": "US", "1.1.1.1": "AU"}}
	e := &Enricher{db: db, logger: zap.NewNop()}
	r := &core.ScanReport{Kind: core.KindTraffic, Traffic: &core.TrafficVerdict{Summary: core.TrafficSummary{
		TopTalkers: []core.Talker{
			{Address: "8.8.8.8"},
			{Address: "10.0.0.1"},
			{Address: "2001:4860:4860::8888"},
			{Address: "9.9.9.9"},
		},
	}}}

	e.Enrich(r)
	got := r.Traffic.Summary.TopTalkers
	if got[0].Country != "US" || got[2].Country != "US" {
		t.Errorf("Expected public talkers to be resolved, got %+v", got)
	}
	if got[1].Country != "" || got[3].Country != "" {
		t.Errorf("Private and unknown talkers should stay empty, got %+v", got)
	}
	if db.lookups != 3 {
		t.Errorf("Private addresses should not be looked up, got %d lookups", db.lookups)
	}
}

func TestNilEnricher(t *testing.T) {
	e, err := Open(config.GeoIPConfig{}, zap.NewNop())
	if err != nil || e != nil {
		t.Fatalf("Expected no enricher without a database, got %v, %v", e, err)
	}
	e.Enrich(&core.ScanReport{Kind: core.KindTraffic, Traffic: &core.TrafficVerdict{}})
	if err := e.Close(); err != nil {
		t.Errorf("Close on nil enricher failed: %v", err)
	}
}

func TestOpen_MissingDatabase(t *testing.T) {
	if _, err := Open(config.GeoIPConfig{DatabasePath: "/nonexistent/GeoLite2-Country.mmdb"}, zap.NewNop()); err == nil {
		t.Error("Expected an error for a missing database file")
	}
}
