// Package geo annotates traffic reports with the country of their top talkers.
package geo

import (
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

type countryDB interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

// Enricher looks talkers up in a MaxMind country database. A nil *Enricher
// is valid and does nothing.
type Enricher struct {
	db     countryDB
	logger *zap.Logger
}

// Open loads the configured database. It returns nil, nil when no path is set.
func Open(cfg config.GeoIPConfig, logger *zap.Logger) (*Enricher, error) {
	if cfg.DatabasePath == "" {
		return nil, nil
	}
	db, err := geoip2.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database %s: %w", cfg.DatabasePath, err)
	}
	logger.Info("GeoIP enrichment enabled", zap.String("database", cfg.DatabasePath))
	return &Enricher{db: db, logger: logger}, nil
}

// Enrich fills Talker.Country for public addresses in a traffic report.
func (e *Enricher) Enrich(r *core.ScanReport) {
	if e == nil || r == nil || r.Traffic == nil {
		return
	}
	talkers := r.Traffic.Summary.TopTalkers
	for i := range talkers {
		addr, err := netip.ParseAddr(talkers[i].Address)
		if err != nil || !routable(addr) {
			continue
		}
		rec, err := e.db.Country(net.IP(addr.AsSlice()))
		if err != nil {
			e.logger.Debug("GeoIP lookup failed", zap.String("address", talkers[i].Address), zap.Error(err))
			continue
		}
		talkers[i].Country = rec.Country.IsoCode
	}
}

func routable(addr netip.Addr) bool {
	return addr.IsGlobalUnicast() && !addr.IsPrivate()
}

func (e *Enricher) Close() error {
	if e == nil {
		return nil
	}
	return e.db.Close()
}
