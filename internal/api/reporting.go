package api

import (
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/query"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSummaryLimit = 5
	maxSummaryLimit     = 100
	defaultExportLimit  = 500
	maxExportLimit      = 5000
	dateLayout          = "2006-01-02"
	healthCheckTimeout  = 2 * time.Second
)

func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, lo, hi)
	}
	return v, nil
}

// timeParam accepts RFC 3339 or a bare date. A bare date used as the upper
// bound includes that whole day.
func timeParam(r *http.Request, name string, upper bool) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", name)
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func parseFilter(r *http.Request, defLimit, maxLimit int) (query.Filter, error) {
	var f query.Filter
	var err error
	if f.Limit, err = intParam(r, "limit", defLimit, 1, maxLimit); err != nil {
		return f, err
	}
	if f.Since, err = timeParam(r, "from_ts", false); err != nil {
		return f, err
	}
	if f.Until, err = timeParam(r, "to_ts", true); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	if s.querier == nil {
		s.writeError(w, r, query.ErrNoStore)
		return
	}
	f, err := parseFilter(r, defaultSummaryLimit, maxSummaryLimit)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := query.BuildSummary(r.Context(), s.querier, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	if s.querier == nil {
		s.writeError(w, r, query.ErrNoStore)
		return
	}
	kind := core.Kind(r.URL.Query().Get("kind"))
	if kind != core.KindFile && kind != core.KindTraffic {
		writeDetail(w, http.StatusBadRequest, "unknown kind, use file or traffic")
		return
	}
	format := r.URL.Query().Get("format")
	switch format {
	case "":
		format = query.FormatJSON
	case query.FormatJSON, query.FormatCSV:
	default:
		writeDetail(w, http.StatusBadRequest, "format must be json or csv")
		return
	}
	f, err := parseFilter(r, defaultExportLimit, maxExportLimit)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	f.Kind = kind

	docs, err := s.querier.Documents(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if format == query.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(kind)+".csv"))
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := query.WriteExport(w, format, kind, docs); err != nil {
		s.logger.Error("Export failed mid-stream", zap.Error(err))
	}
}

func (s *Server) reportingHealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"ok":              false,
		"module":          "reporting",
		"store":           nil,
		"store_connected": false,
		"timestamp":       s.now().UTC().Format(time.RFC3339),
	}
	if s.querier != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		_, err := s.querier.Counts(ctx)
		if err != nil {
			s.logger.Warn("Reporting store check failed", zap.String("store", s.querier.Store()), zap.Error(err))
		}
		resp["ok"] = err == nil
		resp["store"] = s.querier.Store()
		resp["store_connected"] = err == nil
	}
	writeJSON(w, http.StatusOK, resp)
}
