// Package api exposes scanning and reporting over HTTP.
package api

import (
	"SpectraGuard/internal/config"
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/engine/manager"
	"SpectraGuard/internal/metrics"
	"SpectraGuard/internal/model"
	"SpectraGuard/internal/query"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Scanner is the part of manager.Manager the routes depend on.
type Scanner interface {
	Submit(ctx context.Context, job manager.Job) (*core.ScanReport, error)
	Subscribe() (<-chan *model.LogDocument, func())
}

// Options configures a Server. Querier and Metrics may be nil.
type Options struct {
	Scanner     Scanner
	Querier     query.Querier
	Metrics     *metrics.Metrics
	API         config.APIConfig
	MetricsPath string
	Logger      *zap.Logger
}

// Server holds the dependencies for API handlers.
type Server struct {
	scanner     Scanner
	querier     query.Querier
	metrics     *metrics.Metrics
	cfg         config.APIConfig
	metricsPath string
	logger      *zap.Logger
	upgrader    websocket.Upgrader
	now         func() time.Time
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		scanner:     opts.Scanner,
		querier:     opts.Querier,
		metrics:     opts.Metrics,
		cfg:         opts.API,
		metricsPath: opts.MetricsPath,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		now: time.Now,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/malware/scan", s.scanFileHandler).Methods(http.MethodPost)
	r.HandleFunc("/pcap/analyze", s.analyzeCaptureHandler).Methods(http.MethodPost)
	r.HandleFunc("/pcap/health", s.captureHealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/reporting/summary", s.summaryHandler).Methods(http.MethodGet)
	r.HandleFunc("/reporting/export", s.exportHandler).Methods(http.MethodGet)
	r.HandleFunc("/reporting/health", s.reportingHealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/reports/stream", s.streamHandler).Methods(http.MethodGet)
	if s.metrics != nil && s.metricsPath != "" {
		r.Handle(s.metricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeError maps scan and store errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		s.logger.Info("Client went away", zap.String("path", r.URL.Path))
	case errors.As(err, &tooLarge):
		writeDetail(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, core.ErrInvalidInput):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, manager.ErrQueueFull), errors.Is(err, manager.ErrStopped), errors.Is(err, query.ErrNoStore):
		writeDetail(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, manager.ErrScanTimeout):
		writeDetail(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}
