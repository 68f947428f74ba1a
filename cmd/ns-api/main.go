package main

import (
	"SpectraGuard/internal/api"
	"SpectraGuard/internal/config"
	"SpectraGuard/internal/engine/manager"
	"SpectraGuard/internal/logging"
	"SpectraGuard/internal/metrics"
	"SpectraGuard/internal/query"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// captureService is the gRPC health service name reporting capture support.
const captureService = "spectraguard.pcap"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	mgr, err := manager.NewManager(cfg, m, logger)
	if err != nil {
		logger.Fatal("Failed to create manager", zap.Error(err))
	}
	mgr.Start()

	querier, err := query.New(cfg)
	switch {
	case errors.Is(err, query.ErrNoStore):
		logger.Warn("No queryable writer enabled, reporting routes will answer 503")
	case err != nil:
		logger.Fatal("Failed to create querier", zap.Error(err))
	}

	srv := api.NewServer(api.Options{
		Scanner:     mgr,
		Querier:     querier,
		Metrics:     m,
		API:         cfg.API,
		MetricsPath: cfg.Metrics.Path,
		Logger:      logger,
	})
	server := &http.Server{
		Addr:              cfg.API.HttpListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("API server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", zap.String("addr", server.Addr), zap.Error(err))
		}
	}()

	grpcServer, healthServer := startHealth(cfg.API, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("API server shutting down...")

	healthServer.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	mgr.Stop()
	if querier != nil {
		if err := querier.Close(); err != nil {
			logger.Warn("Failed to close querier", zap.Error(err))
		}
	}
	logger.Info("API server exited")
}

// startHealth serves the standard gRPC health protocol. The overall status is
// SERVING; captureService reflects whether capture analysis is enabled.
func startHealth(cfg config.APIConfig, logger *zap.Logger) (*grpc.Server, *health.Server) {
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	captureStatus := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if cfg.CaptureEnabled {
		captureStatus = grpc_health_v1.HealthCheckResponse_SERVING
	}
	healthServer.SetServingStatus(captureService, captureStatus)

	if cfg.GrpcListenAddr == "" {
		return nil, healthServer
	}
	lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
	if err != nil {
		logger.Fatal("Failed to listen for gRPC", zap.String("addr", cfg.GrpcListenAddr), zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	go func() {
		logger.Info("gRPC health server starting", zap.String("addr", cfg.GrpcListenAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return grpcServer, healthServer
}
