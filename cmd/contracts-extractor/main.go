package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/contracts-extractor/internal/app"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/jobs"
	"github.com/joseph-ayodele/contracts-extractor/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(2)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// HTTP UI + JSON API
	var (
		runs     server.RunReader
		exporter server.Exporter
	)
	if a.Runs != nil {
		runs = a.Runs
		exporter = a.Exporter
	}
	httpSrv := server.NewHTTPServer(a.Processor, runs, exporter, server.HTTPConfig{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		RequestTimeout: cfg.Server.RequestTimeout,
		JWTSecret:      cfg.Auth.JWTSecret,
	}, logger)
	if a.DB != nil {
		httpSrv.WithCheck("database", func(ctx context.Context) error {
			return server.PingDB(ctx, a.DB, logger, 2*time.Second)
		})
	}
	if a.Cache != nil {
		httpSrv.WithCheck("cache", a.Cache.Ping)
	}
	hs := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpSrv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC server
	grpcServer := grpc.NewServer(grpc.MaxRecvMsgSize(int(cfg.MaxUploadBytes()) + 1<<20))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)
	server.RegisterExtractionServer(grpcServer, server.NewExtractionService(a.Processor, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}

	var retention *jobs.Retention
	if a.Runs != nil {
		retention = jobs.NewRetention(a.Runs, cfg.Retention.MaxAge, cfg.Retention.Schedule, logger)
		if err := retention.Start(); err != nil {
			logger.Error("failed to start retention", "error", err)
			os.Exit(1)
		}
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	if err := hs.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	if retention != nil {
		retention.Stop(shutdownCtx)
	}
	logger.Info("stopped")
}
