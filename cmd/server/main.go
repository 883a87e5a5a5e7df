// adscan server - classifies images as ads over HTTP/WebSocket and reports
// readiness over gRPC health
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

	"github.com/GriffinCanCode/adscan/internal/config"
	"github.com/GriffinCanCode/adscan/internal/logging"
	"github.com/GriffinCanCode/adscan/internal/orchestrator"
	"github.com/GriffinCanCode/adscan/internal/rpc"
	"github.com/GriffinCanCode/adscan/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logFile, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		slog.Error("logging setup failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logFile.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, err := orchestrator.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to build detector", "error", err)
		os.Exit(1)
	}

	// gRPC health reports NOT_SERVING until references are loaded
	health := rpc.New(mgr.Detector, rpc.WithClock(mgr.Clock))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		slog.Error("grpc listen error", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		if err := health.Serve(lis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	}()

	// Load references in background. Health flips to SERVING when loading
	// finishes; the watcher also catches a detector initialized lazily by an
	// early request.
	go health.WatchReady(ctx, rpc.DefaultReadyInterval)
	mgr.Start(ctx, func() { health.Refresh() })

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.New(mgr.Detector, mgr.Fetcher).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: server.ClassifyTimeout + 5*time.Second,
	}

	go func() {
		slog.Info("adscan server starting", "http", cfg.HTTPAddr, "grpc", cfg.GRPCAddr,
			"source", cfg.ReferenceSource, "root", cfg.ReferenceRoot)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	health.Stop()
	mgr.Stop()
	slog.Info("shutdown complete")
}
