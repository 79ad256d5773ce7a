package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/spf13/cobra"

	"github.com/hazz-dev/pingwatch/internal/config"
	"github.com/hazz-dev/pingwatch/internal/display"
	"github.com/hazz-dev/pingwatch/internal/logfile"
	"github.com/hazz-dev/pingwatch/internal/server"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background health check loop",
		RunE:  runRun,
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	p, err := resolvePaths(cfg)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "endpoints", len(cfg.Endpoints), "log_file", p.log)

	prod, err := newProducer(cfg, p, logger)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	prod.runner.Run(ctx)
	prod.notifier.Wait()

	logger.Info("shutdown complete")
	return nil
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Drain the log file and print records as they arrive",
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	p, err := resolvePaths(cfg)
	if err != nil {
		return err
	}

	db, err := openArchive(cfg)
	if err != nil {
		return err
	}
	sinks := []display.Sink{display.NewTerminalSink(os.Stdout)}
	if db != nil {
		defer db.Close()
		sinks = append(sinks, db)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger.Info("watching log file", "path", p.log, "interval", cfg.Log.DrainInterval.Duration)
	display.NewPoller(logfile.NewReader(p.log), cfg.Log.DrainInterval.Duration, logger, sinks...).Run(ctx)
	return nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the check loop, the log consumer and the HTTP API in one process",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	// 1. Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	p, err := resolvePaths(cfg)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "endpoints", len(cfg.Endpoints), "log_file", p.log)

	// 2. Open the archive
	db, err := openArchive(cfg)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("serve needs storage.path to be set")
	}
	defer db.Close()

	// 3. Build the producer and the consumer
	prod, err := newProducer(cfg, p, logger)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}
	poller := display.NewPoller(logfile.NewReader(p.log), cfg.Log.DrainInterval.Duration, logger,
		display.NewTerminalSink(os.Stdout), db)

	// 4. Build API server
	apiServer := server.New(db, cfg.Endpoints, logger)
	apiServer.SetRunner(prod.runner)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Router())

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           gziphandler.GzipHandler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 6. Start runner and poller
	prod.runner.Start(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	// 7. Start HTTP server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 8. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		stop()
		prod.runner.Wait()
		wg.Wait()
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 9. Graceful shutdown
	prod.runner.Wait()
	prod.notifier.Wait()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
