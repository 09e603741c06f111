package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MegaManSec/SEC-Feed-Parser/app/api"
	"github.com/MegaManSec/SEC-Feed-Parser/app/cfg"
	"github.com/MegaManSec/SEC-Feed-Parser/app/database"
	"github.com/MegaManSec/SEC-Feed-Parser/app/feed"
	"github.com/MegaManSec/SEC-Feed-Parser/app/filing"
	"github.com/MegaManSec/SEC-Feed-Parser/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case appCfg.File != "":
		err = runFile(ctx, appCfg)
	default:
		err = run(ctx, appCfg)
	}

	if err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

// runFile extracts a submission saved on disk and prints its report.
func runFile(ctx context.Context, appCfg *cfg.Cfg) error {
	data, err := os.ReadFile(appCfg.File)
	if err != nil {
		return fmt.Errorf("failed to read submission: %w", err)
	}

	result, err := filing.NewExtractor().Run(ctx, filing.Submission{
		Title: appCfg.FileTitle,
		Link:  appCfg.File,
		Text:  string(data),
	})
	if err != nil {
		return err
	}

	return result.WriteText(os.Stdout)
}

func run(ctx context.Context, appCfg *cfg.Cfg) error {
	slog.Info("Starting SEC Feed Parser", "version", appCfg.Version, "once", appCfg.Once)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load feed configurations: %w", err)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount(), "enabled", len(configCache.GetEnabledConfigs()))

	feedRepo := database.NewFeedRepository(db)
	filingRepo := database.NewFilingRepository(db)

	httpClient := &http.Client{Timeout: 2 * time.Minute}
	parser := feed.NewParser()
	filterer := feed.NewFilterer()
	extractor := filing.NewExtractor()

	if !appCfg.Server() {
		runner := tasks.NewRunner(configCache, feedRepo, filingRepo, httpClient, parser, filterer, extractor, appCfg.UserAgent)
		return runner.Run(ctx, os.Stdout)
	}

	scheduler := tasks.NewScheduler(configCache, feedRepo, filingRepo, httpClient, parser, filterer, extractor)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval", time.Duration(appCfg.SchedulerInterval)*time.Second)

	handler := api.NewHandler(configCache, feedRepo, filingRepo, scheduler)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port, "api_enabled", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	slog.Info("SEC Feed Parser stopped")
	return nil
}
