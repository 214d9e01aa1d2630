// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/altqx/akane/internal/analytics"
	"github.com/altqx/akane/internal/api"
	"github.com/altqx/akane/internal/config"
	"github.com/altqx/akane/internal/ingest"
	aklog "github.com/altqx/akane/internal/log"
	"github.com/altqx/akane/internal/media"
	"github.com/altqx/akane/internal/pipeline"
	"github.com/altqx/akane/internal/playback"
	"github.com/altqx/akane/internal/presence"
	"github.com/altqx/akane/internal/progress"
	"github.com/altqx/akane/internal/storage"
	"github.com/altqx/akane/internal/store"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	aklog.Configure(aklog.Config{
		Level:   os.Getenv("LOG_LEVEL"),
		Service: "akane",
	})
	logger := aklog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration invalid")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("service failed")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := aklog.WithComponent("main")

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("database close error")
		}
	}()

	objects := storage.NewClient(cfg.StoreEndpoint, cfg.StoreBucket, cfg.StoreAccessKey, cfg.StoreSecretKey)
	uploader := storage.NewUploader(objects, cfg.MaxConcurrentUploads)

	var warehouse *analytics.Client
	if cfg.AnalyticsEnabled() {
		warehouse, err = analytics.Connect(ctx, analytics.Options{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("clickhouse unavailable, analytics disabled")
			warehouse = nil
		}
		defer func() { _ = warehouse.Close() }()
	}

	runner := media.ExecRunner{}
	transcoder := media.NewTranscoder(runner, cfg.Encoder, cfg.MaxConcurrentEncodes)
	prober := media.NewProber(runner)

	registry := progress.NewRegistry()
	reassembler := ingest.NewReassembler(cfg.ScratchDir)
	tracker := presence.NewTracker()
	auth := playback.NewAuthorizer(cfg.SecretKey)
	jobs := pipeline.New(prober, transcoder, uploader, st, registry, cfg.ScratchDir)

	srv := api.NewServer(cfg, registry, reassembler, jobs, st, objects, warehouse, tracker, auth)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info().
			Str("listen", cfg.ListenAddr).
			Str("encoder", cfg.Encoder).
			Bool("analytics", warehouse.Enabled()).
			Msg("akane listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("stopped")
	return nil
}
