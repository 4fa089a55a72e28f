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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vurafps/Webpanel/internal/api"
	"github.com/vurafps/Webpanel/internal/artifact"
	"github.com/vurafps/Webpanel/internal/config"
	"github.com/vurafps/Webpanel/internal/idler"
	wplog "github.com/vurafps/Webpanel/internal/log"
	"github.com/vurafps/Webpanel/internal/session/manager"
	"github.com/vurafps/Webpanel/internal/session/store"
	"github.com/vurafps/Webpanel/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	wplog.Configure(wplog.Config{
		Level:   "info",
		Service: "webpanel",
		Version: version.Version,
	})
	logger := wplog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Auto-load ${WEBPANEL_DATA}/config.yaml when no explicit path is given.
	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("WEBPANEL_DATA", "./data"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	cfg, err := config.NewLoader(effectiveConfigPath, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	wplog.Configure(wplog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
	}
	logger.Info().Str("event", "daemon.stopped").Msg("shutdown complete")
}

func run(ctx context.Context, cfg config.AppConfig) error {
	logger := wplog.WithComponent("daemon")

	for _, dir := range []string{cfg.DataDir, cfg.QRDir, cfg.UsersDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	artifacts := artifact.NewManager(cfg.QRDir, artifact.PNGEncoder)

	var factory idler.Factory
	if cfg.VirtualIdler {
		// Demo backend: completes the handshake on its own at human pace.
		factory = &idler.VirtualFactory{
			QrDelay:    500 * time.Millisecond,
			LoginDelay: 5 * time.Second,
			AutoLogin:  true,
		}
	} else {
		return errors.New("no real idler backend is available; set virtualIdler: true")
	}

	st := store.New()
	orch := manager.New(ctx, st, artifacts, factory, cfg.UsersDir)
	orch.LogoutTimeout = cfg.LogoutTimeout

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.New(cfg, orch).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("event", "http.listening").
			Str("addr", cfg.Listen).
			Str("version", cfg.Version).
			Msg("http server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str("event", "daemon.stopping").Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Stop accepting new requests first, then tear down sessions.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown did not complete cleanly")
		}
		if err := orch.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("session teardown did not complete cleanly")
		}
		return nil
	})

	return g.Wait()
}
