package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/visualiza/backend/internal/api"
	"github.com/visualiza/backend/internal/config"
	"github.com/visualiza/backend/internal/logging"
	"github.com/visualiza/backend/internal/session"
	"github.com/visualiza/backend/internal/storage"
	"github.com/visualiza/backend/internal/web"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				exePath, err := os.Executable()
				if err != nil {
					return fmt.Errorf("failed to get executable path: %w", err)
				}
				configPath = filepath.Join(filepath.Dir(exePath), "visualiza.config.xml")
			}
			return serve(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the XML config file (default: next to the executable)")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Setup(cfg.Advanced.LogLevel, cfg.Advanced.LogFormat)
	log := slog.Default().With("component", "server")

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	fileStore, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory, cfg.Ingestion.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	var parsed *session.PersistentParsedStore
	if cfg.Storage.EnablePersistence && cfg.Advanced.EnableTableCache {
		parsed, err = session.NewPersistentParsedStore(cfg.Storage.TablesDirectory, cfg.DuckOptions())
		if err != nil {
			return fmt.Errorf("failed to initialize table cache: %w", err)
		}
	}

	sessionMgr := session.NewManager(fileStore, parsed, session.Options{
		Limits:             cfg.ChartLimits(),
		LargeFileThreshold: cfg.Ingestion.LargeFileThreshold,
		DefaultDelimiter:   cfg.Ingestion.DefaultDelimiter,
		MaxSessions:        session.MaxSessions,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, sessionMgr, cleanupPolicy{
		interval:       time.Duration(cfg.Advanced.CleanupIntervalMinutes) * time.Minute,
		sessionMaxAge:  time.Duration(cfg.Advanced.SessionTimeoutMinutes) * time.Minute,
		tableMaxAge:    time.Duration(cfg.Advanced.TableCacheMaxAgeHours) * time.Hour,
		tableMaxTables: cfg.Advanced.TableCacheMaxEntries,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareOptions{
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		RequestLogging: cfg.Advanced.EnableRequestLogging,
	})
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		SessionMgr:       sessionMgr,
		Limits:           cfg.ChartLimits(),
		DefaultDelimiter: cfg.Ingestion.DefaultDelimiter,
		MaxUploadSize:    cfg.Ingestion.MaxUploadSize,
		Version:          Version,
	}))

	embedded := web.HasEmbeddedFiles()
	if embedded {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn("failed to register static routes", "error", err)
			embedded = false
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info("starting server",
		"version", Version,
		"build_time", BuildTime,
		"config", configPath,
		"addr", s.Addr,
		"data_dir", cfg.Storage.DataDirectory,
		"embedded_ui", embedded,
	)
	if embedded {
		fmt.Printf("Open http://localhost:%d in your browser\n", cfg.Server.Port)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

type cleanupPolicy struct {
	interval       time.Duration
	sessionMaxAge  time.Duration
	tableMaxAge    time.Duration
	tableMaxTables int
}

// runCleanup drops idle sessions and trims the table cache until ctx is done.
func runCleanup(ctx context.Context, mgr *session.Manager, p cleanupPolicy) {
	interval := p.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(mgr, p)
		}
	}
}

func sweep(mgr *session.Manager, p cleanupPolicy) {
	if n := mgr.CleanupOldSessions(p.sessionMaxAge); n > 0 {
		slog.Info("cleaned up idle sessions", "component", "server", "count", n)
	}
	if n := mgr.PruneTableCache(p.tableMaxAge, p.tableMaxTables); n > 0 {
		slog.Info("pruned table cache", "component", "server", "count", n)
	}
}
