package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/Equilibrium/internal/api"
	"github.com/MikeSquared-Agency/Equilibrium/internal/config"
	"github.com/MikeSquared-Agency/Equilibrium/internal/dataset"
	"github.com/MikeSquared-Agency/Equilibrium/internal/engine"
	"github.com/MikeSquared-Agency/Equilibrium/internal/hermes"
	"github.com/MikeSquared-Agency/Equilibrium/internal/report"
	"github.com/MikeSquared-Agency/Equilibrium/internal/store"
	"github.com/MikeSquared-Agency/Equilibrium/internal/welfare"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	serve := flag.Bool("serve", false, "run the HTTP API instead of a single selection")
	format := flag.String("format", "text", "report format for a single run: text or json")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *format != "text" && *format != "json" {
		logger.Error("unknown report format", "format", *format)
		os.Exit(2)
	}

	// A single run writes its report to stdout, so logs go to stderr.
	logOut := io.Writer(os.Stderr)
	if *serve {
		logOut = os.Stdout
	}
	logger = newLogger(cfg.Logging, logOut)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	eng := engine.New(db, hermesClient, cfg, logger)
	eng.SetLoader(catalogLoader(cfg, logger))

	if _, err := eng.ReloadCatalog(ctx); err != nil {
		if !*serve {
			logger.Error("failed to load catalog", "dir", cfg.Dataset.Dir, "error", err)
			os.Exit(1)
		}
		logger.Warn("starting without a catalog, runs are unavailable until reload", "error", err)
	}

	if !*serve {
		if err := runOnce(ctx, eng, *format, os.Stdout); err != nil {
			logger.Error("selection failed", "error", err)
			os.Exit(1)
		}
		return
	}

	eng.SetupSubscriptions()

	// API server
	router := api.NewRouter(db, eng, cfg, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// openStore connects to Postgres when a database URL is configured and
// falls back to an in-memory run history otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.Database.URL == "" {
		logger.Info("no database configured, keeping runs in memory")
		return store.NewMemoryStore(), nil
	}
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to database")
	return db, nil
}

func catalogLoader(cfg *config.Config, logger *slog.Logger) engine.CatalogLoader {
	return func(ctx context.Context) (*welfare.Catalog, error) {
		if cfg.Dataset.BaseURL != "" {
			client := dataset.NewHTTPClient(cfg.Dataset.BaseURL, cfg.Dataset.FetchAttempts, logger)
			if err := dataset.EnsureFiles(ctx, client, cfg.Dataset.Dir, cfg.Dataset.RatingsFile, cfg.Dataset.MoviesFile); err != nil {
				return nil, fmt.Errorf("fetch dataset: %w", err)
			}
		}
		return dataset.LoadMovieLens(cfg.Dataset.Dir, dataset.OptionsFromConfig(cfg.Dataset))
	}
}

func runOnce(ctx context.Context, eng *engine.Engine, format string, w io.Writer) error {
	run, err := eng.Run(ctx, engine.RunRequest{Source: "cli"})
	if err != nil {
		return err
	}
	if format == "json" {
		return report.WriteJSON(w, run)
	}
	return report.WriteText(w, run)
}
