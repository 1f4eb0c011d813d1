// Command mnemo serves a personal journal over MCP stdio, backed by
// PostgreSQL with pgvector for semantic search.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnemo-app/mnemo/internal/ai"
	"github.com/mnemo-app/mnemo/internal/backfill"
	"github.com/mnemo-app/mnemo/internal/config"
	"github.com/mnemo-app/mnemo/internal/mcptools"
	"github.com/mnemo-app/mnemo/internal/media"
	"github.com/mnemo-app/mnemo/internal/observe"
	"github.com/mnemo-app/mnemo/internal/search"
	"github.com/mnemo-app/mnemo/internal/tagging"
	"github.com/mnemo-app/mnemo/pkg/journal/postgres"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "mnemo: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "mnemo: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// Everything logs to stderr: stdout carries the MCP stdio transport.
	logger := observe.NewLogger(string(cfg.Server.LogLevel))
	slog.SetDefault(logger)

	slog.Info("mnemo starting",
		"version", version,
		"config", *configPath,
		"owner", cfg.AI.OwnerID,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		go func() {
			slog.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics listener error", "err", err)
			}
		}()
		defer metricsSrv.Close()
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	store, err := postgres.NewStore(ctx, cfg.Database.DSN, cfg.Database.EmbeddingDimensions)
	if err != nil {
		slog.Error("failed to open database", "err", err)
		return 1
	}
	defer store.Close()
	slog.Info("database ready", "embedding_dimensions", store.Dimensions())

	// ── Media signing ─────────────────────────────────────────────────────────
	var signer media.Signer = media.NoSigner{}
	if cfg.Media.Endpoint != "" {
		signer, err = media.NewMinioSigner(media.MinioConfig{
			Endpoint:  cfg.Media.Endpoint,
			AccessKey: cfg.Media.AccessKey,
			SecretKey: cfg.Media.SecretKey,
			Bucket:    cfg.Media.Bucket,
			UseSSL:    cfg.Media.UseSSL,
			URLTTL:    cfg.Media.URLTTL(),
		})
		if err != nil {
			slog.Error("failed to create media signer", "err", err)
			return 1
		}
		slog.Info("media URL signing enabled", "endpoint", cfg.Media.Endpoint, "bucket", cfg.Media.Bucket)
	}

	// ── Engines ───────────────────────────────────────────────────────────────
	resolver := ai.NewResolver(store, cfg.AI.DefaultOpenAIAPIKey)
	metrics := observe.DefaultMetrics()

	searcher := search.NewEngine(resolver, store, signer,
		search.WithDimensions(cfg.Database.EmbeddingDimensions),
		search.WithRanking(cfg.Search.MinSimilarity, cfg.Search.MaxResults),
		search.WithLogger(logger),
		search.WithMetrics(metrics),
	)
	backfiller := backfill.New(resolver, store,
		backfill.WithDimensions(cfg.Database.EmbeddingDimensions),
		backfill.WithBatchSize(cfg.Backfill.BatchSize),
		backfill.WithLogger(logger),
		backfill.WithMetrics(metrics),
	)
	discovery := tagging.New(resolver, store, store,
		tagging.WithSampleSize(cfg.Discovery.SampleSize),
		tagging.WithLogger(logger),
		tagging.WithMetrics(metrics),
	)

	// ── MCP server ────────────────────────────────────────────────────────────
	server := mcptools.NewServer(mcptools.Deps{
		OwnerID:    cfg.AI.OwnerID,
		Store:      store,
		Tags:       store,
		Stats:      store,
		Resolver:   resolver,
		Signer:     signer,
		Searcher:   searcher,
		Backfiller: backfiller,
		Discovery:  discovery,
		Logger:     logger,
		Metrics:    metrics,
	})

	slog.Info("serving MCP over stdio")
	if err := server.Run(ctx, version); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}
