// Command nbai-embed embeds every table descriptor and writes the Parquet
// snapshot that table selection reads.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nbai/nbai/internal/catalog"
	"github.com/nbai/nbai/internal/config"
	"github.com/nbai/nbai/internal/embedding"
	"github.com/nbai/nbai/internal/modelapi"
	"github.com/nbai/nbai/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("nbai-embed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	location := flag.String("location", cfg.Embeddings.Location, "snapshot destination (path or s3://bucket/key)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	modelClient, err := modelapi.NewClient(modelapi.SettingsFromConfig(cfg.AI))
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}
	embedder, err := embedding.NewEmbedder(modelClient, cfg.AI.EmbeddingModel)
	if err != nil {
		logger.Error("failed to initialize embedder", slog.Any("error", err))
		os.Exit(1)
	}

	descriptors := catalog.Descriptors()
	started := time.Now()
	snap, err := embedding.Build(ctx, embedder, descriptors, time.Now().UTC())
	if err != nil {
		logger.Error("failed to embed table descriptors", slog.Any("error", err))
		os.Exit(1)
	}

	store, key, err := embedding.OpenLocation(ctx, *location, cfg.ObjectStore)
	if err != nil {
		logger.Error("failed to open snapshot location", slog.Any("error", err))
		os.Exit(1)
	}
	info, err := embedding.Save(ctx, store, key, snap)
	if err != nil {
		logger.Error("failed to write snapshot", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("embedding snapshot written",
		slog.String("location", *location),
		slog.Int("tables", len(snap.Records)),
		slog.Int("dimensions", snap.Dimensions()),
		slog.String("model", snap.Model),
		slog.String("content_hash", snap.ContentHash),
		slog.Int64("bytes", info.Size),
		slog.Duration("elapsed", time.Since(started)),
	)
}
