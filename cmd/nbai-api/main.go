package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nbai/nbai/internal/api"
	"github.com/nbai/nbai/internal/auth"
	"github.com/nbai/nbai/internal/catalog"
	"github.com/nbai/nbai/internal/config"
	"github.com/nbai/nbai/internal/database"
	"github.com/nbai/nbai/internal/embedding"
	"github.com/nbai/nbai/internal/modelapi"
	"github.com/nbai/nbai/internal/nl2sql"
	"github.com/nbai/nbai/internal/observability"
	"github.com/nbai/nbai/internal/pipeline"
	"github.com/nbai/nbai/internal/query"
	"github.com/nbai/nbai/internal/retrieval"
	"github.com/nbai/nbai/internal/schema"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("nbai-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

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
	generator, err := nl2sql.NewGenerator(modelClient, nl2sql.GeneratorConfig{
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
	})
	if err != nil {
		logger.Error("failed to initialize sql generator", slog.Any("error", err))
		os.Exit(1)
	}

	snapshotStore, snapshotKey, err := embedding.OpenLocation(context.Background(), cfg.Embeddings.Location, cfg.ObjectStore)
	if err != nil {
		logger.Error("failed to open embedding snapshot location", slog.Any("error", err))
		os.Exit(1)
	}
	loader := &embedding.Loader{
		Store:        snapshotStore,
		Key:          snapshotKey,
		ExpectedHash: catalog.ContentHash(),
		Strict:       cfg.Embeddings.Strict,
		Logger:       logger,
	}

	opener, err := database.NewOpener(cfg.Database)
	if err != nil {
		logger.Error("failed to configure stats database", slog.Any("error", err))
		os.Exit(1)
	}

	selector, err := retrieval.NewSelector(loader, embedder, logger)
	if err != nil {
		logger.Error("failed to initialize table selector", slog.Any("error", err))
		os.Exit(1)
	}
	enricher, err := schema.NewEnricher(opener, cfg.Schema.SampleRows, logger)
	if err != nil {
		logger.Error("failed to initialize schema enricher", slog.Any("error", err))
		os.Exit(1)
	}
	synthesizer, err := nl2sql.NewSynthesizer(generator, opener.Dialect().Name, logger)
	if err != nil {
		logger.Error("failed to initialize sql synthesizer", slog.Any("error", err))
		os.Exit(1)
	}
	executor, err := query.NewExecutor(opener, cfg.Query.MaxRows, logger)
	if err != nil {
		logger.Error("failed to initialize query executor", slog.Any("error", err))
		os.Exit(1)
	}
	stats, err := pipeline.NewService(pipeline.Config{
		Selector:    selector,
		Enricher:    enricher,
		Synthesizer: synthesizer,
		Executor:    executor,
		TopK:        cfg.Retrieval.TopK,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to initialize stats pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:      logger,
		Stats:       stats,
		Ranker:      selector,
		DefaultTopK: cfg.Retrieval.TopK,
		Readiness: api.CombineReadinessChecks(
			api.CheckObjectStoreConfig(cfg),
			api.CheckSnapshot(loader),
			api.CheckDatabase(opener),
		),
		DependencyTimeout: 2 * time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		if validator.Len() == 0 {
			logger.Warn("auth required but no static keys configured; protected routes will reject every request")
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("db_driver", opener.Dialect().Name),
			slog.String("embeddings", cfg.Embeddings.Location),
			slog.String("model_provider", modelClient.Provider()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
