package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Embeddings    EmbeddingsConfig
	ObjectStore   ObjectStoreConfig
	Retrieval     RetrievalConfig
	Schema        SchemaConfig
	Query         QueryConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver   string
	DSN      string
	ReadOnly bool
}

type EmbeddingsConfig struct {
	Location string
	Strict   bool
}

// ObjectStoreConfig holds the S3 connection settings. The bucket and key come
// from the s3:// snapshot location.
type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	AutoCreateBucket bool
}

type RetrievalConfig struct {
	TopK int
}

type SchemaConfig struct {
	SampleRows int
}

type QueryConfig struct {
	MaxRows int
}

type AIConfig struct {
	Provider       string
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float64
	Timeout        time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("NBAI_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid NBAI_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "NBAI_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "NBAI_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "NBAI_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "NBAI_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "NBAI_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "NBAI_DB_DRIVER", &cfg.Database.Driver) },
		func() error { return applyString(lookup, "NBAI_DB_DSN", &cfg.Database.DSN) },
		func() error { return applyBool(lookup, "NBAI_DB_READ_ONLY", &cfg.Database.ReadOnly) },
		func() error { return applyString(lookup, "NBAI_EMBEDDINGS_LOCATION", &cfg.Embeddings.Location) },
		func() error { return applyBool(lookup, "NBAI_EMBEDDINGS_STRICT", &cfg.Embeddings.Strict) },
		func() error { return applyString(lookup, "NBAI_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "NBAI_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "NBAI_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error { return applyString(lookup, "NBAI_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey) },
		func() error { return applyBool(lookup, "NBAI_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error {
			return applyBool(lookup, "NBAI_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyInt(lookup, "NBAI_RETRIEVAL_TOP_K", &cfg.Retrieval.TopK) },
		func() error { return applyInt(lookup, "NBAI_SCHEMA_SAMPLE_ROWS", &cfg.Schema.SampleRows) },
		func() error { return applyInt(lookup, "NBAI_QUERY_MAX_ROWS", &cfg.Query.MaxRows) },
		func() error { return applyString(lookup, "NBAI_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "NBAI_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "NBAI_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "NBAI_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyString(lookup, "NBAI_AI_EMBEDDING_MODEL", &cfg.AI.EmbeddingModel) },
		func() error { return applyFloat(lookup, "NBAI_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "NBAI_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyBool(lookup, "NBAI_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "NBAI_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "NBAI_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "NBAI_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = providerKeyFallback(lookup, cfg.AI.Provider)
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.Database.Driver {
	case "sqlite", "duckdb", "postgres":
	default:
		return Config{}, fmt.Errorf("invalid NBAI_DB_DRIVER: %q", cfg.Database.Driver)
	}
	switch cfg.AI.Provider {
	case "gemini", "openai":
	default:
		return Config{}, fmt.Errorf("invalid NBAI_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	if cfg.Embeddings.Location == "" {
		return Config{}, fmt.Errorf("embeddings location is required")
	}
	if cfg.Retrieval.TopK <= 0 {
		return Config{}, fmt.Errorf("NBAI_RETRIEVAL_TOP_K must be > 0")
	}
	if cfg.Schema.SampleRows < 0 {
		return Config{}, fmt.Errorf("NBAI_SCHEMA_SAMPLE_ROWS must be >= 0")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "nbai-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   "sqlite",
			DSN:      "nba_stats.db",
			ReadOnly: true,
		},
		Embeddings: EmbeddingsConfig{
			Location: "table_embeddings.parquet",
			Strict:   false,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			AutoCreateBucket: true,
		},
		Retrieval: RetrievalConfig{TopK: 8},
		Schema:    SchemaConfig{SampleRows: 5},
		Query:     QueryConfig{MaxRows: 100},
		AI: AIConfig{
			Provider:       "gemini",
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "text-embedding-004",
			Temperature:    0,
			Timeout:        30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.Embeddings.Strict = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func providerKeyFallback(lookup LookupFunc, provider string) string {
	key := "GOOGLE_API_KEY"
	if provider == "openai" {
		key = "OPENAI_API_KEY"
	}
	if raw, ok := lookup(key); ok {
		return strings.TrimSpace(raw)
	}
	return ""
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
