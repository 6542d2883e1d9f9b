package embedding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nbai/nbai/internal/config"
	"github.com/nbai/nbai/internal/observability"
	"github.com/nbai/nbai/internal/storage"
	"github.com/nbai/nbai/internal/storage/local"
	"github.com/nbai/nbai/internal/storage/s3"
)

const maxSnapshotBytes = 64 << 20

// OpenLocation resolves a snapshot location into the store holding it and the
// key inside that store.
func OpenLocation(_ context.Context, raw string, objectStore config.ObjectStoreConfig) (storage.ObjectStore, string, error) {
	loc, err := storage.ParseLocation(raw)
	if err != nil {
		return nil, "", err
	}
	if !loc.Remote() {
		return local.New(filepath.Dir(loc.Key)), filepath.Base(loc.Key), nil
	}
	store, key, err := s3.Open(objectStore, loc)
	if err != nil {
		return nil, "", fmt.Errorf("open snapshot bucket %q: %w", loc.Bucket, err)
	}
	return store, key, nil
}

// Loader reads the snapshot from its store on every call; nothing is cached.
type Loader struct {
	Store        storage.ObjectStore
	Key          string
	ExpectedHash string
	Strict       bool
	Logger       *slog.Logger
}

func (l *Loader) Load(ctx context.Context) (Snapshot, error) {
	if l == nil || l.Store == nil {
		return Snapshot{}, fmt.Errorf("snapshot store is not configured")
	}
	data, err := storage.ReadObject(ctx, l.Store, l.Key, maxSnapshotBytes)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Snapshot{}, fmt.Errorf("embedding snapshot %q not found: %w", l.Key, err)
		}
		return Snapshot{}, fmt.Errorf("read embedding snapshot %q: %w", l.Key, err)
	}
	snap, err := Decode(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode embedding snapshot %q: %w", l.Key, err)
	}

	if err := snap.CheckFreshness(l.ExpectedHash); err != nil {
		observability.IncrementStaleSnapshot()
		if l.Strict {
			return Snapshot{}, err
		}
		observability.LoggerOrDiscard(l.Logger).WarnContext(ctx, "embedding_snapshot_stale",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("key", l.Key),
			slog.String("model", snap.Model),
			slog.Time("generated_at", snap.GeneratedAt),
			slog.String("error", err.Error()),
		)
	}
	return snap, nil
}

// Stat is used by readiness checks.
func (l *Loader) Stat(ctx context.Context) error {
	if l == nil || l.Store == nil {
		return fmt.Errorf("snapshot store is not configured")
	}
	if _, err := l.Store.Stat(ctx, l.Key); err != nil {
		return fmt.Errorf("stat embedding snapshot %q: %w", l.Key, err)
	}
	return nil
}

func Save(ctx context.Context, store storage.ObjectStore, key string, snap Snapshot) (storage.ObjectInfo, error) {
	if store == nil {
		return storage.ObjectInfo{}, fmt.Errorf("snapshot store is required")
	}
	data, err := Encode(snap)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "application/vnd.apache.parquet"})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("write embedding snapshot %q: %w", key, err)
	}
	return info, nil
}
