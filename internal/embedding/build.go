package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/nbai/nbai/internal/catalog"
)

// Build embeds every descriptor's description in one batch.
func Build(ctx context.Context, embedder Embedder, descriptors []catalog.TableDescriptor, now time.Time) (Snapshot, error) {
	if embedder == nil {
		return Snapshot{}, fmt.Errorf("embedder is required")
	}
	if len(descriptors) == 0 {
		return Snapshot{}, fmt.Errorf("descriptors are required")
	}
	texts := make([]string, len(descriptors))
	for i, d := range descriptors {
		texts[i] = d.Description
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return Snapshot{}, err
	}
	if len(vectors) != len(descriptors) {
		return Snapshot{}, fmt.Errorf("embedder returned %d vectors for %d descriptors", len(vectors), len(descriptors))
	}

	snap := Snapshot{
		Records:     make([]Record, len(descriptors)),
		ContentHash: catalog.HashDescriptors(descriptors),
		Model:       embedder.Model(),
		GeneratedAt: now.UTC(),
	}
	for i, d := range descriptors {
		snap.Records[i] = Record{TableName: d.Name, Vector: vectors[i]}
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
