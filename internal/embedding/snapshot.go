package embedding

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

const (
	metaContentHash = "nbai.content_hash"
	metaGeneratedAt = "nbai.generated_at"
	metaModel       = "nbai.model"
	metaDimensions  = "nbai.dimensions"
)

var ErrStaleSnapshot = errors.New("embedding snapshot is stale")

type Record struct {
	TableName string
	Vector    []float32
}

// Snapshot is the persisted set of table embeddings, in catalog order.
type Snapshot struct {
	Records     []Record
	ContentHash string
	Model       string
	GeneratedAt time.Time
}

func (s Snapshot) Dimensions() int {
	if len(s.Records) == 0 {
		return 0
	}
	return len(s.Records[0].Vector)
}

func (s Snapshot) Validate() error {
	if len(s.Records) == 0 {
		return fmt.Errorf("snapshot has no records")
	}
	dims := s.Dimensions()
	seen := make(map[string]struct{}, len(s.Records))
	for i, r := range s.Records {
		if strings.TrimSpace(r.TableName) == "" {
			return fmt.Errorf("record %d has no table name", i)
		}
		if _, ok := seen[r.TableName]; ok {
			return fmt.Errorf("duplicate record for table %q", r.TableName)
		}
		seen[r.TableName] = struct{}{}
		if len(r.Vector) == 0 {
			return fmt.Errorf("record %q has an empty vector", r.TableName)
		}
		if len(r.Vector) != dims {
			return fmt.Errorf("record %q has %d dimensions, want %d", r.TableName, len(r.Vector), dims)
		}
	}
	return nil
}

// CheckFreshness reports ErrStaleSnapshot when the snapshot was built from
// a different descriptor set than expectedHash.
func (s Snapshot) CheckFreshness(expectedHash string) error {
	if expectedHash == "" || s.ContentHash == expectedHash {
		return nil
	}
	return fmt.Errorf("%w: content hash %q, catalog %q", ErrStaleSnapshot, shortHash(s.ContentHash), shortHash(expectedHash))
}

type parquetRecord struct {
	TableName string    `parquet:"table_name"`
	Embedding []float32 `parquet:"embedding"`
}

func Encode(s Snapshot) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	rows := make([]parquetRecord, 0, len(s.Records))
	for _, r := range s.Records {
		rows = append(rows, parquetRecord{TableName: r.TableName, Embedding: r.Vector})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRecord](buf,
		parquet.KeyValueMetadata(metaContentHash, s.ContentHash),
		parquet.KeyValueMetadata(metaGeneratedAt, s.GeneratedAt.UTC().Format(time.RFC3339Nano)),
		parquet.KeyValueMetadata(metaModel, s.Model),
		parquet.KeyValueMetadata(metaDimensions, strconv.Itoa(s.Dimensions())),
	)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{}, fmt.Errorf("snapshot is empty")
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Snapshot{}, fmt.Errorf("open parquet snapshot: %w", err)
	}

	snap := Snapshot{}
	snap.ContentHash, _ = file.Lookup(metaContentHash)
	snap.Model, _ = file.Lookup(metaModel)
	if raw, ok := file.Lookup(metaGeneratedAt); ok && raw != "" {
		generatedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("invalid %s: %w", metaGeneratedAt, err)
		}
		snap.GeneratedAt = generatedAt
	}

	reader := parquet.NewGenericReader[parquetRecord](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()
	rows := make([]parquetRecord, reader.NumRows())
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return Snapshot{}, fmt.Errorf("read parquet rows: %w", err)
	}
	rows = rows[:count]

	snap.Records = make([]Record, 0, len(rows))
	for _, row := range rows {
		snap.Records = append(snap.Records, Record{TableName: row.TableName, Vector: row.Embedding})
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	if raw, ok := file.Lookup(metaDimensions); ok && raw != "" {
		dims, err := strconv.Atoi(raw)
		if err != nil || dims != snap.Dimensions() {
			return Snapshot{}, fmt.Errorf("invalid snapshot: %s=%q but vectors have %d", metaDimensions, raw, snap.Dimensions())
		}
	}
	return snap, nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
