package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const s3Scheme = "s3://"

// Location points at a snapshot either on the local filesystem or in a bucket.
type Location struct {
	Bucket string
	Key    string
}

// ParseLocation accepts "s3://bucket/key" or a filesystem path.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("location is required")
	}
	if !strings.HasPrefix(strings.ToLower(raw), s3Scheme) {
		return Location{Key: filepath.Clean(raw)}, nil
	}

	rest := raw[len(s3Scheme):]
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || strings.TrimSpace(bucket) == "" {
		return Location{}, fmt.Errorf("invalid s3 location %q: bucket is required", raw)
	}
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return Location{}, fmt.Errorf("invalid s3 location %q: key is required", raw)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return Location{}, fmt.Errorf("invalid s3 location %q", raw)
	}
	return Location{Bucket: bucket, Key: cleaned}, nil
}

func (l Location) Remote() bool {
	return l.Bucket != ""
}

func (l Location) String() string {
	if l.Remote() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Key
}
