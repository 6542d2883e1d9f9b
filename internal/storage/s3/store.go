// Package s3 keeps embedding snapshots in an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nbai/nbai/internal/config"
	"github.com/nbai/nbai/internal/storage"
)

// bucketAPI is the slice of the S3 API a snapshot needs, bound to one bucket.
type bucketAPI interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, key string) (minio.ObjectInfo, error)
	EnsureExists(ctx context.Context) error
}

// Store serves the objects of a single bucket. Readers never create the
// bucket; with autoCreate the first Put does.
type Store struct {
	api        bucketAPI
	bucket     string
	autoCreate bool

	ensureOnce sync.Once
	ensureErr  error
}

// Open connects to the bucket named by loc and returns the store together with
// the object key inside it.
func Open(settings config.ObjectStoreConfig, loc storage.Location) (*Store, string, error) {
	if !loc.Remote() {
		return nil, "", fmt.Errorf("location %q is not an s3 location", loc)
	}
	key, err := objectKey(loc.Key)
	if err != nil {
		return nil, "", err
	}
	endpoint, secure, err := parseEndpoint(settings.Endpoint, settings.UseSSL)
	if err != nil {
		return nil, "", err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKeyID, settings.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(settings.Region),
	})
	if err != nil {
		return nil, "", fmt.Errorf("create s3 client for %s: %w", endpoint, err)
	}
	api := &minioBucket{client: client, name: loc.Bucket, region: strings.TrimSpace(settings.Region)}
	return newStore(loc.Bucket, api, settings.AutoCreateBucket), key, nil
}

func newStore(bucket string, api bucketAPI, autoCreate bool) *Store {
	return &Store{api: api, bucket: bucket, autoCreate: autoCreate}
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	key, err := objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	if s.autoCreate {
		s.ensureOnce.Do(func() { s.ensureErr = s.api.EnsureExists(ctx) })
		if s.ensureErr != nil {
			return storage.ObjectInfo{}, fmt.Errorf("prepare bucket %q: %w", s.bucket, s.ensureErr)
		}
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upload, err := s.api.PutObject(ctx, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload %s: %w", s.uri(key), mapError(err))
	}
	if size >= 0 && upload.Size != size {
		return storage.ObjectInfo{}, fmt.Errorf("upload %s: wrote %d of %d bytes", s.uri(key), upload.Size, size)
	}
	return storage.ObjectInfo{Key: key, Size: upload.Size, ETag: upload.ETag, LastModified: upload.LastModified}, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := objectKey(key)
	if err != nil {
		return nil, err
	}
	body, err := s.api.GetObject(ctx, key)
	if err != nil {
		return nil, s.wrap("download", key, err)
	}
	return body, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	key, err := objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.api.StatObject(ctx, key)
	if err != nil {
		return storage.ObjectInfo{}, s.wrap("stat", key, err)
	}
	return storage.ObjectInfo{Key: key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

func (s *Store) wrap(op, key string, err error) error {
	err = mapError(err)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("%s: %w", s.uri(key), storage.ErrObjectNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, s.uri(key), err)
}

func (s *Store) uri(key string) string {
	return storage.Location{Bucket: s.bucket, Key: key}.String()
}

// objectKey accepts the keys ParseLocation produces and rejects anything
// that could escape them.
func objectKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("object key %q must name an object", key)
	}
	if strings.HasPrefix(key, "/") || path.Clean(key) != key || key == ".." || strings.HasPrefix(key, "../") {
		return "", fmt.Errorf("object key %q is not canonical", key)
	}
	return key, nil
}

// parseEndpoint takes "host:port" or a URL; an https URL forces TLS.
func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("object store endpoint is required for s3 locations")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse object store endpoint: %w", err)
	}
	switch {
	case parsed.Host == "":
		return "", false, fmt.Errorf("object store endpoint %q has no host", raw)
	case parsed.Scheme == "https":
		return parsed.Host, true, nil
	case parsed.Scheme == "http":
		return parsed.Host, useSSL, nil
	default:
		return "", false, fmt.Errorf("object store endpoint scheme %q is not supported", parsed.Scheme)
	}
}

func mapError(err error) error {
	var response minio.ErrorResponse
	if errors.As(err, &response) {
		switch response.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound", "NoSuchObject":
			return storage.ErrObjectNotFound
		}
	}
	return err
}

type minioBucket struct {
	client *minio.Client
	name   string
	region string
}

func (b *minioBucket) PutObject(ctx context.Context, key string, body io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return b.client.PutObject(ctx, b.name, key, body, size, opts)
}

// GetObject is lazy in minio; the stat forces missing objects to surface here.
func (b *minioBucket) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}

func (b *minioBucket) StatObject(ctx context.Context, key string) (minio.ObjectInfo, error) {
	return b.client.StatObject(ctx, b.name, key, minio.StatObjectOptions{})
}

func (b *minioBucket) EnsureExists(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return b.client.MakeBucket(ctx, b.name, minio.MakeBucketOptions{Region: b.region})
}
