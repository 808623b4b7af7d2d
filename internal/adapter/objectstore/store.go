package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/agmet-derive/internal/config"
	"github.com/couchcryptid/agmet-derive/internal/pipeline"
	"github.com/couchcryptid/agmet-derive/internal/table"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const csvContentType = "text/csv"

// objects is the subset of bucket operations the store needs.
type objects interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PutFile(ctx context.Context, key, localPath string) error
	Remove(ctx context.Context, key string) error
}

// Store reads input tables from and writes output tables to an S3-compatible
// bucket. Table paths are object keys. Outputs are staged in a local
// directory and uploaded on Commit, so an aborted run uploads nothing.
// It implements pipeline.Store.
type Store struct {
	objects objects
	staging string
	timeout time.Duration
	logger  *slog.Logger
}

// New connects to the configured endpoint and checks that the bucket exists.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	endpoint := strings.TrimPrefix(cfg.ObjectStoreEndpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ObjectStoreAccessKey, cfg.ObjectStoreSecretKey, ""),
		Secure: cfg.ObjectStoreSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, cfg.ObjectStoreTimeout)
	defer cancel()
	exists, err := client.BucketExists(checkCtx, cfg.ObjectStoreBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.ObjectStoreBucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.ObjectStoreBucket)
	}
	logger.Info("object store connected", "endpoint", endpoint, "bucket", cfg.ObjectStoreBucket)

	return newStore(&bucket{client: client, name: cfg.ObjectStoreBucket}, cfg.ObjectStoreTimeout, logger)
}

func newStore(objs objects, timeout time.Duration, logger *slog.Logger) (*Store, error) {
	staging, err := os.MkdirTemp("", "agmet-derive-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Store{objects: objs, staging: staging, timeout: timeout, logger: logger}, nil
}

// Close removes the local staging directory.
func (s *Store) Close() error {
	return os.RemoveAll(s.staging)
}

// Open streams the object at key as a table. The whole read, not just the
// request, is bounded by the store timeout.
func (s *Store) Open(key string) (pipeline.TableReader, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

	body, err := s.objects.Get(ctx, key)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open table %s: %w", key, err)
	}
	r, err := table.NewReader(key, body)
	if err != nil {
		body.Close()
		cancel()
		return nil, err
	}
	return &objectReader{Reader: r, body: body, cancel: cancel}, nil
}

// Create stages a table for key locally.
func (s *Store) Create(key string, columns []string) (pipeline.TableWriter, error) {
	local := filepath.Join(s.staging, strings.ReplaceAll(key, "/", "_"))
	w, err := table.Create(local, columns)
	if err != nil {
		return nil, err
	}
	return &objectWriter{Writer: w, store: s, key: key}, nil
}

type objectReader struct {
	*table.Reader
	body   io.Closer
	cancel context.CancelFunc
}

func (r *objectReader) Close() error {
	defer r.cancel()
	return r.body.Close()
}

type objectWriter struct {
	*table.Writer
	store    *Store
	key      string
	uploaded bool
}

// Commit finishes the staged file and uploads it.
func (w *objectWriter) Commit() error {
	if err := w.Writer.Commit(); err != nil {
		return err
	}
	defer os.Remove(w.Path())

	ctx, cancel := context.WithTimeout(context.Background(), w.store.timeout)
	defer cancel()
	if err := w.store.objects.PutFile(ctx, w.key, w.Path()); err != nil {
		return fmt.Errorf("upload table %s: %w", w.key, err)
	}
	w.uploaded = true
	w.store.logger.Debug("table uploaded", "key", w.key)
	return nil
}

// Revert deletes an uploaded table.
func (w *objectWriter) Revert() error {
	if !w.uploaded {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.store.timeout)
	defer cancel()
	if err := w.store.objects.Remove(ctx, w.key); err != nil {
		return fmt.Errorf("remove table %s: %w", w.key, err)
	}
	w.uploaded = false
	w.store.logger.Debug("table removed", "key", w.key)
	return nil
}

// bucket adapts a minio client to objects.
type bucket struct {
	client *minio.Client
	name   string
}

func (b *bucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.name, path.Clean(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

func (b *bucket) PutFile(ctx context.Context, key, localPath string) error {
	_, err := b.client.FPutObject(ctx, b.name, path.Clean(key), localPath,
		minio.PutObjectOptions{ContentType: csvContentType})
	return err
}

func (b *bucket) Remove(ctx context.Context, key string) error {
	return b.client.RemoveObject(ctx, b.name, path.Clean(key), minio.RemoveObjectOptions{})
}
