// Package storage defines the Store behind remsh-backend and the recursive
// transfers between a Store and the local filesystem.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/fruitsalade/remsh/internal/config"
	"github.com/fruitsalade/remsh/internal/storage/local"
	s3store "github.com/fruitsalade/remsh/internal/storage/s3"
	"github.com/fruitsalade/remsh/pkg/models"
)

// Store is a hierarchical file store addressed by absolute slash paths.
// Missing paths yield errors matching fs.ErrNotExist.
type Store interface {
	// List returns the immediate children of dir.
	List(ctx context.Context, dir string) (*models.Snapshot, error)

	// Stat describes one path. The root is always a directory.
	Stat(ctx context.Context, p string) (models.Entry, error)

	// GetObject opens a file for reading and returns its size.
	GetObject(ctx context.Context, p string) (io.ReadCloser, int64, error)

	// PutObject writes a file, creating missing parent directories.
	PutObject(ctx context.Context, p string, body io.Reader, size int64) error

	// Mkdir creates dir and its parents.
	Mkdir(ctx context.Context, dir string) error

	// Move renames a file or a whole directory.
	Move(ctx context.Context, src, dst string) error

	// Delete removes a file, or a directory and everything below it.
	Delete(ctx context.Context, p string) error

	// Type returns the store type identifier ("local", "s3").
	Type() string

	// Close releases any resources held by the store.
	Close() error
}

// Open creates the Store selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "local":
		st, err := local.New(local.Config{Root: cfg.Root, CreateDirs: true})
		if err != nil {
			return nil, err
		}
		return st, nil
	case "s3":
		st, err := s3store.New(ctx, s3store.Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
