// Package local provides a Store over a directory on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fruitsalade/remsh/internal/logging"
	"github.com/fruitsalade/remsh/internal/metrics"
	"github.com/fruitsalade/remsh/pkg/listing"
	"github.com/fruitsalade/remsh/pkg/models"
)

const tempPrefix = ".remsh-"

// Config holds local store settings.
type Config struct {
	Root       string
	CreateDirs bool
}

// Store keeps every remote path under one root directory.
type Store struct {
	root       string
	createDirs bool
}

// New creates a local store. The root must exist unless CreateDirs is set.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("root is required")
	}

	info, err := os.Stat(cfg.Root)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("root %s is not a directory", cfg.Root)
	case errors.Is(err, fs.ErrNotExist) && cfg.CreateDirs:
		if mkErr := os.MkdirAll(cfg.Root, 0o755); mkErr != nil {
			return nil, fmt.Errorf("create root %s: %w", cfg.Root, mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat root %s: %w", cfg.Root, err)
	}

	return &Store{root: cfg.Root, createDirs: cfg.CreateDirs}, nil
}

func clean(p string) string {
	return path.Clean("/" + p)
}

// fullPath maps a remote path below the root; ".." cannot climb out.
func (s *Store) fullPath(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(clean(p)))
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStorageOperation("local", op, time.Since(start), err == nil)
}

// List reads the entries of dir. Names that the listing format cannot carry
// and in-flight temp files are skipped.
func (s *Store) List(_ context.Context, dir string) (snap *models.Snapshot, err error) {
	start := time.Now()
	defer func() { observe("list", start, err) }()

	dir = clean(dir)
	entries, err := os.ReadDir(s.fullPath(dir))
	if err != nil {
		var pe *fs.PathError
		if errors.As(err, &pe) && errors.Is(pe.Err, syscall.ENOTDIR) {
			return nil, &fs.PathError{Op: "list", Path: dir, Err: syscall.ENOTDIR}
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var dirs []string
	files := make(map[string]int64)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, tempPrefix) || !listing.Representable(name) {
			logging.Debug("skipping entry", logging.String("dir", dir), logging.String("name", name))
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, name)
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files[name] = info.Size()
	}
	return models.NewSnapshot(dir, dirs, files)
}

// Stat describes p.
func (s *Store) Stat(_ context.Context, p string) (models.Entry, error) {
	p = clean(p)
	info, err := os.Stat(s.fullPath(p))
	if err != nil {
		return models.Entry{}, fmt.Errorf("stat %s: %w", p, err)
	}
	e := models.Entry{Name: path.Base(p), Kind: models.KindFile, Size: info.Size()}
	if info.IsDir() {
		e.Kind, e.Size = models.KindDir, 0
	}
	return e, nil
}

// GetObject opens the file at p.
func (s *Store) GetObject(_ context.Context, p string) (rc io.ReadCloser, size int64, err error) {
	start := time.Now()
	defer func() { observe("get_object", start, err) }()

	p = clean(p)
	f, err := os.Open(s.fullPath(p))
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, &fs.PathError{Op: "open", Path: p, Err: syscall.EISDIR}
	}
	return f, info.Size(), nil
}

// PutObject writes the file at p through a temp file and a rename, so a
// reader never sees a partial file.
func (s *Store) PutObject(_ context.Context, p string, body io.Reader, _ int64) (err error) {
	start := time.Now()
	defer func() { observe("put_object", start, err) }()

	p = clean(p)
	full := s.fullPath(p)
	dir := filepath.Dir(full)

	if s.createDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", p, err)
		}
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", p, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", p, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", p, err)
	}
	return nil
}

// Mkdir creates dir and any missing parents.
func (s *Store) Mkdir(_ context.Context, dir string) (err error) {
	start := time.Now()
	defer func() { observe("mkdir", start, err) }()

	dir = clean(dir)
	if err := os.MkdirAll(s.fullPath(dir), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// Move renames src to dst. When dst is an existing directory src is moved
// into it.
func (s *Store) Move(_ context.Context, src, dst string) (err error) {
	start := time.Now()
	defer func() { observe("move", start, err) }()

	src, dst = clean(src), clean(dst)
	if src == "/" {
		return &fs.PathError{Op: "move", Path: src, Err: syscall.EPERM}
	}
	if _, err := os.Lstat(s.fullPath(src)); err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	if info, err := os.Stat(s.fullPath(dst)); err == nil && info.IsDir() {
		dst = path.Join(dst, path.Base(src))
	}
	if dst == src || strings.HasPrefix(dst, src+"/") {
		return fmt.Errorf("move %s to %s: %w", src, dst, syscall.EINVAL)
	}

	if s.createDirs {
		if err := os.MkdirAll(filepath.Dir(s.fullPath(dst)), 0o755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", dst, err)
		}
	}
	if err := os.Rename(s.fullPath(src), s.fullPath(dst)); err != nil {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}
	return nil
}

// Delete removes p and, for a directory, everything below it. The root
// cannot be deleted.
func (s *Store) Delete(_ context.Context, p string) (err error) {
	start := time.Now()
	defer func() { observe("delete", start, err) }()

	p = clean(p)
	if p == "/" {
		return &fs.PathError{Op: "delete", Path: p, Err: syscall.EPERM}
	}
	if _, err := os.Lstat(s.fullPath(p)); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	if err := os.RemoveAll(s.fullPath(p)); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// Type returns "local".
func (s *Store) Type() string { return "local" }

// Close is a no-op for local stores.
func (s *Store) Close() error { return nil }
