// Package tree resolves remote paths and answers existence queries against
// the directory cache.
package tree

import (
	"context"
	"io/fs"
	"path"
	"strings"
	"syscall"

	"github.com/fruitsalade/remsh/pkg/cache"
	"github.com/fruitsalade/remsh/pkg/models"
)

// Absolute resolves p against base lexically. An empty p means base.
func Absolute(p, base string) string {
	if p == "" {
		p = base
	}
	if !strings.HasPrefix(p, "/") {
		p = path.Join(base, p)
	}
	return path.Clean("/" + p)
}

// Split returns the parent directory and base name of an absolute path.
// The root splits into ("/", "").
func Split(abs string) (parent, name string) {
	abs = path.Clean(abs)
	if abs == "/" {
		return "/", ""
	}
	return path.Dir(abs), path.Base(abs)
}

// BuildChildPath constructs a child path from parent + name.
func BuildChildPath(parentPath, name string) string {
	if parentPath == "/" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// IsRoot reports whether p names the root directory.
func IsRoot(p string) bool {
	return path.Clean("/"+p) == "/"
}

// NotFound returns the error for a path that does not exist.
func NotFound(op, p string) error {
	return &fs.PathError{Op: op, Path: p, Err: syscall.ENOENT}
}

// NotDir returns the error for a path that exists but is not a directory.
func NotDir(op, p string) error {
	return &fs.PathError{Op: op, Path: p, Err: syscall.ENOTDIR}
}

// IsDirErr returns the error for a directory given where a file is required.
func IsDirErr(op, p string) error {
	return &fs.PathError{Op: op, Path: p, Err: syscall.EISDIR}
}

// Resolver answers existence and type questions by looking paths up in their
// parent directory's snapshot. The root always exists and is a directory.
type Resolver struct {
	cache *cache.Cache
}

// NewResolver returns a resolver backed by c.
func NewResolver(c *cache.Cache) *Resolver {
	return &Resolver{cache: c}
}

// Cache returns the underlying directory cache.
func (r *Resolver) Cache() *cache.Cache {
	return r.cache
}

func (r *Resolver) lookup(ctx context.Context, abs string, fresh bool) (models.Entry, bool, error) {
	if IsRoot(abs) {
		return models.Entry{Name: "/", Kind: models.KindDir}, true, nil
	}
	parent, name := Split(abs)
	if fresh {
		r.cache.Invalidate(parent)
	}
	snap, err := r.cache.Get(ctx, parent)
	if err != nil {
		return models.Entry{}, false, err
	}
	entry, ok := snap.Lookup(name)
	return entry, ok, nil
}

// Exists reports whether abs exists. With fresh set the parent listing is
// refetched first.
func (r *Resolver) Exists(ctx context.Context, abs string, fresh bool) (bool, error) {
	_, ok, err := r.lookup(ctx, abs, fresh)
	return ok, err
}

// IsDir reports whether abs exists and is a directory.
func (r *Resolver) IsDir(ctx context.Context, abs string, fresh bool) (bool, error) {
	entry, ok, err := r.lookup(ctx, abs, fresh)
	return ok && entry.IsDir(), err
}

// Stat returns the entry for abs, or a *fs.PathError wrapping ENOENT.
func (r *Resolver) Stat(ctx context.Context, abs string, fresh bool) (models.Entry, error) {
	entry, ok, err := r.lookup(ctx, abs, fresh)
	if err != nil {
		return models.Entry{}, err
	}
	if !ok {
		return models.Entry{}, NotFound("stat", abs)
	}
	return entry, nil
}
