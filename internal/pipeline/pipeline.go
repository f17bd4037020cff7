// Package pipeline runs local tools over private copies of remote files.
//
// Every run owns a scratch directory that is removed on every exit path.
// View runs fetch the file and run the tool. Write-back runs fetch the file
// only if it exists, run the tool, then always upload the result, which is
// how an editor creates new remote files.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/fruitsalade/remsh/internal/backend"
	"github.com/fruitsalade/remsh/internal/logging"
	"github.com/fruitsalade/remsh/internal/metrics"
	"github.com/fruitsalade/remsh/pkg/tree"
)

// Action runs over the local copy of a remote file.
type Action func(ctx context.Context, localPath string) error

// Options select the pipeline mode.
type Options struct {
	// Silent suppresses the backend's download output.
	Silent bool
	// WriteBack uploads the local copy after the action returns.
	WriteBack bool
}

// Pipeline fetches, runs and writes back remote files.
type Pipeline struct {
	client      *backend.Client
	resolver    *tree.Resolver
	scratchRoot string

	// Name prefixes the fetch failures written to Stderr.
	Name   string
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a pipeline. scratchRoot is where scratch directories are made;
// empty means os.TempDir.
func New(client *backend.Client, resolver *tree.Resolver, scratchRoot string) *Pipeline {
	return &Pipeline{
		client:      client,
		resolver:    resolver,
		scratchRoot: scratchRoot,
		Name:        "remsh",
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// Run copies remote into a fresh scratch directory, keeping its base name,
// and calls action with the local path. remote must be absolute and name a
// file; the root is refused.
func (p *Pipeline) Run(ctx context.Context, remote string, action Action, opts Options) (err error) {
	if tree.IsRoot(remote) {
		return tree.IsDirErr("fetch", "/")
	}

	mode := "view"
	if opts.WriteBack {
		mode = "edit"
	}

	dir, err := os.MkdirTemp(p.scratchRoot, "remsh-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			err = multierr.Append(err, fmt.Errorf("remove scratch dir: %w", rmErr))
		}
		metrics.RecordPipelineRun(mode, err == nil)
	}()

	local := filepath.Join(dir, path.Base(remote))
	log := logging.WithContext(ctx)

	if !opts.WriteBack {
		out, fetchErr := p.client.Download(ctx, remote, local)
		if !opts.Silent {
			io.WriteString(p.Stdout, out)
		}
		if fetchErr != nil {
			// The action still runs; it sees a missing file.
			log.Warn("fetch failed", logging.String("remote", remote), logging.Err(fetchErr))
			fmt.Fprintf(p.Stderr, "%s: %v\n", p.Name, fetchErr)
		}
		return action(ctx, local)
	}

	exists, err := p.resolver.Exists(ctx, remote, false)
	if err != nil {
		return err
	}
	if exists {
		out, fetchErr := p.client.Download(ctx, remote, local)
		if !opts.Silent {
			io.WriteString(p.Stdout, out)
		}
		if fetchErr != nil {
			return fmt.Errorf("fetch %s: %w", remote, fetchErr)
		}
	}

	actionErr := action(ctx, local)

	out, upErr := p.client.Upload(ctx, local, remote)
	if !opts.Silent {
		io.WriteString(p.Stdout, out)
	}
	c := p.resolver.Cache()
	c.Invalidate(remote)
	parent, _ := tree.Split(remote)
	c.Invalidate(parent)

	if upErr != nil {
		upErr = fmt.Errorf("write back %s: %w", remote, upErr)
	}
	return multierr.Combine(actionErr, upErr)
}
