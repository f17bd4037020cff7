package shell

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fruitsalade/remsh/pkg/models"
	"github.com/fruitsalade/remsh/pkg/tree"
)

func (s *Shell) cmdCd(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return s.commands["cd"].usageError()
	}

	target := "/"
	if len(args) == 1 {
		if args[0] == "-" {
			target = s.prevRemoteCwd
		} else {
			target = s.abs(args[0])
		}
	}

	exists, err := s.resolver.Exists(ctx, target, false)
	if err != nil {
		return err
	}
	if !exists {
		return tree.NotFound("cd", target)
	}
	isDir, err := s.resolver.IsDir(ctx, target, false)
	if err != nil {
		return err
	}
	if !isDir {
		return tree.NotDir("cd", target)
	}

	s.prevRemoteCwd, s.remoteCwd = s.remoteCwd, target
	return nil
}

func (s *Shell) cmdPwd(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return s.commands["pwd"].usageError()
	}
	fmt.Fprintln(s.opts.Stdout, s.remoteCwd)
	return nil
}

func (s *Shell) cmdLs(ctx context.Context, args []string) error {
	return s.list(ctx, "ls", args, false)
}

func (s *Shell) cmdLsFresh(ctx context.Context, args []string) error {
	return s.list(ctx, "lsfresh", args, true)
}

func (s *Shell) list(ctx context.Context, name string, args []string, fresh bool) error {
	if len(args) > 1 {
		return s.commands[name].usageError()
	}
	target := s.remoteCwd
	if len(args) == 1 {
		target = s.abs(args[0])
	}

	entry, err := s.resolver.Stat(ctx, target, fresh)
	if errors.Is(err, fs.ErrNotExist) {
		return tree.NotFound(name, target)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(s.opts.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	if !entry.IsDir() {
		writeEntry(w, entry)
		return nil
	}

	var snap *models.Snapshot
	if fresh {
		snap, err = s.cache.ForceRefresh(ctx, target)
	} else {
		snap, err = s.cache.Get(ctx, target)
	}
	if err != nil {
		return err
	}
	for _, e := range snap.Entries() {
		writeEntry(w, e)
	}
	return nil
}

func (s *Shell) cmdRm(ctx context.Context, args []string) error {
	var force bool
	var paths []string
	for _, a := range args {
		switch a {
		case "-rf", "-fr", "-r", "-f", "-R", "-Rf":
			force = true
		default:
			paths = append(paths, a)
		}
	}
	if len(paths) != 1 {
		return s.commands["rm"].usageError()
	}

	target := s.abs(paths[0])
	if tree.IsRoot(target) {
		return &fs.PathError{Op: "rm", Path: target, Err: syscall.EPERM}
	}
	// Recheck against a fresh listing; a stale entry could hide a directory.
	entry, err := s.resolver.Stat(ctx, target, true)
	if errors.Is(err, fs.ErrNotExist) {
		return tree.NotFound("rm", target)
	}
	if err != nil {
		return err
	}
	if entry.IsDir() && !force {
		return tree.IsDirErr("rm", target)
	}

	out, err := s.client.Delete(ctx, target)
	s.invalidate(target)
	s.printOutput(out)
	return err
}

func (s *Shell) cmdMkdir(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return s.commands["mkdir"].usageError()
	}
	target := s.abs(args[0])
	out, err := s.client.Mkdir(ctx, target)
	s.invalidate(target)
	s.printOutput(out)
	return err
}

func (s *Shell) cmdMv(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return s.commands["mv"].usageError()
	}
	src, dst := s.abs(args[0]), s.abs(args[1])
	out, err := s.client.Move(ctx, src, dst)
	// A path argument may itself be a directory whose listing changed.
	s.invalidate(src, dst)
	s.printOutput(out)
	return err
}

func (s *Shell) cmdPut(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return s.commands["put"].usageError()
	}

	local, err := filepath.Abs(args[0])
	if err != nil {
		return &LocalError{Op: "put", Err: err}
	}
	if _, err := os.Stat(local); err != nil {
		return &LocalError{Op: "put", Err: err}
	}

	remote := strings.TrimSuffix(s.remoteCwd, "/") + "/"
	if len(args) == 2 {
		remote = s.abs(args[1])
		if strings.HasSuffix(args[1], "/") && !tree.IsRoot(remote) {
			remote += "/"
		}
	}

	out, err := s.client.Upload(ctx, local, remote)
	s.invalidate(remote)
	s.printOutput(out)
	return err
}

func (s *Shell) cmdGet(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return s.commands["get"].usageError()
	}
	remote := s.abs(args[0])
	local := ""
	if len(args) == 2 {
		abs, err := filepath.Abs(args[1])
		if err != nil {
			return &LocalError{Op: "get", Err: err}
		}
		local = abs
	}
	out, err := s.client.Download(ctx, remote, local)
	s.printOutput(out)
	return err
}
