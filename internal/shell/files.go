package shell

import (
	"context"
	"fmt"

	"github.com/kballard/go-shellquote"
	"go.uber.org/multierr"

	"github.com/fruitsalade/remsh/internal/inspect"
	"github.com/fruitsalade/remsh/internal/localexec"
	"github.com/fruitsalade/remsh/internal/pipeline"
	"github.com/fruitsalade/remsh/pkg/tree"
)

// execSeparator splits an exec command from its remote files.
const execSeparator = ":::"

// requireFile refuses a target the cache knows to be a directory. A failed
// lookup is left to the fetch, which reports it and still runs the tool.
func (s *Shell) requireFile(ctx context.Context, op, target string) error {
	isDir, err := s.resolver.IsDir(ctx, target, false)
	if err == nil && isDir {
		return tree.IsDirErr(op, target)
	}
	return nil
}

func (s *Shell) cmdVi(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return s.commands["vi"].usageError()
	}
	target := s.abs(args[0])

	isDir, err := s.resolver.IsDir(ctx, target, true)
	if err != nil {
		return err
	}
	if isDir {
		return tree.IsDirErr("vi", target)
	}

	editor, err := shellquote.Split(s.opts.Editor)
	if err != nil || len(editor) == 0 {
		return fmt.Errorf("invalid editor %q", s.opts.Editor)
	}
	action := pipeline.CommandAction(s.runner, s.interactive(), editor, target)
	return s.pipeline.Run(ctx, target, action, pipeline.Options{WriteBack: true})
}

func (s *Shell) cmdExec(ctx context.Context, args []string) error {
	silent := false
	if len(args) > 0 && args[0] == "--silent" {
		silent = true
		args = args[1:]
	}

	sep := -1
	for i, a := range args {
		if a == execSeparator {
			sep = i
			break
		}
	}
	if sep <= 0 || sep == len(args)-1 {
		return s.commands["exec"].usageError()
	}
	template, files := args[:sep], args[sep+1:]

	var errs error
	for _, f := range files {
		target := s.abs(f)
		if err := s.requireFile(ctx, "exec", target); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		action := pipeline.CommandAction(s.runner, s.interactive(), template, target)
		if err := s.pipeline.Run(ctx, target, action, pipeline.Options{Silent: silent}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", target, err))
		}
	}
	return errs
}

func (s *Shell) cmdGrep(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return s.commands["grep"].usageError()
	}
	pattern, target := args[0], s.abs(args[1])
	if err := s.requireFile(ctx, "grep", target); err != nil {
		return err
	}

	action := func(ctx context.Context, local string) error {
		cmd := s.interactive()
		cmd.Name = "grep"
		cmd.Args = []string{"-n", "-e", pattern, "--", local}
		// Exit status 1 only means no line matched.
		if err := s.runner.Run(ctx, cmd); localexec.ExitCode(err) != 1 {
			return err
		}
		return nil
	}
	return s.pipeline.Run(ctx, target, action, pipeline.Options{Silent: true})
}

func (s *Shell) cmdExif(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return s.commands["exif"].usageError()
	}
	target := s.abs(args[0])
	if err := s.requireFile(ctx, "exif", target); err != nil {
		return err
	}
	return s.pipeline.Run(ctx, target, func(ctx context.Context, local string) error {
		return inspect.WriteEXIF(s.opts.Stdout, local)
	}, pipeline.Options{Silent: true})
}

func (s *Shell) cmdMime(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return s.commands["mime"].usageError()
	}
	target := s.abs(args[0])
	if err := s.requireFile(ctx, "mime", target); err != nil {
		return err
	}
	return s.pipeline.Run(ctx, target, func(ctx context.Context, local string) error {
		info, err := inspect.DetectMIME(local)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.opts.Stdout, "%s: %s\n", target, info)
		return nil
	}, pipeline.Options{Silent: true})
}
