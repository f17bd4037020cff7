package shell

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fruitsalade/remsh/internal/localexec"
)

// errNoPrevLocal is returned by "lcd -" before any successful lcd.
var errNoPrevLocal = errors.New("no previous local directory")

func (s *Shell) cmdLcd(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return s.commands["lcd"].usageError()
	}

	var target string
	switch {
	case len(args) == 0:
		home, err := os.UserHomeDir()
		if err != nil {
			return &LocalError{Op: "lcd", Err: err}
		}
		target = home
	case args[0] == "-":
		if s.prevLocalCwd == "" {
			return &LocalError{Op: "lcd", Err: errNoPrevLocal}
		}
		target = s.prevLocalCwd
	default:
		target = args[0]
	}

	cur, err := os.Getwd()
	if err != nil {
		return &LocalError{Op: "lcd", Err: err}
	}
	if err := os.Chdir(target); err != nil {
		return &LocalError{Op: "lcd", Err: err}
	}
	s.prevLocalCwd = cur
	return nil
}

func (s *Shell) cmdLpwd(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return s.commands["lpwd"].usageError()
	}
	wd, err := os.Getwd()
	if err != nil {
		return &LocalError{Op: "lpwd", Err: err}
	}
	fmt.Fprintln(s.opts.Stdout, wd)
	return nil
}

func (s *Shell) cmdLls(ctx context.Context, args []string) error {
	cmd := s.interactive()
	cmd.Name = "ls"
	cmd.Args = args
	return s.runner.Run(ctx, cmd)
}

func (s *Shell) cmdBash(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return s.commands["bash"].usageError()
	}
	cmd := s.interactive()
	cmd.Name = s.opts.Shell
	return s.ignoreExitStatus(s.runner.Run(ctx, cmd))
}

// ignoreExitStatus drops the exit status of an interactive program; the user
// has already seen whatever made it fail.
func (s *Shell) ignoreExitStatus(err error) error {
	var ee *localexec.ExitError
	if errors.As(err, &ee) {
		return nil
	}
	return err
}
