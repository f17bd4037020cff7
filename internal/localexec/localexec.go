// Package localexec runs local programs on behalf of the shell.
package localexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"github.com/fruitsalade/remsh/internal/logging"
)

// Command describes one local process.
type Command struct {
	Name string
	Args []string
	Dir  string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner starts a command and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
}

// ExitCode extracts the exit status from err, or -1 when err did not come
// from a process that ran to completion.
func ExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return -1
}

// ExecRunner runs commands with os/exec. While a child is running the shell
// ignores SIGINT; the terminal delivers it to the child.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr

	restore := IgnoreInterrupts()
	defer restore()

	start := time.Now()
	err := c.Run()
	logging.Debug("local command finished",
		logging.String("command", cmd.String()),
		logging.Duration("duration", time.Since(start)),
		logging.Err(err),
	)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: cmd.Name, Code: exitErr.ExitCode()}
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", cmd.Name, err)
	}
	return nil
}

// IgnoreInterrupts stops SIGINT from terminating the shell until the
// returned func is called.
func IgnoreInterrupts() (restore func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return func() { signal.Stop(ch) }
}
