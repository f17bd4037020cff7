// Package backend invokes the remote store's command line client.
//
// The shell never talks to the store itself. Every remote operation is one
// synchronous invocation of the form
//
//	<bin> <configured args...> <verb> <paths...>
//
// whose captured output is handed back to the caller.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fruitsalade/remsh/internal/localexec"
	"github.com/fruitsalade/remsh/internal/logging"
	"github.com/fruitsalade/remsh/internal/metrics"
	"github.com/fruitsalade/remsh/pkg/retry"
)

// Verb is a backend subcommand.
type Verb string

const (
	VerbList     Verb = "list"
	VerbDownload Verb = "download"
	VerbUpload   Verb = "upload"
	VerbMove     Verb = "move"
	VerbDelete   Verb = "delete"
	VerbMkdir    Verb = "mkdir"
)

// Idempotent reports whether repeating the verb is harmless.
func (v Verb) Idempotent() bool {
	return v == VerbList || v == VerbDownload
}

// Backend runs one verb and returns its captured standard output.
type Backend interface {
	Run(ctx context.Context, verb Verb, args ...string) (string, error)
}

// CommandError is returned when the backend exits non-zero.
type CommandError struct {
	Verb     Verb
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	if out := strings.TrimSpace(e.Output); out != "" {
		return out
	}
	if e.ExitCode >= 0 {
		return fmt.Sprintf("backend %s failed with exit status %d", e.Verb, e.ExitCode)
	}
	return fmt.Sprintf("backend %s failed: %v", e.Verb, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CLI is the subprocess implementation of Backend.
type CLI struct {
	Bin    string
	Args   []string
	Runner localexec.Runner
	Retry  retry.Config
}

// NewCLI returns a CLI running bin through runner. Only idempotent verbs are
// retried, and only when retries is positive.
func NewCLI(bin string, args []string, retries int, runner localexec.Runner) *CLI {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = retries + 1
	return &CLI{Bin: bin, Args: args, Runner: runner, Retry: cfg}
}

// Run implements Backend.
func (c *CLI) Run(ctx context.Context, verb Verb, args ...string) (string, error) {
	if !verb.Idempotent() {
		return c.run(ctx, verb, args)
	}

	cfg := c.Retry
	cfg.OnRetry = func(attempt int, err error) {
		metrics.RecordBackendRetry(string(verb))
		logging.Warn("retrying backend call",
			logging.String("verb", string(verb)),
			logging.Int("attempt", attempt),
			logging.Err(err),
		)
	}
	return retry.DoWithResult(ctx, cfg, func() (string, error) {
		out, err := c.run(ctx, verb, args)
		var ce *CommandError
		if errors.As(err, &ce) && ce.ExitCode >= 0 {
			return out, retry.Retryable(err)
		}
		return out, err
	})
}

func (c *CLI) run(ctx context.Context, verb Verb, args []string) (string, error) {
	argv := make([]string, 0, len(c.Args)+1+len(args))
	argv = append(argv, c.Args...)
	argv = append(argv, string(verb))
	argv = append(argv, args...)

	var stdout, stderr bytes.Buffer
	cmd := localexec.Command{Name: c.Bin, Args: argv, Stdout: &stdout, Stderr: &stderr}

	start := time.Now()
	err := c.Runner.Run(ctx, cmd)
	duration := time.Since(start)
	metrics.RecordBackendCall(string(verb), duration, err == nil)

	logging.Debug("backend call",
		logging.String("verb", string(verb)),
		logging.Strings("args", args),
		logging.Duration("duration", duration),
		logging.Err(err),
	)

	if err != nil {
		output := stderr.String()
		if strings.TrimSpace(output) == "" {
			output = stdout.String()
		}
		return stdout.String(), &CommandError{
			Verb:     verb,
			Args:     args,
			ExitCode: localexec.ExitCode(err),
			Output:   output,
			Err:      err,
		}
	}
	return stdout.String(), nil
}
