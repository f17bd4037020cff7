// Package shell implements the interactive remsh session: remote and local
// working directories, the command table, and the read-dispatch loop.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"

	"github.com/fruitsalade/remsh/internal/backend"
	"github.com/fruitsalade/remsh/internal/complete"
	"github.com/fruitsalade/remsh/internal/localexec"
	"github.com/fruitsalade/remsh/internal/logging"
	"github.com/fruitsalade/remsh/internal/metrics"
	"github.com/fruitsalade/remsh/internal/pipeline"
	"github.com/fruitsalade/remsh/pkg/cache"
	"github.com/fruitsalade/remsh/pkg/tree"
)

// ErrCommandNotFound is returned for a line naming no registered command.
var ErrCommandNotFound = errors.New("command not found")

// UsageError reports a command called with the wrong arguments. The command
// has had no side effects.
type UsageError struct {
	Command string
	Usage   string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Usage
}

// LocalError wraps a failure of a local filesystem operation.
type LocalError struct {
	Op  string
	Err error
}

func (e *LocalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *LocalError) Unwrap() error {
	return e.Err
}

// Command is one entry of the command table.
type Command struct {
	Name    string
	Usage   string
	Summary string
	Args    complete.ArgKind
	Run     func(ctx context.Context, args []string) error
}

func (c *Command) usageError() error {
	return &UsageError{Command: c.Name, Usage: c.Usage}
}

// Options configures a Shell.
type Options struct {
	Name          string
	Editor        string
	Shell         string
	ScratchDir    string
	CommentPrefix string
	Viewers       []Viewer

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (o *Options) setDefaults() {
	if o.Name == "" {
		o.Name = "remsh"
	}
	if o.Editor == "" {
		o.Editor = os.Getenv("EDITOR")
	}
	if o.Editor == "" {
		o.Editor = "vi"
	}
	if o.Shell == "" {
		o.Shell = os.Getenv("SHELL")
	}
	if o.Shell == "" {
		o.Shell = "bash"
	}
	if o.CommentPrefix == "" {
		o.CommentPrefix = "#"
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// Shell is one interactive session. It is driven from a single goroutine.
type Shell struct {
	id   string
	opts Options

	client   *backend.Client
	cache    *cache.Cache
	resolver *tree.Resolver
	pipeline *pipeline.Pipeline
	runner   localexec.Runner
	engine   *complete.Engine

	commands map[string]*Command

	remoteCwd     string
	prevRemoteCwd string
	prevLocalCwd  string
}

// New creates a session at the remote root.
func New(b backend.Backend, runner localexec.Runner, opts Options) *Shell {
	opts.setDefaults()

	client := backend.NewClient(b)
	c := cache.New(client)
	resolver := tree.NewResolver(c)
	p := pipeline.New(client, resolver, opts.ScratchDir)
	p.Name = opts.Name
	p.Stdout = opts.Stdout
	p.Stderr = opts.Stderr

	s := &Shell{
		id:            uuid.New().String(),
		opts:          opts,
		client:        client,
		cache:         c,
		resolver:      resolver,
		pipeline:      p,
		runner:        runner,
		remoteCwd:     "/",
		prevRemoteCwd: "/",
	}
	s.commands = s.buildCommands()

	kinds := make(map[string]complete.ArgKind, len(s.commands))
	for name, cmd := range s.commands {
		kinds[name] = cmd.Args
	}
	s.engine = complete.NewEngine(kinds)
	return s
}

// ID returns the session identifier used in logs.
func (s *Shell) ID() string { return s.id }

// RemoteCwd returns the remote working directory.
func (s *Shell) RemoteCwd() string { return s.remoteCwd }

// Cache returns the session's directory cache.
func (s *Shell) Cache() *cache.Cache { return s.cache }

// Engine returns the completion engine.
func (s *Shell) Engine() *complete.Engine { return s.engine }

// CompletionState snapshots what a completion request may read.
func (s *Shell) CompletionState() complete.State {
	return complete.State{Lister: s.cache, Cwd: s.remoteCwd}
}

// Commands returns the registered commands sorted by name.
func (s *Shell) Commands() []*Command {
	out := make([]*Command, 0, len(s.commands))
	for _, cmd := range s.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the command called name.
func (s *Shell) Lookup(name string) (*Command, bool) {
	cmd, ok := s.commands[name]
	return cmd, ok
}

// Execute runs one input line. Empty lines and comments do nothing.
func (s *Shell) Execute(ctx context.Context, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if strings.HasPrefix(strings.TrimSpace(line), s.opts.CommentPrefix) {
		return nil
	}
	words, err := shellquote.Split(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(words) == 0 {
		return nil
	}

	name, args := words[0], words[1:]
	cmd, ok := s.commands[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrCommandNotFound)
	}

	log := logging.WithContext(ctx)
	start := time.Now()
	err = cmd.Run(ctx, args)
	duration := time.Since(start)
	metrics.RecordCommand(name, duration, err == nil)
	log.Debug("command finished",
		logging.String("command", name),
		logging.Strings("args", args),
		logging.String("cwd", s.remoteCwd),
		logging.Duration("duration", duration),
		logging.Err(err),
	)
	return err
}

// report prints err the way every handler failure is shown.
func (s *Shell) report(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(s.opts.Stderr, "%s: %v\n", s.opts.Name, err)
}

func (s *Shell) abs(p string) string {
	return tree.Absolute(p, s.remoteCwd)
}

// invalidate drops the listings of every path and of each path's parent.
func (s *Shell) invalidate(paths ...string) {
	for _, p := range paths {
		s.cache.Invalidate(p)
		parent, _ := tree.Split(tree.Absolute(p, "/"))
		s.cache.Invalidate(parent)
	}
}

func (s *Shell) printOutput(out string) {
	if out == "" {
		return
	}
	io.WriteString(s.opts.Stdout, out)
	if !strings.HasSuffix(out, "\n") {
		io.WriteString(s.opts.Stdout, "\n")
	}
}

// interactive returns a command prototype bound to the session's streams.
func (s *Shell) interactive() localexec.Command {
	return localexec.Command{
		Stdin:  s.opts.Stdin,
		Stdout: s.opts.Stdout,
		Stderr: s.opts.Stderr,
	}
}
