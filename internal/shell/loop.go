package shell

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/fruitsalade/remsh/internal/complete"
	"github.com/fruitsalade/remsh/internal/logging"
)

// LineReader supplies input lines. ReadLine returns io.EOF at end of input.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

var (
	localStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	remoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
)

// Prompt renders both working directories.
func (s *Shell) Prompt() string {
	local, err := os.Getwd()
	if err != nil {
		local = "?"
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if local == home {
			local = "~"
		} else if strings.HasPrefix(local, home+string(filepath.Separator)) {
			local = "~" + strings.TrimPrefix(local, home)
		}
	}
	return localStyle.Render(local) + " " + remoteStyle.Render(s.opts.Name+":"+s.remoteCwd) + "> "
}

// Run reads and executes lines until end of input. Command failures are
// printed and never end the loop.
func (s *Shell) Run(ctx context.Context, r LineReader) error {
	ctx = logging.WithSession(ctx, s.id)
	log := logging.WithContext(ctx)
	log.Info("session started")
	defer log.Info("session ended")

	for {
		line, err := r.ReadLine(s.Prompt())
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		s.report(s.Execute(ctx, line))
	}
}

// readlineReader is the interactive LineReader.
type readlineReader struct {
	rl *readline.Instance
}

// NewReadline returns a line editor with history and tab completion.
func (s *Shell) NewReadline(ctx context.Context, historyFile string) (LineReader, error) {
	ensureHistoryDir(ctx, historyFile)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: historyFile,
		AutoComplete: &complete.ReadlineAdapter{
			Engine: s.engine,
			State:  s.CompletionState,
			Ctx:    ctx,
		},
		InterruptPrompt:   "^C",
		HistorySearchFold: true,
		Stdout:            s.opts.Stdout,
		Stderr:            s.opts.Stderr,
	})
	if err != nil {
		return nil, err
	}
	return &readlineReader{rl: rl}, nil
}

// ensureHistoryDir creates the directory of historyFile. Failing only costs
// history, so it is logged and the session goes on.
func ensureHistoryDir(ctx context.Context, historyFile string) {
	if historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(historyFile), 0o700); err != nil {
		logging.WithContext(ctx).Warn("history directory unavailable",
			logging.String("path", historyFile),
			logging.Err(err),
		)
	}
}

func (r *readlineReader) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", nil
	}
	return line, err
}

func (r *readlineReader) Close() error {
	return r.rl.Close()
}

// plainReader reads lines without a prompt, for scripts and pipes.
type plainReader struct {
	sc *bufio.Scanner
}

// NewPlainReader returns a LineReader that never prints a prompt.
func NewPlainReader(in io.Reader) LineReader {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &plainReader{sc: sc}
}

func (r *plainReader) ReadLine(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *plainReader) Close() error { return nil }

// NewLineReader picks the line editor when stdin is a terminal and the plain
// reader otherwise.
func (s *Shell) NewLineReader(ctx context.Context, historyFile string) (LineReader, error) {
	if f, ok := s.opts.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return s.NewReadline(ctx, historyFile)
	}
	return NewPlainReader(s.opts.Stdin), nil
}
