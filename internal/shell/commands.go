package shell

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fruitsalade/remsh/internal/complete"
)

func (s *Shell) buildCommands() map[string]*Command {
	cmds := []*Command{
		{Name: "cd", Usage: "cd [path|-]", Summary: "Change the remote directory", Args: complete.ArgRemoteDir, Run: s.cmdCd},
		{Name: "ls", Usage: "ls [path]", Summary: "List a remote directory", Run: s.cmdLs},
		{Name: "lsfresh", Usage: "lsfresh [path]", Summary: "List a remote directory, bypassing the cache", Run: s.cmdLsFresh},
		{Name: "pwd", Usage: "pwd", Summary: "Print the remote directory", Args: complete.ArgNone, Run: s.cmdPwd},
		{Name: "rm", Usage: "rm <path> [-rf]", Summary: "Remove a remote file, or a directory with -rf", Run: s.cmdRm},
		{Name: "mkdir", Usage: "mkdir <path>", Summary: "Create a remote directory", Run: s.cmdMkdir},
		{Name: "mv", Usage: "mv <src> <dst>", Summary: "Move or rename a remote path", Run: s.cmdMv},
		{Name: "put", Usage: "put <local> [remote]", Summary: "Upload a local file", Run: s.cmdPut},
		{Name: "get", Usage: "get <remote> [local]", Summary: "Download a remote file", Run: s.cmdGet},

		{Name: "lcd", Usage: "lcd [dir|-]", Summary: "Change the local directory", Args: complete.ArgNone, Run: s.cmdLcd},
		{Name: "lls", Usage: "lls [args...]", Summary: "List the local directory", Args: complete.ArgNone, Run: s.cmdLls},
		{Name: "lpwd", Usage: "lpwd", Summary: "Print the local directory", Args: complete.ArgNone, Run: s.cmdLpwd},
		{Name: "bash", Usage: "bash", Summary: "Start an interactive local shell", Args: complete.ArgNone, Run: s.cmdBash},

		{Name: "vi", Usage: "vi <path>", Summary: "Edit a remote file, creating it if needed", Run: s.cmdVi},
		{Name: "exec", Usage: "exec [--silent] <cmd...> ::: <file>...", Summary: "Run a local command over remote files ({} local copy, {{}} remote path)", Run: s.cmdExec},
		{Name: "grep", Usage: "grep <regex> <file>", Summary: "Search a remote file", Run: s.cmdGrep},
		{Name: "exif", Usage: "exif <file>", Summary: "Show EXIF metadata of a remote image", Run: s.cmdExif},
		{Name: "mime", Usage: "mime <file>", Summary: "Detect the content type of a remote file", Run: s.cmdMime},

		{Name: "cache", Usage: "cache [stats|list|clear]", Summary: "Inspect or clear the directory cache", Args: complete.ArgNone, Run: s.cmdCache},
		{Name: "help", Usage: "help [command]", Summary: "Show help", Args: complete.ArgNone, Run: s.cmdHelp},
		{Name: "exit", Usage: "exit", Summary: "Disabled; press Ctrl-D to leave", Args: complete.ArgNone, Run: s.cmdExit},
	}

	table := make(map[string]*Command, len(cmds)+len(DefaultViewers))
	for _, cmd := range cmds {
		table[cmd.Name] = cmd
	}
	for _, v := range mergeViewers(DefaultViewers, s.opts.Viewers) {
		if _, builtin := table[v.Name]; builtin {
			continue
		}
		table[v.Name] = s.viewerCommand(v)
	}
	return table
}

// ErrExitDisabled is returned by the exit command.
var ErrExitDisabled = errors.New("exit is disabled to avoid accidental exits; press Ctrl-D to leave")

func (s *Shell) cmdExit(ctx context.Context, args []string) error {
	return ErrExitDisabled
}

func (s *Shell) cmdHelp(ctx context.Context, args []string) error {
	cmd := s.commands["help"]
	switch len(args) {
	case 0:
		w := tabwriter.NewWriter(s.opts.Stdout, 0, 0, 2, ' ', 0)
		for _, c := range s.Commands() {
			fmt.Fprintf(w, "  %s\t%s\n", c.Usage, c.Summary)
		}
		return w.Flush()
	case 1:
		c, ok := s.commands[args[0]]
		if !ok {
			return fmt.Errorf("%s: %w", args[0], ErrCommandNotFound)
		}
		fmt.Fprintf(s.opts.Stdout, "usage: %s\n  %s\n", c.Usage, c.Summary)
		return nil
	default:
		return cmd.usageError()
	}
}

func (s *Shell) cmdCache(ctx context.Context, args []string) error {
	sub := "stats"
	if len(args) > 1 {
		return s.commands["cache"].usageError()
	}
	if len(args) == 1 {
		sub = args[0]
	}

	switch sub {
	case "stats":
		st := s.cache.Stats()
		fmt.Fprintln(s.opts.Stdout, "Directory Cache Statistics")
		fmt.Fprintln(s.opts.Stdout, "--------------------------")
		fmt.Fprintf(s.opts.Stdout, "Directories:   %d\n", st.Entries)
		fmt.Fprintf(s.opts.Stdout, "Hits:          %d\n", st.Hits)
		fmt.Fprintf(s.opts.Stdout, "Misses:        %d\n", st.Misses)
		fmt.Fprintf(s.opts.Stdout, "Fetches:       %d\n", st.Fetches)
		fmt.Fprintf(s.opts.Stdout, "Invalidations: %d\n", st.Invalidations)
		if total := st.Hits + st.Misses; total > 0 {
			fmt.Fprintf(s.opts.Stdout, "Hit rate:      %.1f%%\n", float64(st.Hits)/float64(total)*100)
		}
		return nil
	case "list", "ls":
		entries := s.cache.Entries()
		if len(entries) == 0 {
			fmt.Fprintln(s.opts.Stdout, "Cache is empty")
			return nil
		}
		w := tabwriter.NewWriter(s.opts.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DIRECTORY\tENTRIES\tSIZE\tFETCHED")
		fmt.Fprintln(w, "---------\t-------\t----\t-------")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.Path, e.Count, formatSize(e.Size), formatTime(e.FetchedAt))
		}
		return w.Flush()
	case "clear":
		n := s.cache.InvalidateAll()
		fmt.Fprintf(s.opts.Stdout, "Cleared %d directories from cache\n", n)
		return nil
	default:
		return s.commands["cache"].usageError()
	}
}
