package shell

import (
	"context"
	"sort"

	"github.com/fruitsalade/remsh/internal/complete"
	"github.com/fruitsalade/remsh/internal/pipeline"
)

// Viewer is a command that fetches one remote file and runs a fixed local
// program over it.
type Viewer struct {
	Name    string   `yaml:"name"`
	Command []string `yaml:"command"`
	// Silent hides the backend's download output.
	Silent bool `yaml:"silent"`
}

// DefaultViewers is the built-in viewer table.
var DefaultViewers = []Viewer{
	{Name: "cat", Command: []string{"cat"}, Silent: true},
	{Name: "less", Command: []string{"less"}},
	{Name: "more", Command: []string{"more"}},
	{Name: "head", Command: []string{"head"}, Silent: true},
	{Name: "tail", Command: []string{"tail"}, Silent: true},
	{Name: "wc", Command: []string{"wc"}, Silent: true},
	{Name: "file", Command: []string{"file", "-b"}, Silent: true},
	{Name: "md5sum", Command: []string{"md5sum"}, Silent: true},
	{Name: "sha1sum", Command: []string{"sha1sum"}, Silent: true},
	{Name: "sha256sum", Command: []string{"sha256sum"}, Silent: true},
	{Name: "hexdump", Command: []string{"hexdump", "-C"}, Silent: true},
	{Name: "exiftool", Command: []string{"exiftool"}},
	{Name: "mediainfo", Command: []string{"mediainfo"}},
	{Name: "feh", Command: []string{"feh"}},
	{Name: "xdg-open", Command: []string{"xdg-open"}},
}

// mergeViewers overlays extra on base; an entry of extra replaces the base
// entry with the same name. Entries without a command are dropped.
func mergeViewers(base, extra []Viewer) []Viewer {
	byName := make(map[string]Viewer, len(base)+len(extra))
	for _, v := range base {
		byName[v.Name] = v
	}
	for _, v := range extra {
		byName[v.Name] = v
	}

	out := make([]Viewer, 0, len(byName))
	for _, v := range byName {
		if v.Name == "" || len(v.Command) == 0 {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Shell) viewerCommand(v Viewer) *Command {
	cmd := &Command{
		Name:    v.Name,
		Usage:   v.Name + " <file>",
		Summary: "Fetch a remote file and run " + v.Command[0] + " on it",
		Args:    complete.ArgRemote,
	}
	template := append([]string(nil), v.Command...)
	cmd.Run = func(ctx context.Context, args []string) error {
		if len(args) != 1 {
			return cmd.usageError()
		}
		target := s.abs(args[0])
		if err := s.requireFile(ctx, v.Name, target); err != nil {
			return err
		}
		action := pipeline.CommandAction(s.runner, s.interactive(), template, target)
		err := s.pipeline.Run(ctx, target, action, pipeline.Options{Silent: v.Silent})
		return s.ignoreExitStatus(err)
	}
	return cmd
}
