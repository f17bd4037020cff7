package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/fruitsalade/remsh/internal/localexec"
)

const (
	// LocalPlaceholder stands for the local scratch copy.
	LocalPlaceholder = "{}"
	// RemotePlaceholder stands for the original remote path.
	RemotePlaceholder = "{{}}"
)

// Substitute fills the placeholders of template. A token that is exactly a
// placeholder becomes the raw path; a placeholder embedded in a longer token
// is replaced by the shell-escaped path, so `sh -c 'wc {}'` stays intact.
// When no placeholder appears the local path is appended.
func Substitute(template []string, local, remote string) []string {
	escaped := strings.NewReplacer(
		RemotePlaceholder, shellquote.Join(remote),
		LocalPlaceholder, shellquote.Join(local),
	)

	out := make([]string, 0, len(template)+1)
	found := false
	for _, tok := range template {
		switch {
		case tok == RemotePlaceholder:
			out = append(out, remote)
			found = true
		case tok == LocalPlaceholder:
			out = append(out, local)
			found = true
		case strings.Contains(tok, LocalPlaceholder):
			// Also covers RemotePlaceholder, which contains LocalPlaceholder.
			out = append(out, escaped.Replace(tok))
			found = true
		default:
			out = append(out, tok)
		}
	}
	if !found {
		out = append(out, local)
	}
	return out
}

// CommandAction returns an Action running template through runner. proto
// supplies the working directory and standard streams.
func CommandAction(runner localexec.Runner, proto localexec.Command, template []string, remote string) Action {
	return func(ctx context.Context, local string) error {
		if len(template) == 0 {
			return errors.New("empty command")
		}
		argv := Substitute(template, local, remote)
		cmd := proto
		cmd.Name = argv[0]
		cmd.Args = argv[1:]
		return runner.Run(ctx, cmd)
	}
}
