// Package complete computes tab-completion candidates for the shell.
//
// Complete is a function of the directory cache, the remote working directory
// and the input buffer. It keeps no state of its own between calls; the only
// side effect is the cache fill caused by fetching a listing on a miss.
package complete

import (
	"context"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/fruitsalade/remsh/pkg/models"
	"github.com/fruitsalade/remsh/pkg/tree"
)

// ArgKind says how a command's arguments are completed.
type ArgKind int

const (
	// ArgRemote completes remote directories and files.
	ArgRemote ArgKind = iota
	// ArgRemoteDir completes remote directories only.
	ArgRemoteDir
	// ArgNone disables argument completion.
	ArgNone
)

// Ellipsis is appended to the duplicate of a lone directory candidate so the
// line editor keeps the completion open for further navigation.
const Ellipsis = "..."

// Lister returns a directory snapshot, fetching it on a cache miss.
type Lister interface {
	Get(ctx context.Context, dir string) (*models.Snapshot, error)
}

// State is the session state a completion reads.
type State struct {
	Lister Lister
	Cwd    string
}

// Engine holds the command table used for completion.
type Engine struct {
	names []string
	kinds map[string]ArgKind
}

// NewEngine builds an engine for the given commands. Commands missing from
// the map are completed as ArgRemote.
func NewEngine(kinds map[string]ArgKind) *Engine {
	e := &Engine{kinds: make(map[string]ArgKind, len(kinds))}
	for name, kind := range kinds {
		e.names = append(e.names, name)
		e.kinds[name] = kind
	}
	sort.Strings(e.names)
	return e
}

// Commands returns the command names in sorted order.
func (e *Engine) Commands() []string {
	return append([]string(nil), e.names...)
}

// Complete returns the candidates for buffer. Each candidate replaces the
// last token of the buffer in full. Errors yield no candidates.
func (e *Engine) Complete(ctx context.Context, st State, buffer string) []string {
	tokens, trailing := Tokenize(buffer)

	if len(tokens) == 0 || (len(tokens) == 1 && !trailing) {
		prefix := ""
		if len(tokens) == 1 {
			prefix = tokens[0]
		}
		return e.completeCommand(prefix)
	}

	kind := e.kinds[tokens[0]]
	if kind == ArgNone || st.Lister == nil {
		return nil
	}
	last := ""
	if !trailing {
		last = tokens[len(tokens)-1]
	}
	return completePath(ctx, st, last, kind == ArgRemoteDir)
}

func (e *Engine) completeCommand(prefix string) []string {
	var out []string
	for _, name := range e.names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

func completePath(ctx context.Context, st State, token string, dirsOnly bool) []string {
	dirPart, prefix := "", token
	if i := strings.LastIndex(token, "/"); i >= 0 {
		dirPart, prefix = token[:i+1], token[i+1:]
	}

	snap, err := st.Lister.Get(ctx, tree.Absolute(dirPart, st.Cwd))
	if err != nil {
		return nil
	}

	var out []string
	for _, name := range snap.DirNames() {
		if strings.HasPrefix(name, prefix) {
			out = append(out, dirPart+name+"/")
		}
	}
	if len(out) == 1 && (dirsOnly || !hasFileWithPrefix(snap, prefix)) {
		return []string{out[0], out[0] + Ellipsis}
	}
	if dirsOnly {
		return out
	}
	for _, name := range snap.FileNames() {
		if strings.HasPrefix(name, prefix) {
			out = append(out, dirPart+name)
		}
	}
	return out
}

func hasFileWithPrefix(snap *models.Snapshot, prefix string) bool {
	for _, name := range snap.FileNames() {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Tokenize splits buffer into shell words. An unterminated quote or a
// dangling backslash is tolerated. trailing reports whether the buffer ends
// with an unquoted separator, i.e. a new, empty word has been started.
func Tokenize(buffer string) (tokens []string, trailing bool) {
	if words, err := shellquote.Split(buffer); err == nil {
		return words, endsWithSeparator(buffer)
	}
	base := buffer
	if trailingBackslashes(buffer)%2 == 1 {
		base = buffer[:len(buffer)-1]
	}
	for _, closer := range []string{"", `"`, `'`} {
		if words, err := shellquote.Split(base + closer); err == nil {
			return words, false
		}
	}
	return nil, false
}

func endsWithSeparator(buffer string) bool {
	n := len(buffer)
	if n == 0 {
		return false
	}
	switch buffer[n-1] {
	case ' ', '\t', '\n':
	default:
		return false
	}
	// An escaped blank belongs to the word before it.
	return trailingBackslashes(buffer[:n-1])%2 == 0
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}
