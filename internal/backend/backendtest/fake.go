// Package backendtest provides an in-memory Backend for tests.
package backendtest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fruitsalade/remsh/internal/backend"
	"github.com/fruitsalade/remsh/pkg/listing"
	"github.com/fruitsalade/remsh/pkg/models"
)

// Call is one recorded backend invocation.
type Call struct {
	Verb backend.Verb
	Args []string
}

// Fake is a Backend over an in-memory tree. Every call is recorded.
type Fake struct {
	Dirs  map[string]bool
	Files map[string][]byte

	// Raw, when it has an entry for a directory, is returned verbatim by list.
	Raw map[string]string
	// Fail makes every call of a verb return the given error.
	Fail map[backend.Verb]error

	Calls []Call
}

// New returns a fake holding only the root directory.
func New() *Fake {
	return &Fake{
		Dirs:  map[string]bool{"/": true},
		Files: make(map[string][]byte),
		Raw:   make(map[string]string),
		Fail:  make(map[backend.Verb]error),
	}
}

// AddDir creates p and its parents.
func (f *Fake) AddDir(p string) *Fake {
	p = path.Clean(p)
	for p != "/" {
		f.Dirs[p] = true
		p = path.Dir(p)
	}
	return f
}

// AddFile creates p with content, creating parents.
func (f *Fake) AddFile(p string, content string) *Fake {
	p = path.Clean(p)
	f.AddDir(path.Dir(p))
	f.Files[p] = []byte(content)
	return f
}

// Count returns how many times verb was called.
func (f *Fake) Count(verb backend.Verb) int {
	return len(f.CallsFor(verb))
}

// CallsFor returns the recorded calls of verb.
func (f *Fake) CallsFor(verb backend.Verb) []Call {
	var out []Call
	for _, c := range f.Calls {
		if c.Verb == verb {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets the recorded calls.
func (f *Fake) Reset() {
	f.Calls = nil
}

func fail(verb backend.Verb, args []string, format string, a ...any) error {
	return &backend.CommandError{
		Verb:     verb,
		Args:     args,
		ExitCode: 1,
		Output:   fmt.Sprintf(format, a...),
	}
}

// Run implements backend.Backend.
func (f *Fake) Run(ctx context.Context, verb backend.Verb, args ...string) (string, error) {
	f.Calls = append(f.Calls, Call{Verb: verb, Args: append([]string(nil), args...)})
	if err := f.Fail[verb]; err != nil {
		return "", err
	}

	switch verb {
	case backend.VerbList:
		return f.list(args)
	case backend.VerbDownload:
		return f.download(args)
	case backend.VerbUpload:
		return f.upload(args)
	case backend.VerbMove:
		return f.move(args)
	case backend.VerbDelete:
		return f.delete(args)
	case backend.VerbMkdir:
		if len(args) != 1 {
			return "", fail(verb, args, "usage: mkdir <path>")
		}
		f.AddDir(args[0])
		return "", nil
	}
	return "", fail(verb, args, "unknown verb %q", verb)
}

func (f *Fake) list(args []string) (string, error) {
	if len(args) != 1 {
		return "", fail(backend.VerbList, args, "usage: list <path>")
	}
	dir := path.Clean(args[0])
	if raw, ok := f.Raw[dir]; ok {
		return raw, nil
	}
	if !f.Dirs[dir] {
		return "", fail(backend.VerbList, args, "%s: no such directory", dir)
	}

	var dirs []string
	files := make(map[string]int64)
	for d := range f.Dirs {
		if d != "/" && path.Dir(d) == dir {
			dirs = append(dirs, path.Base(d))
		}
	}
	for p, content := range f.Files {
		if path.Dir(p) == dir {
			files[path.Base(p)] = int64(len(content))
		}
	}
	snap, err := models.NewSnapshot(dir, dirs, files)
	if err != nil {
		return "", err
	}
	return listing.Format(snap), nil
}

func (f *Fake) download(args []string) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", fail(backend.VerbDownload, args, "usage: download <remote> [local]")
	}
	remote := path.Clean(args[0])
	content, ok := f.Files[remote]
	if !ok {
		return "", fail(backend.VerbDownload, args, "%s: no such file", remote)
	}

	local := path.Base(remote)
	if len(args) == 2 {
		local = args[1]
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			local = filepath.Join(local, path.Base(remote))
		}
	}
	if err := os.WriteFile(local, content, 0o644); err != nil {
		return "", fail(backend.VerbDownload, args, "%v", err)
	}
	return fmt.Sprintf("downloaded %s\n", remote), nil
}

func (f *Fake) upload(args []string) (string, error) {
	if len(args) != 2 {
		return "", fail(backend.VerbUpload, args, "usage: upload <local> <remote>")
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return "", fail(backend.VerbUpload, args, "%v", err)
	}
	remote := args[1]
	if strings.HasSuffix(remote, "/") {
		remote += filepath.Base(args[0])
	}
	f.AddFile(remote, string(content))
	return "", nil
}

func (f *Fake) move(args []string) (string, error) {
	if len(args) != 2 {
		return "", fail(backend.VerbMove, args, "usage: move <src> <dst>")
	}
	src, dst := path.Clean(args[0]), path.Clean(args[1])
	if f.Dirs[dst] {
		dst = path.Join(dst, path.Base(src))
	}

	if content, ok := f.Files[src]; ok {
		delete(f.Files, src)
		f.AddFile(dst, string(content))
		return "", nil
	}
	if !f.Dirs[src] {
		return "", fail(backend.VerbMove, args, "%s: no such file or directory", src)
	}
	var dirs, files []string
	for d := range f.Dirs {
		if d == src || strings.HasPrefix(d, src+"/") {
			dirs = append(dirs, d)
		}
	}
	for p := range f.Files {
		if strings.HasPrefix(p, src+"/") {
			files = append(files, p)
		}
	}
	for _, d := range dirs {
		delete(f.Dirs, d)
	}
	for _, d := range dirs {
		f.AddDir(dst + strings.TrimPrefix(d, src))
	}
	for _, p := range files {
		content := f.Files[p]
		delete(f.Files, p)
		f.Files[dst+strings.TrimPrefix(p, src)] = content
	}
	return "", nil
}

func (f *Fake) delete(args []string) (string, error) {
	if len(args) != 1 {
		return "", fail(backend.VerbDelete, args, "usage: delete <path>")
	}
	p := path.Clean(args[0])
	if _, ok := f.Files[p]; ok {
		delete(f.Files, p)
		return "", nil
	}
	if !f.Dirs[p] || p == "/" {
		return "", fail(backend.VerbDelete, args, "%s: no such file or directory", p)
	}
	for d := range f.Dirs {
		if d == p || strings.HasPrefix(d, p+"/") {
			delete(f.Dirs, d)
		}
	}
	for q := range f.Files {
		if strings.HasPrefix(q, p+"/") {
			delete(f.Files, q)
		}
	}
	return "", nil
}
