// Package listing parses and renders the backend's directory listing format.
//
// A listing is a header line followed by one line per entry:
//
//	> Listing "/photos"... DONE
//	[D]          - 2023
//	[F]       1024 cover image.jpg
//
// The size column of a directory line is ignored.
package listing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fruitsalade/remsh/internal/logging"
	"github.com/fruitsalade/remsh/pkg/models"
)

const (
	headerPrefix = "> Listing "
	headerSuffix = "... DONE"
)

// ErrMalformed is matched by every error Parse returns.
var ErrMalformed = errors.New("malformed backend output")

var entryLine = regexp.MustCompile(`^\s*\[([DF])\]\s+(\S+) +(.+)$`)

// MalformedError reports which line of a listing broke the format.
type MalformedError struct {
	Line   int // 1-based; 0 when the input is empty
	Text   string
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%v: %s", ErrMalformed, e.Reason)
	}
	return fmt.Sprintf("%v: line %d: %s: %q", ErrMalformed, e.Line, e.Reason, e.Text)
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

// Parse turns one raw "list" response into a snapshot. The snapshot's Path is
// the directory named in the header.
func Parse(raw string) (*models.Snapshot, error) {
	if raw == "" {
		return nil, &MalformedError{Reason: "empty listing"}
	}

	lines := strings.Split(strings.TrimSuffix(raw, "\n"), "\n")
	// Indented headers are accepted like indented entry lines.
	header := strings.TrimLeft(strings.TrimSuffix(lines[0], "\r"), " \t")
	dir, ok := parseHeader(header)
	if !ok {
		return nil, &MalformedError{Line: 1, Text: header, Reason: "missing listing header"}
	}

	var dirs []string
	files := make(map[string]int64)
	for i, line := range lines[1:] {
		line = strings.TrimSuffix(line, "\r")
		m := entryLine.FindStringSubmatch(line)
		if m == nil {
			return nil, &MalformedError{Line: i + 2, Text: line, Reason: "expected [D|F] <size> <name>"}
		}
		tag, size, name := m[1], m[2], m[3]

		if tag == "D" {
			if _, dup := files[name]; dup {
				return nil, &MalformedError{Line: i + 2, Text: line, Reason: "name listed as file and directory"}
			}
			dirs = append(dirs, name)
			continue
		}

		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil || n < 0 {
			return nil, &MalformedError{Line: i + 2, Text: line, Reason: "file size is not a number"}
		}
		files[name] = n
	}

	snap, err := models.NewSnapshot(dir, dirs, files)
	if err != nil {
		return nil, &MalformedError{Line: len(lines), Reason: err.Error()}
	}
	return snap, nil
}

func parseHeader(line string) (string, bool) {
	if !strings.HasPrefix(line, headerPrefix) || !strings.HasSuffix(line, headerSuffix) {
		return "", false
	}
	if len(line) < len(headerPrefix)+len(headerSuffix) {
		return "", false
	}
	dir := line[len(headerPrefix) : len(line)-len(headerSuffix)]
	if unq, err := strconv.Unquote(dir); err == nil {
		dir = unq
	}
	return dir, true
}

// Representable reports whether name survives Format followed by Parse. The
// name column starts after a run of spaces and ends at the line break, so a
// name cannot begin with a space or contain a line break.
func Representable(name string) bool {
	return name != "" && !strings.HasPrefix(name, " ") && !strings.ContainsAny(name, "\r\n")
}

// Format renders s in the listing format, directories first. Names that are
// not Representable are left out, so Parse(Format(s)) yields exactly the
// representable entries of s.
func Format(s *models.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%q%s\n", headerPrefix, s.Path, headerSuffix)
	for _, name := range s.DirNames() {
		if !Representable(name) {
			skip(s.Path, name)
			continue
		}
		fmt.Fprintf(&b, "[D] %10s %s\n", "-", name)
	}
	files := s.Files()
	for _, name := range s.FileNames() {
		if !Representable(name) {
			skip(s.Path, name)
			continue
		}
		fmt.Fprintf(&b, "[F] %10d %s\n", files[name], name)
	}
	return b.String()
}

func skip(dir, name string) {
	logging.Warn("entry name cannot be listed", logging.String("dir", dir), logging.String("name", name))
}
