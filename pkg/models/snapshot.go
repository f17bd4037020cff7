// Package models contains the data types shared by the shell and the backend.
package models

import (
	"fmt"
	"sort"
	"time"
)

// EntryKind distinguishes directory entries from file entries.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
)

func (k EntryKind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// Entry is one named child of a remote directory.
type Entry struct {
	Name string    `json:"name"`
	Kind EntryKind `json:"kind"`
	Size int64     `json:"size"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDir }

// Snapshot is the contents of one remote directory at the moment it was listed.
// It is immutable once built; a refreshed listing produces a new Snapshot.
type Snapshot struct {
	Path      string
	FetchedAt time.Time

	dirs  map[string]struct{}
	files map[string]int64
}

// NewSnapshot builds a snapshot for path. A name may not appear both as a
// directory and as a file.
func NewSnapshot(path string, dirs []string, files map[string]int64) (*Snapshot, error) {
	s := &Snapshot{
		Path:      path,
		FetchedAt: time.Now(),
		dirs:      make(map[string]struct{}, len(dirs)),
		files:     make(map[string]int64, len(files)),
	}
	for _, d := range dirs {
		s.dirs[d] = struct{}{}
	}
	for name, size := range files {
		if _, ok := s.dirs[name]; ok {
			return nil, fmt.Errorf("entry %q listed as both directory and file", name)
		}
		if size < 0 {
			return nil, fmt.Errorf("entry %q has negative size %d", name, size)
		}
		s.files[name] = size
	}
	return s, nil
}

// HasDir reports whether name is a directory in the snapshot.
func (s *Snapshot) HasDir(name string) bool {
	_, ok := s.dirs[name]
	return ok
}

// FileSize returns the size of the file called name.
func (s *Snapshot) FileSize(name string) (int64, bool) {
	size, ok := s.files[name]
	return size, ok
}

// Has reports whether name exists as either kind.
func (s *Snapshot) Has(name string) bool {
	if s.HasDir(name) {
		return true
	}
	_, ok := s.files[name]
	return ok
}

// Lookup returns the entry called name.
func (s *Snapshot) Lookup(name string) (Entry, bool) {
	if s.HasDir(name) {
		return Entry{Name: name, Kind: KindDir}, true
	}
	if size, ok := s.files[name]; ok {
		return Entry{Name: name, Kind: KindFile, Size: size}, true
	}
	return Entry{}, false
}

// DirNames returns the directory names in lexical order.
func (s *Snapshot) DirNames() []string {
	names := make([]string, 0, len(s.dirs))
	for name := range s.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FileNames returns the file names in lexical order.
func (s *Snapshot) FileNames() []string {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns directories first, then files, each group sorted by name.
func (s *Snapshot) Entries() []Entry {
	entries := make([]Entry, 0, s.Len())
	for _, name := range s.DirNames() {
		entries = append(entries, Entry{Name: name, Kind: KindDir})
	}
	for _, name := range s.FileNames() {
		entries = append(entries, Entry{Name: name, Kind: KindFile, Size: s.files[name]})
	}
	return entries
}

// Files returns a copy of the name to size mapping.
func (s *Snapshot) Files() map[string]int64 {
	out := make(map[string]int64, len(s.files))
	for name, size := range s.files {
		out[name] = size
	}
	return out
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.dirs) + len(s.files)
}

// TotalSize sums the sizes of the files in the snapshot.
func (s *Snapshot) TotalSize() int64 {
	var total int64
	for _, size := range s.files {
		total += size
	}
	return total
}
