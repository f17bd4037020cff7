package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/fruitsalade/remsh/pkg/tree"
)

// Upload copies the local file or directory tree at local to remote and
// returns how many files were written. A remote ending in "/", or naming an
// existing directory, receives local under its base name.
func Upload(ctx context.Context, st Store, local, remote string) (int, error) {
	info, err := os.Stat(local)
	if err != nil {
		return 0, err
	}

	if strings.HasSuffix(remote, "/") {
		remote = path.Join(remote, filepath.Base(local))
	} else if e, err := st.Stat(ctx, remote); err == nil && e.IsDir() {
		remote = path.Join(remote, filepath.Base(local))
	}
	remote = path.Clean("/" + remote)

	if !info.IsDir() {
		return 1, putFile(ctx, st, local, remote)
	}

	dirs, files, err := walkLocal(ctx, local)
	if err != nil {
		return 0, err
	}
	if err := st.Mkdir(ctx, remote); err != nil {
		return 0, err
	}
	for _, d := range dirs {
		if err := st.Mkdir(ctx, path.Join(remote, d)); err != nil {
			return 0, err
		}
	}
	for i, f := range files {
		if err := putFile(ctx, st, filepath.Join(local, filepath.FromSlash(f)), path.Join(remote, f)); err != nil {
			return i, err
		}
	}
	return len(files), nil
}

// walkLocal returns the slash-separated relative paths of every directory
// and regular file below root, each list sorted.
func walkLocal(ctx context.Context, root string) (dirs, files []string, err error) {
	var mu sync.Mutex
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)

		mu.Lock()
		defer mu.Unlock()
		switch {
		case d.IsDir():
			dirs = append(dirs, rel)
		case d.Type().IsRegular():
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(dirs)
	sort.Strings(files)
	return dirs, files, nil
}

func putFile(ctx context.Context, st Store, local, remote string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return st.PutObject(ctx, remote, f, info.Size())
}

// Download copies the remote file or directory tree at remote to local and
// returns how many files were written. An empty local means the base name in
// the working directory; an existing local directory receives remote under
// its base name.
func Download(ctx context.Context, st Store, remote, local string) (int, error) {
	remote = path.Clean("/" + remote)
	entry, err := st.Stat(ctx, remote)
	if err != nil {
		return 0, err
	}

	base := path.Base(remote)
	if remote == "/" {
		base = "root"
	}
	switch {
	case local == "":
		local = base
	default:
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			local = filepath.Join(local, base)
		}
	}

	if !entry.IsDir() {
		return 1, getFile(ctx, st, remote, local)
	}
	return downloadDir(ctx, st, remote, local)
}

func downloadDir(ctx context.Context, st Store, remote, local string) (int, error) {
	if err := os.MkdirAll(local, 0o755); err != nil {
		return 0, err
	}
	snap, err := st.List(ctx, remote)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, name := range snap.FileNames() {
		if err := getFile(ctx, st, tree.BuildChildPath(remote, name), filepath.Join(local, name)); err != nil {
			return n, err
		}
		n++
	}
	for _, name := range snap.DirNames() {
		sub, err := downloadDir(ctx, st, tree.BuildChildPath(remote, name), filepath.Join(local, name))
		n += sub
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func getFile(ctx context.Context, st Store, remote, local string) (err error) {
	rc, _, err := st.GetObject(ctx, remote)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(local)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(f, rc)
	return err
}
