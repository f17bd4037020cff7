package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"
	"testing"

	"github.com/fruitsalade/remsh/internal/backend"
	"github.com/fruitsalade/remsh/internal/backend/backendtest"
	"github.com/fruitsalade/remsh/internal/localexec"
	"github.com/fruitsalade/remsh/pkg/cache"
	"github.com/fruitsalade/remsh/pkg/tree"
)

type fixture struct {
	fake     *backendtest.Fake
	cache    *cache.Cache
	pipeline *Pipeline
	root     string
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := backendtest.New().AddFile("/docs/readme.md", "hello remote")
	client := backend.NewClient(fake)
	c := cache.New(client)
	root := t.TempDir()

	p := New(client, tree.NewResolver(c), root)
	var stdout, stderr bytes.Buffer
	p.Stdout = &stdout
	p.Stderr = &stderr
	return &fixture{fake: fake, cache: c, pipeline: p, root: root, stdout: &stdout, stderr: &stderr}
}

func (f *fixture) assertScratchGone(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch root not empty: %v", entries)
	}
}

func TestRun_ViewSuccess(t *testing.T) {
	f := newFixture(t)
	var seen, localPath string

	err := f.pipeline.Run(context.Background(), "/docs/readme.md", func(ctx context.Context, local string) error {
		localPath = local
		data, err := os.ReadFile(local)
		seen = string(data)
		return err
	}, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen != "hello remote" {
		t.Errorf("action saw %q", seen)
	}
	if filepath.Base(localPath) != "readme.md" {
		t.Errorf("local copy %q does not keep the remote base name", localPath)
	}
	if !strings.Contains(f.stdout.String(), "downloaded") {
		t.Errorf("download output not printed: %q", f.stdout.String())
	}
	if f.fake.Count(backend.VerbUpload) != 0 {
		t.Error("view run uploaded")
	}
	f.assertScratchGone(t)
}

func TestRun_SilentSuppressesOutput(t *testing.T) {
	f := newFixture(t)
	err := f.pipeline.Run(context.Background(), "/docs/readme.md", func(context.Context, string) error { return nil }, Options{Silent: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.stdout.Len() != 0 {
		t.Errorf("silent run printed %q", f.stdout.String())
	}
}

func TestRun_FailedFetchStillRunsAction(t *testing.T) {
	f := newFixture(t)
	ran := false

	err := f.pipeline.Run(context.Background(), "/docs/missing.txt", func(ctx context.Context, local string) error {
		ran = true
		if _, err := os.Stat(local); !os.IsNotExist(err) {
			t.Errorf("expected no local copy, stat err = %v", err)
		}
		return nil
	}, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ran {
		t.Error("action did not run after a failed fetch")
	}
	if !strings.Contains(f.stderr.String(), "no such file") {
		t.Errorf("fetch failure not reported: %q", f.stderr.String())
	}
	f.assertScratchGone(t)
}

func TestRun_FailedFetchReportedUnderName(t *testing.T) {
	f := newFixture(t)
	f.pipeline.Name = "rsh"

	f.pipeline.Run(context.Background(), "/docs/missing.txt", func(ctx context.Context, local string) error {
		return nil
	}, Options{})
	if !strings.HasPrefix(f.stderr.String(), "rsh: ") {
		t.Errorf("stderr = %q, want it prefixed with the configured name", f.stderr.String())
	}
}

func TestRun_RefusesRoot(t *testing.T) {
	for _, opts := range []Options{{}, {WriteBack: true}} {
		f := newFixture(t)
		ran := false
		err := f.pipeline.Run(context.Background(), "/", func(ctx context.Context, local string) error {
			ran = true
			return nil
		}, opts)
		if !errors.Is(err, syscall.EISDIR) {
			t.Errorf("WriteBack=%v: err = %v, want EISDIR", opts.WriteBack, err)
		}
		if ran || len(f.fake.Calls) != 0 {
			t.Errorf("WriteBack=%v: action ran or backend was called: %+v", opts.WriteBack, f.fake.Calls)
		}
		f.assertScratchGone(t)
	}
}

func TestRun_ActionErrorCleansUp(t *testing.T) {
	f := newFixture(t)
	sentinel := errors.New("viewer crashed")

	err := f.pipeline.Run(context.Background(), "/docs/readme.md", func(context.Context, string) error {
		return sentinel
	}, Options{})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want %v", err, sentinel)
	}
	f.assertScratchGone(t)
}

func TestRun_ActionPanicCleansUp(t *testing.T) {
	f := newFixture(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		f.pipeline.Run(context.Background(), "/docs/readme.md", func(context.Context, string) error {
			panic("boom")
		}, Options{})
	}()
	f.assertScratchGone(t)
}

func TestRun_WriteBackNewFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cache.Get(ctx, "/docs")

	err := f.pipeline.Run(ctx, "/docs/new.txt", func(ctx context.Context, local string) error {
		return os.WriteFile(local, []byte("created"), 0o644)
	}, Options{WriteBack: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.fake.Count(backend.VerbDownload) != 0 {
		t.Error("write-back of a new file downloaded")
	}
	if f.fake.Count(backend.VerbUpload) != 1 {
		t.Errorf("uploads = %d, want 1", f.fake.Count(backend.VerbUpload))
	}
	if got := string(f.fake.Files["/docs/new.txt"]); got != "created" {
		t.Errorf("remote content = %q", got)
	}
	if f.cache.Cached("/docs") {
		t.Error("parent listing not invalidated after write-back")
	}
	f.assertScratchGone(t)
}

func TestRun_WriteBackExistingFile(t *testing.T) {
	f := newFixture(t)

	err := f.pipeline.Run(context.Background(), "/docs/readme.md", func(ctx context.Context, local string) error {
		data, err := os.ReadFile(local)
		if err != nil {
			return err
		}
		return os.WriteFile(local, append(data, " edited"...), 0o644)
	}, Options{WriteBack: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.fake.Count(backend.VerbDownload) != 1 {
		t.Errorf("downloads = %d, want 1", f.fake.Count(backend.VerbDownload))
	}
	if got := string(f.fake.Files["/docs/readme.md"]); got != "hello remote edited" {
		t.Errorf("remote content = %q", got)
	}
}

func TestRun_WriteBackUploadsEvenWhenActionFails(t *testing.T) {
	f := newFixture(t)
	sentinel := errors.New("editor exited 1")

	err := f.pipeline.Run(context.Background(), "/docs/readme.md", func(context.Context, string) error {
		return sentinel
	}, Options{WriteBack: true})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want %v", err, sentinel)
	}
	if f.fake.Count(backend.VerbUpload) != 1 {
		t.Errorf("uploads = %d, want 1", f.fake.Count(backend.VerbUpload))
	}
	f.assertScratchGone(t)
}

func TestRun_WriteBackAbortsWhenExistingFileCannotBeFetched(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail[backend.VerbDownload] = errors.New("connection reset")
	ran := false

	err := f.pipeline.Run(context.Background(), "/docs/readme.md", func(ctx context.Context, local string) error {
		ran = true
		return nil
	}, Options{WriteBack: true})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("err = %v, want the fetch failure", err)
	}
	if ran {
		t.Error("editor ran without a local copy of an existing file")
	}
	if n := f.fake.Count(backend.VerbUpload); n != 0 {
		t.Errorf("uploads = %d, want 0; the remote file would be overwritten", n)
	}
	f.assertScratchGone(t)
}

func TestRun_WriteBackCombinesErrors(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail[backend.VerbUpload] = errors.New("quota exceeded")
	actionErr := errors.New("editor exited 1")

	err := f.pipeline.Run(context.Background(), "/docs/new.txt", func(context.Context, string) error {
		return actionErr
	}, Options{WriteBack: true})
	if !errors.Is(err, actionErr) || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err = %v, want both failures", err)
	}
	f.assertScratchGone(t)
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name     string
		template []string
		want     []string
	}{
		{"append", []string{"wc", "-l"}, []string{"wc", "-l", "/tmp/s/my file"}},
		{"local token", []string{"cp", "{}", "out"}, []string{"cp", "/tmp/s/my file", "out"}},
		{"remote token", []string{"echo", "{{}}"}, []string{"echo", "/docs/my file"}},
		{"both tokens", []string{"diff", "{}", "{{}}"}, []string{"diff", "/tmp/s/my file", "/docs/my file"}},
		{"embedded", []string{"sh", "-c", "wc -c {} # {{}}"}, []string{"sh", "-c", `wc -c '/tmp/s/my file' # '/docs/my file'`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Substitute(tt.template, "/tmp/s/my file", "/docs/my file")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Substitute = %q, want %q", got, tt.want)
			}
		})
	}
}

type recordingRunner struct {
	cmds []localexec.Command
}

func (r *recordingRunner) Run(ctx context.Context, cmd localexec.Command) error {
	r.cmds = append(r.cmds, cmd)
	return nil
}

func TestCommandAction(t *testing.T) {
	r := &recordingRunner{}
	var out bytes.Buffer
	action := CommandAction(r, localexec.Command{Stdout: &out}, []string{"head", "-n", "5"}, "/docs/a.txt")

	if err := action(context.Background(), "/scratch/a.txt"); err != nil {
		t.Fatalf("action: %v", err)
	}
	if len(r.cmds) != 1 {
		t.Fatalf("commands = %d", len(r.cmds))
	}
	cmd := r.cmds[0]
	if cmd.Name != "head" || !reflect.DeepEqual(cmd.Args, []string{"-n", "5", "/scratch/a.txt"}) {
		t.Errorf("command = %s", cmd)
	}
	if cmd.Stdout != &out {
		t.Error("prototype streams not carried over")
	}

	if err := CommandAction(r, localexec.Command{}, nil, "/x")(context.Background(), "/s/x"); err == nil {
		t.Error("expected error for empty template")
	}
}
