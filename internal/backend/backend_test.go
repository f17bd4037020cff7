package backend

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/fruitsalade/remsh/internal/localexec"
)

// scriptedRunner answers each Run with the next scripted result.
type scriptedRunner struct {
	results []scriptedResult
	cmds    []localexec.Command
}

type scriptedResult struct {
	stdout, stderr string
	err            error
}

func (r *scriptedRunner) Run(ctx context.Context, cmd localexec.Command) error {
	r.cmds = append(r.cmds, cmd)
	res := r.results[0]
	if len(r.results) > 1 {
		r.results = r.results[1:]
	}
	if cmd.Stdout != nil {
		io.WriteString(cmd.Stdout, res.stdout)
	}
	if cmd.Stderr != nil {
		io.WriteString(cmd.Stderr, res.stderr)
	}
	return res.err
}

func newTestCLI(runner localexec.Runner, retries int) *CLI {
	c := NewCLI("storectl", []string{"--profile", "prod"}, retries, runner)
	c.Retry.InitialWait = time.Millisecond
	c.Retry.MaxWait = time.Millisecond
	return c
}

func TestCLI_Argv(t *testing.T) {
	r := &scriptedRunner{results: []scriptedResult{{stdout: "ok\n"}}}
	c := newTestCLI(r, 0)

	out, err := c.Run(context.Background(), VerbMove, "/a", "/b c")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "ok\n" {
		t.Errorf("out = %q", out)
	}
	want := []string{"--profile", "prod", "move", "/a", "/b c"}
	if got := r.cmds[0].Args; !reflect.DeepEqual(got, want) {
		t.Errorf("argv = %v, want %v", got, want)
	}
	if r.cmds[0].Name != "storectl" {
		t.Errorf("bin = %q", r.cmds[0].Name)
	}
}

func TestCLI_CommandError(t *testing.T) {
	r := &scriptedRunner{results: []scriptedResult{{
		stderr: "permission denied\n",
		err:    &localexec.ExitError{Command: "storectl", Code: 2},
	}}}
	c := newTestCLI(r, 0)

	_, err := c.Run(context.Background(), VerbDelete, "/x")
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not *CommandError", err)
	}
	if ce.ExitCode != 2 || ce.Verb != VerbDelete {
		t.Errorf("CommandError = %+v", ce)
	}
	if err.Error() != "permission denied" {
		t.Errorf("Error() = %q, want backend output", err.Error())
	}
}

func TestCLI_CommandErrorFallsBackToStdout(t *testing.T) {
	r := &scriptedRunner{results: []scriptedResult{{
		stdout: "not found: /x\n",
		err:    &localexec.ExitError{Command: "storectl", Code: 1},
	}}}
	_, err := newTestCLI(r, 0).Run(context.Background(), VerbMkdir, "/x")
	if err == nil || err.Error() != "not found: /x" {
		t.Errorf("err = %v", err)
	}
}

func TestCLI_CommandErrorWithoutOutput(t *testing.T) {
	r := &scriptedRunner{results: []scriptedResult{{
		err: &localexec.ExitError{Command: "storectl", Code: 4},
	}}}
	_, err := newTestCLI(r, 0).Run(context.Background(), VerbMkdir, "/x")
	if err == nil || err.Error() != "backend mkdir failed with exit status 4" {
		t.Errorf("err = %v", err)
	}
}

func TestCLI_RetriesIdempotentVerbs(t *testing.T) {
	exit1 := &localexec.ExitError{Command: "storectl", Code: 1}
	r := &scriptedRunner{results: []scriptedResult{
		{stderr: "timeout", err: exit1},
		{stdout: "> Listing \"/\"... DONE\n"},
	}}
	out, err := newTestCLI(r, 2).Run(context.Background(), VerbList, "/")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(r.cmds) != 2 {
		t.Errorf("attempts = %d, want 2", len(r.cmds))
	}
	if out == "" {
		t.Error("expected listing output")
	}
}

func TestCLI_DoesNotRetryMutations(t *testing.T) {
	exit1 := &localexec.ExitError{Command: "storectl", Code: 1}
	r := &scriptedRunner{results: []scriptedResult{{stderr: "boom", err: exit1}}}
	_, err := newTestCLI(r, 3).Run(context.Background(), VerbUpload, "a", "/b")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(r.cmds) != 1 {
		t.Errorf("attempts = %d, want 1", len(r.cmds))
	}
}

func TestCLI_StartFailureIsNotRetried(t *testing.T) {
	r := &scriptedRunner{results: []scriptedResult{{err: errors.New("exec: not found")}}}
	_, err := newTestCLI(r, 3).Run(context.Background(), VerbList, "/")
	var ce *CommandError
	if !errors.As(err, &ce) || ce.ExitCode != -1 {
		t.Fatalf("err = %v", err)
	}
	if len(r.cmds) != 1 {
		t.Errorf("attempts = %d, want 1", len(r.cmds))
	}
}

func TestClient_Verbs(t *testing.T) {
	r := &scriptedRunner{results: []scriptedResult{{}}}
	c := NewClient(newTestCLI(r, 0))
	ctx := context.Background()

	c.List(ctx, "/d")
	c.Download(ctx, "/d/f", "")
	c.Download(ctx, "/d/f", "/tmp/f")
	c.Upload(ctx, "f", "/d/")
	c.Move(ctx, "/a", "/b")
	c.Delete(ctx, "/a")
	c.Mkdir(ctx, "/n")

	want := [][]string{
		{"list", "/d"},
		{"download", "/d/f"},
		{"download", "/d/f", "/tmp/f"},
		{"upload", "f", "/d/"},
		{"move", "/a", "/b"},
		{"delete", "/a"},
		{"mkdir", "/n"},
	}
	if len(r.cmds) != len(want) {
		t.Fatalf("calls = %d, want %d", len(r.cmds), len(want))
	}
	for i, cmd := range r.cmds {
		if got := cmd.Args[2:]; !reflect.DeepEqual(got, want[i]) {
			t.Errorf("call %d = %v, want %v", i, got, want[i])
		}
	}
}
