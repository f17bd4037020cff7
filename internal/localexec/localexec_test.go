package localexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestExecRunner_CapturesOutput(t *testing.T) {
	requireBinary(t, "echo")

	var out bytes.Buffer
	err := ExecRunner{}.Run(context.Background(), Command{Name: "echo", Args: []string{"hello", "world"}, Stdout: &out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "hello world" {
		t.Errorf("output = %q, want %q", got, "hello world")
	}
}

func TestExecRunner_ExitCode(t *testing.T) {
	requireBinary(t, "sh")

	err := ExecRunner{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	if err == nil {
		t.Fatal("expected error")
	}
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("error %T is not *ExitError", err)
	}
	if ExitCode(err) != 3 {
		t.Errorf("ExitCode = %d, want 3", ExitCode(err))
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	err := ExecRunner{}.Run(context.Background(), Command{Name: "remsh-no-such-binary"})
	if err == nil {
		t.Fatal("expected error")
	}
	if ExitCode(err) != -1 {
		t.Errorf("ExitCode = %d, want -1", ExitCode(err))
	}
}

func TestExecRunner_Dir(t *testing.T) {
	requireBinary(t, "pwd")

	dir := t.TempDir()
	var out bytes.Buffer
	if err := (ExecRunner{}).Run(context.Background(), Command{Name: "pwd", Dir: dir, Stdout: &out}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out.String()), strings.TrimPrefix(dir, "/private")) {
		t.Errorf("pwd = %q, want %q", out.String(), dir)
	}
}

func TestCommandString(t *testing.T) {
	if got := (Command{Name: "ls"}).String(); got != "ls" {
		t.Errorf("String = %q", got)
	}
	if got := (Command{Name: "ls", Args: []string{"-l", "/tmp"}}).String(); got != "ls -l /tmp" {
		t.Errorf("String = %q", got)
	}
}
