package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Bin != "remsh-backend" {
		t.Errorf("Backend.Bin = %q", cfg.Backend.Bin)
	}
	if cfg.Backend.Retries != 0 {
		t.Errorf("Backend.Retries = %d", cfg.Backend.Retries)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if want := filepath.Join(home, ".remsh", "history"); cfg.Shell.HistoryFile != want {
		t.Errorf("HistoryFile = %q, want %q", cfg.Shell.HistoryFile, want)
	}
	if cfg.Store.Type != "local" {
		t.Errorf("Store.Type = %q", cfg.Store.Type)
	}
}

func TestLoad_DefaultFileIsRead(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	os.MkdirAll(filepath.Join(home, ".remsh"), 0o755)
	os.WriteFile(filepath.Join(home, ".remsh", "config.yaml"), []byte("shell:\n  name: dev\n"), 0o644)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Shell.Name != "dev" {
		t.Errorf("Shell.Name = %q, want dev", cfg.Shell.Name)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	p := writeConfig(t, `
backend:
  bin: /opt/store/cli
  args: ["--profile", "work"]
  retries: 2
shell:
  editor: nano
  scratch_dir: /var/tmp
log:
  level: debug
  format: json
metrics:
  textfile: /tmp/remsh.prom
viewers:
  - name: bat
    command: [bat, --paging=never]
    silent: true
store:
  type: s3
  s3:
    endpoint: http://localhost:9000
    bucket: files
    access_key: minio
`)

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Bin != "/opt/store/cli" || cfg.Backend.Retries != 2 {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if !reflect.DeepEqual(cfg.Backend.Args, []string{"--profile", "work"}) {
		t.Errorf("Backend.Args = %v", cfg.Backend.Args)
	}
	if cfg.Shell.Editor != "nano" || cfg.Shell.ScratchDir != "/var/tmp" {
		t.Errorf("Shell = %+v", cfg.Shell)
	}
	if cfg.Shell.CommentPrefix != "#" {
		t.Errorf("unset key lost its default: CommentPrefix = %q", cfg.Shell.CommentPrefix)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if len(cfg.Viewers) != 1 || cfg.Viewers[0].Name != "bat" || !cfg.Viewers[0].Silent {
		t.Errorf("Viewers = %+v", cfg.Viewers)
	}
	if cfg.Store.Type != "s3" || cfg.Store.S3.Bucket != "files" || cfg.Store.S3.AccessKey != "minio" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Store.S3.Region != "us-east-1" {
		t.Errorf("S3 region default lost: %q", cfg.Store.S3.Region)
	}

	opts := cfg.ShellOptions()
	if opts.Editor != "nano" || len(opts.Viewers) != 1 {
		t.Errorf("ShellOptions = %+v", opts)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	p := writeConfig(t, "backend:\n  bin: from-file\nshell:\n  editor: nano\n")

	t.Setenv("REMSH_BACKEND_BIN", "from-env")
	t.Setenv("REMSH_BACKEND_ARGS", "--a,--b")
	t.Setenv("REMSH_SHELL_SCRATCH_DIR", "/scratch")
	t.Setenv("REMSH_LOG_OUTPUT_PATH", "/tmp/remsh.log")
	t.Setenv("REMSH_STORE_S3_SECRET_KEY", "s3cret")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Bin != "from-env" {
		t.Errorf("Backend.Bin = %q, want from-env", cfg.Backend.Bin)
	}
	if !reflect.DeepEqual(cfg.Backend.Args, []string{"--a", "--b"}) {
		t.Errorf("Backend.Args = %v", cfg.Backend.Args)
	}
	if cfg.Shell.Editor != "nano" {
		t.Errorf("file value replaced without an env var: %q", cfg.Shell.Editor)
	}
	if cfg.Shell.ScratchDir != "/scratch" {
		t.Errorf("ScratchDir = %q", cfg.Shell.ScratchDir)
	}
	if cfg.Log.OutputPath != "/tmp/remsh.log" {
		t.Errorf("Log.OutputPath = %q", cfg.Log.OutputPath)
	}
	if cfg.Store.S3.SecretKey != "s3cret" {
		t.Errorf("S3.SecretKey = %q", cfg.Store.S3.SecretKey)
	}
}

func TestLoad_UnprefixedEnvIgnored(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("EDITOR", "emacs")
	t.Setenv("BIN", "nope")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Shell.Editor != "" || cfg.Backend.Bin != "remsh-backend" {
		t.Errorf("unprefixed variables leaked in: editor %q, bin %q", cfg.Shell.Editor, cfg.Backend.Bin)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "backend: [", "parse"},
		{"negative retries", "backend:\n  retries: -1\n", "retries"},
		{"viewer without command", "viewers:\n  - name: bat\n", "command is required"},
		{"viewer without name", "viewers:\n  - command: [bat]\n", "name is required"},
		{"unknown store", "store:\n  type: ftp\n", "store.type"},
		{"empty bin", "backend:\n  bin: \"\"\n", "backend.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REMSH_BACKEND_RETRIES", "many")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "environment") {
		t.Errorf("err = %v, want environment error", err)
	}
}
