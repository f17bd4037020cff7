// Command remsh is an interactive shell over a remote file store. Every
// remote operation runs the configured backend CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/remsh/internal/backend"
	"github.com/fruitsalade/remsh/internal/config"
	"github.com/fruitsalade/remsh/internal/localexec"
	"github.com/fruitsalade/remsh/internal/logging"
	"github.com/fruitsalade/remsh/internal/metrics"
	"github.com/fruitsalade/remsh/internal/shell"
)

func main() {
	if err := (&flags{}).command().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "remsh: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath  string
	backendBin  string
	backendArgs []string
	retries     int
	scratchDir  string
	logLevel    string
	metricsAddr string
	noHistory   bool
}

// command builds the root command with its flags bound to f.
func (f *flags) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "remsh",
		Short:         "Interactive shell over a remote file store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			return runSession(cmd.Context(), cfg, !f.noHistory)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "config file (default ~/.remsh/config.yaml)")
	fl.StringVar(&f.backendBin, "backend", "", "backend CLI binary")
	fl.StringSliceVar(&f.backendArgs, "backend-arg", nil, "argument passed to the backend before the verb (repeatable)")
	fl.IntVar(&f.retries, "retries", 0, "retries for list and download calls")
	fl.StringVar(&f.scratchDir, "scratch-dir", "", "directory for temporary copies of remote files")
	fl.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fl.BoolVar(&f.noHistory, "no-history", false, "do not read or write the history file")
	return cmd
}

// apply overlays the flags the user actually set.
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("backend") {
		cfg.Backend.Bin = f.backendBin
	}
	if changed("backend-arg") {
		cfg.Backend.Args = f.backendArgs
	}
	if changed("retries") {
		cfg.Backend.Retries = f.retries
	}
	if changed("scratch-dir") {
		cfg.Shell.ScratchDir = f.scratchDir
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("metrics-addr") {
		cfg.Metrics.Listen = f.metricsAddr
	}
}

func runSession(ctx context.Context, cfg *config.Config, history bool) error {
	if err := logging.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()

	if cfg.Metrics.Listen != "" {
		metricsServer := &http.Server{
			Addr:    cfg.Metrics.Listen,
			Handler: metrics.Handler(),
		}
		go func() {
			logging.Info("metrics server listening", logging.String("addr", cfg.Metrics.Listen))
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("metrics server error", logging.Err(err))
			}
		}()
		defer metricsServer.Close()
	}
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logging.Error("write metrics textfile", logging.Err(err))
			}
		}()
	}

	runner := localexec.ExecRunner{}
	cli := backend.NewCLI(cfg.Backend.Bin, cfg.Backend.Args, cfg.Backend.Retries, runner)
	sh := shell.New(cli, runner, cfg.ShellOptions())

	historyFile := ""
	if history {
		historyFile = cfg.Shell.HistoryFile
	}
	reader, err := sh.NewLineReader(ctx, historyFile)
	if err != nil {
		return err
	}
	defer reader.Close()

	logging.Info("starting session",
		logging.String("session", sh.ID()),
		logging.String("backend", cfg.Backend.Bin),
	)
	return sh.Run(ctx, reader)
}
