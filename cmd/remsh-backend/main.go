// Command remsh-backend is the reference backend CLI for remsh. It serves the
// list, download, upload, move, delete and mkdir verbs over a local
// directory or an S3 bucket.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/remsh/internal/config"
	"github.com/fruitsalade/remsh/internal/logging"
	"github.com/fruitsalade/remsh/internal/storage"
	"github.com/fruitsalade/remsh/pkg/listing"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "remsh-backend: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	storeType  string
	root       string

	store storage.Store
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "remsh-backend",
		Short:             "Reference file store backend for remsh",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			logging.Sync()
			return a.store.Close()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.remsh/config.yaml)")
	flags.StringVar(&a.storeType, "store", "", "store type: local or s3")
	flags.StringVar(&a.root, "root", "", "root directory of a local store")

	root.AddCommand(
		&cobra.Command{
			Use:   "list <dir>",
			Short: "Print the entries of a directory",
			Args:  cobra.ExactArgs(1),
			RunE:  a.list,
		},
		&cobra.Command{
			Use:   "download <remote> [local]",
			Short: "Copy a remote file or directory to the local filesystem",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  a.download,
		},
		&cobra.Command{
			Use:   "upload <local> <remote>",
			Short: "Copy a local file or directory to the store; a trailing / uploads into the directory",
			Args:  cobra.ExactArgs(2),
			RunE:  a.upload,
		},
		&cobra.Command{
			Use:   "move <src> <dst>",
			Short: "Move or rename a remote path",
			Args:  cobra.ExactArgs(2),
			RunE:  a.move,
		},
		&cobra.Command{
			Use:   "delete <path>",
			Short: "Delete a remote file or directory tree",
			Args:  cobra.ExactArgs(1),
			RunE:  a.delete,
		},
		&cobra.Command{
			Use:   "mkdir <dir>",
			Short: "Create a remote directory and its parents",
			Args:  cobra.ExactArgs(1),
			RunE:  a.mkdir,
		},
	)
	return root
}

func (a *app) open(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.storeType != "" {
		cfg.Store.Type = a.storeType
	}
	if a.root != "" {
		cfg.Store.Root = a.root
	}
	if err := logging.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	st, err := storage.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}
	a.store = st
	return nil
}

func (a *app) list(cmd *cobra.Command, args []string) error {
	snap, err := a.store.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), listing.Format(snap))
	return err
}

func (a *app) download(cmd *cobra.Command, args []string) error {
	local := ""
	if len(args) == 2 {
		local = args[1]
	}
	n, err := storage.Download(cmd.Context(), a.store, args[0], local)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s (%d files)\n", args[0], n)
	return nil
}

func (a *app) upload(cmd *cobra.Command, args []string) error {
	local, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	n, err := storage.Upload(cmd.Context(), a.store, local, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s (%d files)\n", args[0], args[1], n)
	return nil
}

func (a *app) move(cmd *cobra.Command, args []string) error {
	return a.store.Move(cmd.Context(), args[0], args[1])
}

func (a *app) delete(cmd *cobra.Command, args []string) error {
	return a.store.Delete(cmd.Context(), args[0])
}

func (a *app) mkdir(cmd *cobra.Command, args []string) error {
	return a.store.Mkdir(cmd.Context(), args[0])
}
