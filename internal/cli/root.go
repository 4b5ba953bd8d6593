// Package cli implements the itinera operator command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacentio/itinera/internal/settings"
	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/store"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	envFile    string
	tenantID   string

	out    io.Writer
	cfg    settings.Config
	logger *slog.Logger

	backend kv.Store
	closeFn func() error
	store   *store.Store
}

// Execute runs the root command.
func Execute(version string) error {
	root := newRootCmd(os.Stdout, nil)
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// newRootCmd builds the command tree. A non-nil backend replaces the
// configured one.
func newRootCmd(out io.Writer, backend kv.Store) *cobra.Command {
	a := &app{out: out, backend: backend}

	root := &cobra.Command{
		Use:   "itinera",
		Short: "Operate the itinera trip store",
		Long: `itinera inspects and repairs tenant trip data: derived indexes, summaries,
pending deletes and keys left under the legacy tenant prefix scheme.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to a .env file")
	root.PersistentFlags().StringVarP(&a.tenantID, "tenant", "t", "", "Raw tenant identifier")

	root.AddCommand(newPrefixCmd(a))
	root.AddCommand(newCreateCmd(a))
	root.AddCommand(newGetCmd(a))
	root.AddCommand(newPutCmd(a))
	root.AddCommand(newPatchCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newSummaryCmd(a))
	root.AddCommand(newReindexCmd(a))
	root.AddCommand(newPendingCmd(a))
	root.AddCommand(newLegacyCmd(a))
	root.AddCommand(newCreateTableCmd(a))
	return root
}

func (a *app) setup() error {
	if err := settings.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := settings.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := settings.NewLogger(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) teardown() error {
	if a.closeFn == nil {
		return nil
	}
	err := a.closeFn()
	a.closeFn = nil
	return err
}

// open returns the trip store, opening the backend on first use.
func (a *app) open(ctx context.Context) (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.backend == nil {
		backend, closeFn, err := settings.OpenBackend(ctx, a.cfg, a.logger)
		if err != nil {
			return nil, err
		}
		a.backend, a.closeFn = backend, closeFn
	}
	a.store = store.New(a.backend, a.cfg.Store, store.WithLogger(a.logger))
	return a.store, nil
}

// tenant returns the --tenant flag, which most commands require.
func (a *app) tenant() (string, error) {
	if a.tenantID == "" {
		return "", errors.New("--tenant is required")
	}
	return a.tenantID, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printLines(lines []string) {
	for _, l := range lines {
		fmt.Fprintln(a.out, l)
	}
}
