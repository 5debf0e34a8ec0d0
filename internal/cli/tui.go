package cli

import (
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/roach88/todosync/internal/config"
	"github.com/roach88/todosync/internal/store/localstore"
	"github.com/roach88/todosync/internal/syncclient"
	"github.com/roach88/todosync/internal/tui"
	"github.com/roach88/todosync/internal/viewcache"
)

// TUIOptions holds flags for the tui command.
type TUIOptions struct {
	*RootOptions
	LogFile string
}

// NewTUICommand creates the tui command.
func NewTUICommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TUIOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive todo list",
		Long: `Open the interactive todo list.

Keys: a add, space toggle, d delete, r refresh, t switch theme, ? help, q quit.
The theme choice is saved as theme.json in the data directory.
With the local backend, new todos appear before the store confirms them.

Logs would corrupt the screen, so they are discarded unless --log-file is set.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "append logs to this file")

	return cmd
}

func runTUI(opts *TUIOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(config.Config{})
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.LogFile != "" {
		f, err := tea.LogToFile(opts.LogFile, "todo")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		defer f.Close()
		logger = opts.newLogger(f, cfg)
	}

	ctx := commandContext(cmd)
	st, closeStore, err := opts.openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	client := syncclient.New(st,
		syncclient.WithTimeout(cfg.TimeoutDuration()),
		syncclient.WithLogger(logger),
	)
	cache := viewcache.New(client,
		viewcache.WithOptimisticCreate(optimisticCreate(cfg)),
		viewcache.WithLogger(logger),
	)
	defer cache.Close()

	themes := localstore.NewThemeFile(cfg.DataDir)
	if err := tui.Run(ctx, cache, themes,
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	); err != nil {
		return WrapExitError(ExitFailure, "terminal UI error", err)
	}
	return nil
}

// optimisticCreate reports whether new records get a placeholder before the
// store answers. Only the local backend creates them this way.
func optimisticCreate(cfg *config.Config) bool {
	return cfg.Backend == config.BackendLocal
}
