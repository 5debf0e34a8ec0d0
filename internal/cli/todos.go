package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/todosync/internal/config"
	"github.com/roach88/todosync/internal/syncclient"
	"github.com/roach88/todosync/internal/todo"
)

// NewListCommand creates the ls command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List todos, newest first",
		Example: `  todo ls
  todo ls --backend local
  todo ls --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, rootOpts, func(ctx context.Context, c *syncclient.Client, f *OutputFormatter) error {
				return report(f, c.List(ctx), formatList)
			})
		},
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>...",
		Short: "Create a todo",
		Long: `Create a todo. Multiple arguments are joined with spaces.
Text is trimmed and must be 1 to 200 characters.`,
		Example:       `  todo add Buy milk`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withClient(cmd, rootOpts, func(ctx context.Context, c *syncclient.Client, f *OutputFormatter) error {
				return report(f, c.Create(ctx, text), func(t todo.Todo) string {
					return "Created " + formatTodo(t)
				})
			})
		},
	}
}

// DoneOptions holds flags for the done command.
type DoneOptions struct {
	*RootOptions
	Undo bool
}

// NewDoneCommand creates the done command.
func NewDoneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DoneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a todo completed",
		Example: `  todo done 0192f7c4-8f3e-7c6a-9d1b-3f5e2a1c4b7d
  todo done --undo 0192f7c4-8f3e-7c6a-9d1b-3f5e2a1c4b7d`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts.RootOptions, func(ctx context.Context, c *syncclient.Client, f *OutputFormatter) error {
				return report(f, c.SetCompleted(ctx, args[0], !opts.Undo), formatTodo)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Undo, "undo", false, "mark the todo not completed")

	return cmd
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "toggle <id>",
		Short:         "Flip a todo's completed flag",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, rootOpts, func(ctx context.Context, c *syncclient.Client, f *OutputFormatter) error {
				return report(f, c.Toggle(ctx, args[0]), formatTodo)
			})
		},
	}
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <id>",
		Short:         "Delete a todo",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, rootOpts, func(ctx context.Context, c *syncclient.Client, f *OutputFormatter) error {
				return report(f, c.Delete(ctx, args[0]), func(t todo.Todo) string {
					return "Deleted " + formatTodo(t)
				})
			})
		},
	}
}

// withClient loads config, opens the store and runs fn with a sync client.
func withClient(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *syncclient.Client, *OutputFormatter) error) error {
	cfg, err := opts.loadConfig(config.Config{})
	if err != nil {
		return err
	}
	logger := opts.newLogger(cmd.ErrOrStderr(), cfg)

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
	f := newFormatter(cmd, opts)
	f.VerboseLog("using %s backend", cfg.Backend)
	return fn(ctx, client, f)
}

// report writes an outcome. Failures are printed with their kind as the
// error code and returned as ExitFailure.
func report[T any](f *OutputFormatter, out todo.Outcome[T], text func(T) string) error {
	if !out.Success {
		var details any
		if out.Err != nil {
			details = out.Err.Error()
		}
		if err := f.Error(string(out.Error), out.Error.Message(), details); err != nil {
			return err
		}
		return reportedExitError(ExitFailure, out.Error.Message(), out.Err)
	}
	if f.Format == "json" {
		return f.Success(out.Data)
	}
	return f.Success(text(out.Data))
}

func formatTodo(t todo.Todo) string {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	return fmt.Sprintf("[%s] %s  (%s)", mark, t.Text, t.ID)
}

func formatList(todos []todo.Todo) string {
	if len(todos) == 0 {
		return "No todos."
	}
	lines := make([]string, len(todos))
	for i, t := range todos {
		lines[i] = formatTodo(t)
	}
	return strings.Join(lines, "\n")
}
