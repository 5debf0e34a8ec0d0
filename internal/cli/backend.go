package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/todosync/internal/config"
	"github.com/roach88/todosync/internal/remote"
	"github.com/roach88/todosync/internal/store"
	"github.com/roach88/todosync/internal/store/localstore"
	"github.com/roach88/todosync/internal/store/mongostore"
	"github.com/roach88/todosync/internal/todo"
)

// loadConfig merges config sources with the global flags on top.
func (o *RootOptions) loadConfig(overrides config.Config) (*config.Config, error) {
	if o.Backend != "" {
		overrides.Backend = config.Backend(o.Backend)
	}
	cfg, err := config.Load(config.LoadOptions{
		Dir:        o.Dir,
		ConfigFile: o.ConfigFile,
		Overrides:  overrides,
		LookupEnv:  o.LookupEnv,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger writes to w. --verbose wins over the configured level; JSON
// output gets a JSON handler so both streams stay machine-readable.
func (o *RootOptions) newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if o.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openStore opens the configured backend. The returned func closes it.
func (o *RootOptions) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (todo.Store, func(), error) {
	open := o.OpenStore
	if open == nil {
		open = openBackend
	}
	st, err := open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open %s store", cfg.Backend), err)
	}
	closeFn := func() {
		if c, ok := st.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Error("error closing store", "error", err)
			}
		}
	}
	return st, closeFn, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (todo.Store, error) {
	logger.Debug("opening store", "backend", cfg.Backend)

	switch cfg.Backend {
	case config.BackendSQLite:
		path := sqlitePath(cfg)
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, err
			}
		}
		logger.Debug("opening database", "path", path)
		return store.Open(path)

	case config.BackendLocal:
		return localstore.Open(cfg.DataDir, localstore.WithLogger(logger))

	case config.BackendMongo:
		return mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)

	case config.BackendRemote:
		return remote.New(cfg.APIURL, remote.WithHTTPClient(&http.Client{Timeout: cfg.TimeoutDuration()}))

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// sqlitePath resolves a relative database path against the data dir.
func sqlitePath(cfg *config.Config) string {
	if cfg.Database == ":memory:" || filepath.IsAbs(cfg.Database) {
		return cfg.Database
	}
	return filepath.Join(cfg.DataDir, cfg.Database)
}

// commandContext returns the command's context, or Background when run
// outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
