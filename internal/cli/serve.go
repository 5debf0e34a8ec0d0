package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/todosync/internal/config"
	"github.com/roach88/todosync/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Listener, if set, is served instead of listening on Addr (for testing).
	Listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the todo REST API",
		Long: `Serve the todo REST API over the configured store.

Routes:
  GET    /api/todos        list, newest first
  POST   /api/todos        create from {"text": "..."}
  PUT    /api/todos/{id}   set {"completed": bool}, or flip with an empty body
  DELETE /api/todos/{id}   delete
  GET    /healthz          liveness

The server shuts down gracefully on SIGINT or SIGTERM.

Example:
  todo serve
  todo serve --addr 127.0.0.1:8080 --backend local`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, :5000)")

	return cmd
}

func runServer(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(config.Config{Addr: opts.Addr})
	if err != nil {
		return err
	}
	if cfg.Backend == config.BackendRemote {
		return NewExitError(ExitCommandError, "serve needs a storage backend (sqlite, local or mongo), not remote")
	}

	logger := opts.newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	st, closeStore, err := opts.openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := server.New(st,
		server.WithLogger(logger),
		server.WithAllowedOrigins(cfg.AllowedOrigins...),
	)

	if opts.Listener != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving todos on %s (%s backend)\n", opts.Listener.Addr(), cfg.Backend)
		err = srv.Serve(ctx, opts.Listener)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving todos on %s (%s backend)\n", cfg.Addr, cfg.Backend)
		err = srv.ListenAndServe(ctx, cfg.Addr)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
