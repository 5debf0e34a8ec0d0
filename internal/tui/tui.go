// Package tui is the terminal display layer. It reads view cache snapshots
// and forwards key presses as cache operations.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/todosync/internal/viewcache"
)

// Run starts the program and blocks until the user quits or ctx ends.
// Extra options are appended after the defaults.
func Run(ctx context.Context, cache *viewcache.Cache, themes ThemeStore, opts ...tea.ProgramOption) error {
	options := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(ctx, cache, themes), options...)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
