package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/todosync/internal/store/localstore"
)

const (
	boxUnchecked = "☐"
	boxChecked   = "☑"
)

type styles struct {
	title    lipgloss.Style
	muted    lipgloss.Style
	success  lipgloss.Style
	done     lipgloss.Style
	selected lipgloss.Style
	pending  lipgloss.Style
	errorMsg lipgloss.Style
	frame    lipgloss.Style
}

type palette struct {
	text, muted, accent, success, errorFg, border lipgloss.Color
}

var palettes = map[string]palette{
	localstore.ThemeDark: {
		text:    "252",
		muted:   "245",
		accent:  "212",
		success: "42",
		errorFg: "203",
		border:  "240",
	},
	localstore.ThemeLight: {
		text:    "235",
		muted:   "243",
		accent:  "127",
		success: "28",
		errorFg: "160",
		border:  "250",
	},
}

func stylesFor(theme string) styles {
	p, ok := palettes[theme]
	if !ok {
		p = palettes[localstore.ThemeDark]
	}
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		muted:    lipgloss.NewStyle().Foreground(p.muted),
		success:  lipgloss.NewStyle().Foreground(p.success),
		done:     lipgloss.NewStyle().Foreground(p.muted).Strikethrough(true),
		selected: lipgloss.NewStyle().Foreground(p.accent).Bold(true),
		pending:  lipgloss.NewStyle().Foreground(p.muted).Italic(true),
		errorMsg: lipgloss.NewStyle().Foreground(p.errorFg),
		frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.border).
			Foreground(p.text).
			Padding(0, 1),
	}
}
