package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/todosync/internal/store/localstore"
	"github.com/roach88/todosync/internal/todo"
	"github.com/roach88/todosync/internal/viewcache"
)

// ThemeStore persists the display theme.
type ThemeStore interface {
	Load() string
	Save(theme string) error
}

// changedMsg reports that the cache changed.
type changedMsg struct{}

// closedMsg reports that the cache was closed.
type closedMsg struct{}

// opDoneMsg reports a finished cache operation.
type opDoneMsg struct {
	op      string
	success bool
	kind    todo.ErrorKind
}

// Model renders a view cache. It never holds records of its own: every
// frame is drawn from the latest snapshot.
type Model struct {
	ctx    context.Context
	cache  *viewcache.Cache
	themes ThemeStore
	theme  string
	styles styles
	keys   keyMap

	input textinput.Model
	spin  spinner.Model
	help  help.Model

	snap   viewcache.Snapshot
	cursor int
	adding bool
	status string
}

// New creates a model over cache. Operations run with ctx.
func New(ctx context.Context, cache *viewcache.Cache, themes ThemeStore) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = todo.MaxTextLength

	theme := themes.Load()
	return Model{
		ctx:    ctx,
		cache:  cache,
		themes: themes,
		theme:  theme,
		styles: stylesFor(theme),
		keys:   defaultKeyMap(),
		input:  ti,
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:   help.New(),
		snap:   cache.Snapshot(),
	}
}

// Init loads the list and starts listening for cache changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), waitForChange(m.cache.Changes()), m.spin.Tick)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return closedMsg{}
		}
		return changedMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		m.sync()
		return m, waitForChange(m.cache.Changes())

	case closedMsg:
		return m, nil

	case opDoneMsg:
		m.sync()
		if msg.success {
			m.status = ""
		} else {
			m.status = msg.kind.Message()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.adding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.adding {
		switch {
		case key.Matches(msg, m.keys.Submit):
			text := m.input.Value()
			m.input.Reset()
			m.input.Blur()
			m.adding = false
			return m, m.create(text)
		case key.Matches(msg, m.keys.Cancel):
			m.input.Reset()
			m.input.Blur()
			m.adding = false
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.snap.Items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Add):
		m.adding = true
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Toggle):
		if t, ok := m.selected(); ok {
			return m, m.toggle(t.ID)
		}
	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.selected(); ok {
			return m, m.delete(t.ID)
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()
	case key.Matches(msg, m.keys.Theme):
		m.switchTheme()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) sync() {
	m.snap = m.cache.Snapshot()
	if m.cursor >= len(m.snap.Items) {
		m.cursor = len(m.snap.Items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (todo.Todo, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Items) {
		return todo.Todo{}, false
	}
	return m.snap.Items[m.cursor], true
}

func (m *Model) switchTheme() {
	next := localstore.ThemeLight
	if m.theme == localstore.ThemeLight {
		next = localstore.ThemeDark
	}
	if err := m.themes.Save(next); err != nil {
		m.status = fmt.Sprintf("Failed to save theme: %v", err)
		return
	}
	m.theme = next
	m.styles = stylesFor(next)
}

func (m Model) refresh() tea.Cmd {
	ctx, cache := m.ctx, m.cache
	return func() tea.Msg {
		out := cache.Refresh(ctx)
		return opDoneMsg{op: "refresh", success: out.Success, kind: out.Error}
	}
}

func (m Model) create(text string) tea.Cmd {
	ctx, cache := m.ctx, m.cache
	return func() tea.Msg {
		out := cache.Create(ctx, text)
		return opDoneMsg{op: "create", success: out.Success, kind: out.Error}
	}
}

func (m Model) toggle(id string) tea.Cmd {
	ctx, cache := m.ctx, m.cache
	return func() tea.Msg {
		out := cache.Toggle(ctx, id)
		return opDoneMsg{op: "toggle", success: out.Success, kind: out.Error}
	}
}

func (m Model) delete(id string) tea.Cmd {
	ctx, cache := m.ctx, m.cache
	return func() tea.Msg {
		out := cache.Delete(ctx, id)
		return opDoneMsg{op: "delete", success: out.Success, kind: out.Error}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	s := m.styles
	var b strings.Builder

	done := 0
	for _, t := range m.snap.Items {
		if t.Completed {
			done++
		}
	}
	fmt.Fprintf(&b, "%s   %s %d  %s %d  %s\n",
		s.title.Render("Todos"),
		s.success.Render("✔"), done,
		s.muted.Render("•"), len(m.snap.Items)-done,
		s.muted.Render(m.theme),
	)

	if m.adding {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(s.muted.Render("press a to add a todo"))
	}
	b.WriteString("\n\n")

	switch {
	case m.snap.State == viewcache.Loading && len(m.snap.Items) == 0:
		fmt.Fprintf(&b, "%s Loading todos...\n", m.spin.View())
	case len(m.snap.Items) == 0:
		b.WriteString(s.muted.Render("Nothing to do."))
		b.WriteString("\n")
	}

	for i, t := range m.snap.Items {
		prefix := "  "
		if i == m.cursor {
			prefix = s.selected.Render("> ")
		}
		box, text := s.muted.Render(boxUnchecked), t.Text
		switch {
		case viewcache.IsPending(t.ID):
			text = s.pending.Render(t.Text + " (saving)")
		case t.Completed:
			box = s.success.Render(boxChecked)
			text = s.done.Render(t.Text)
		}
		fmt.Fprintf(&b, "%s%s %s\n", prefix, box, text)
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(s.errorMsg.Render(m.status))
		b.WriteString("\n")
	}

	return s.frame.Render(strings.TrimRight(b.String(), "\n")) + "\n" + m.help.View(m.keys) + "\n"
}
