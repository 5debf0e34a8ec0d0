package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/todosync/internal/store/localstore"
	"github.com/roach88/todosync/internal/syncclient"
	"github.com/roach88/todosync/internal/testutil"
	"github.com/roach88/todosync/internal/todo"
	"github.com/roach88/todosync/internal/viewcache"
)

type fixture struct {
	faults *testutil.FaultStore
	cache  *viewcache.Cache
	themes *localstore.ThemeFile
}

func newFixture(t *testing.T, texts ...string) (*fixture, Model) {
	t.Helper()
	st := testutil.OpenStore(t)
	ctx := context.Background()
	for _, text := range texts {
		_, err := st.Create(ctx, text)
		require.NoError(t, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	faults := testutil.NewFaultStore(st)
	cache := viewcache.New(syncclient.New(faults, syncclient.WithLogger(logger)), viewcache.WithLogger(logger))
	t.Cleanup(cache.Close)

	f := &fixture{faults: faults, cache: cache, themes: localstore.NewThemeFile(t.TempDir())}
	m := New(ctx, cache, f.themes)
	m = run(t, m, m.refresh())
	return f, m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(keyMsg(k))
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// run executes an operation command and feeds its result back.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	_, ok := msg.(opDoneMsg)
	require.True(t, ok, "expected opDoneMsg, got %T", msg)
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_LoadsOnRefresh(t *testing.T) {
	_, m := newFixture(t, "Walk dog", "Buy milk")

	require.Len(t, m.snap.Items, 2)
	assert.Equal(t, viewcache.Ready, m.snap.State)
	view := m.View()
	assert.Contains(t, view, "Buy milk")
	assert.Contains(t, view, "Walk dog")
	assert.Less(t, strings.Index(view, "Buy milk"), strings.Index(view, "Walk dog"), "newest first")
}

func TestModel_EmptyList(t *testing.T) {
	_, m := newFixture(t)
	assert.Contains(t, m.View(), "Nothing to do.")
}

func TestModel_AddTodo(t *testing.T) {
	_, m := newFixture(t)

	m, _ = press(t, m, "a")
	require.True(t, m.adding)
	m, _ = press(t, m, "Buy milk")
	assert.Equal(t, "Buy milk", m.input.Value())

	m, cmd := press(t, m, "enter")
	assert.False(t, m.adding)
	assert.Empty(t, m.input.Value())
	m = run(t, m, cmd)

	require.Len(t, m.snap.Items, 1)
	assert.Equal(t, "Buy milk", m.snap.Items[0].Text)
	assert.Empty(t, m.status)
}

func TestModel_AddEmptyShowsValidation(t *testing.T) {
	f, m := newFixture(t)

	m, _ = press(t, m, "a")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)

	assert.Equal(t, todo.KindValidationFailed.Message(), m.status)
	assert.Contains(t, m.View(), "Todo text must be 1-200 characters")
	assert.Equal(t, 0, f.faults.CallCount(testutil.OpCreate))
}

func TestModel_AddCancel(t *testing.T) {
	_, m := newFixture(t)

	m, _ = press(t, m, "a")
	m, _ = press(t, m, "q")
	assert.Equal(t, "q", m.input.Value(), "q types while adding")
	m, cmd := press(t, m, "esc")
	assert.Nil(t, cmd)
	assert.False(t, m.adding)
	assert.Empty(t, m.input.Value())
}

func TestModel_ToggleAndDelete(t *testing.T) {
	_, m := newFixture(t, "a", "b")

	m, cmd := press(t, m, " ")
	m = run(t, m, cmd)
	assert.True(t, m.snap.Items[0].Completed)

	m, _ = press(t, m, "down")
	assert.Equal(t, 1, m.cursor)
	m, cmd = press(t, m, "d")
	m = run(t, m, cmd)

	require.Len(t, m.snap.Items, 1)
	assert.Equal(t, "b", m.snap.Items[0].Text)
	assert.Equal(t, 0, m.cursor, "cursor clamps after delete")
}

func TestModel_ToggleFailureShowsMessage(t *testing.T) {
	f, m := newFixture(t, "a")
	f.faults.FailNext(testutil.OpSetCompleted, errors.New("connection reset"))

	m, cmd := press(t, m, "x")
	m = run(t, m, cmd)

	assert.False(t, m.snap.Items[0].Completed, "rolled back")
	assert.Equal(t, "Failed to toggle todo", m.status)

	// The next success clears the message.
	m, cmd = press(t, m, "x")
	m = run(t, m, cmd)
	assert.Empty(t, m.status)
}

func TestModel_CursorBounds(t *testing.T) {
	_, m := newFixture(t, "a", "b")

	m, _ = press(t, m, "up")
	assert.Equal(t, 0, m.cursor)
	m, _ = press(t, m, "j")
	m, _ = press(t, m, "j")
	assert.Equal(t, 1, m.cursor)
	m, _ = press(t, m, "k")
	assert.Equal(t, 0, m.cursor)
}

func TestModel_NoSelectionNoCommand(t *testing.T) {
	_, m := newFixture(t)

	_, cmd := press(t, m, " ")
	assert.Nil(t, cmd)
	_, cmd = press(t, m, "d")
	assert.Nil(t, cmd)
}

func TestModel_ThemeSwitchPersists(t *testing.T) {
	f, m := newFixture(t)
	assert.Equal(t, localstore.ThemeDark, m.theme)

	m, _ = press(t, m, "t")
	assert.Equal(t, localstore.ThemeLight, m.theme)
	assert.Equal(t, localstore.ThemeLight, f.themes.Load())

	m2 := New(context.Background(), f.cache, f.themes)
	assert.Equal(t, localstore.ThemeLight, m2.theme)

	m, _ = press(t, m, "t")
	assert.Equal(t, localstore.ThemeDark, f.themes.Load())
}

func TestModel_Quit(t *testing.T) {
	_, m := newFixture(t)

	_, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	m, _ = press(t, m, "a")
	_, cmd = press(t, m, "ctrl+c")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModel_HelpToggle(t *testing.T) {
	_, m := newFixture(t)
	m, _ = press(t, m, "?")
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "refresh")
}

func TestWaitForChange(t *testing.T) {
	f, m := newFixture(t)

	// The refresh in newFixture left a pending signal.
	assert.Equal(t, changedMsg{}, waitForChange(f.cache.Changes())())

	_, cmd := m.Update(changedMsg{})
	require.NotNil(t, cmd)

	f.cache.Close()
	assert.Equal(t, closedMsg{}, waitForChange(f.cache.Changes())())
}
