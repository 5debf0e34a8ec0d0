package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/todosync/internal/config"
)

func TestTUICommand_QuitsOnQ(t *testing.T) {
	e := newCLIEnv(t, "local")
	e.addJSON(t, "Shown in list")

	cmd := newRootCommand(&RootOptions{Dir: e.dir, LookupEnv: e.lookup})
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("q"))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tui", "--log-file", filepath.Join(e.dir, "tui.log")})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.FileExists(t, filepath.Join(e.dir, "tui.log"))
}

func TestTUICommand_CanceledContext(t *testing.T) {
	e := newCLIEnv(t, "local")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newRootCommand(&RootOptions{Dir: e.dir, LookupEnv: e.lookup})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tui"})

	assert.NoError(t, cmd.ExecuteContext(ctx))
}

func TestTUICommand_InvalidConfig(t *testing.T) {
	e := newCLIEnv(t, "bogus")

	_, err := e.run(t, "tui")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOptimisticCreate_FollowsBackend(t *testing.T) {
	tests := []struct {
		backend config.Backend
		want    bool
	}{
		{config.BackendLocal, true},
		{config.BackendSQLite, false},
		{config.BackendMongo, false},
		{config.BackendRemote, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			cfg := config.Default()
			cfg.Backend = tt.backend
			assert.Equal(t, tt.want, optimisticCreate(cfg))
		})
	}
}

func TestTUICommand_RejectsOptimisticFlag(t *testing.T) {
	e := newCLIEnv(t, "remote")

	_, err := e.run(t, "tui", "--optimistic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag: --optimistic")
}
