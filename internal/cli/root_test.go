package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "todo", cmd.Use)
	assert.Contains(t, cmd.Long, "TODO_*")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "ls", "add", "done", "toggle", "rm", "tui", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)

	backendFlag := cmd.PersistentFlags().Lookup("backend")
	require.NotNil(t, backendFlag)
	assert.Equal(t, "", backendFlag.DefValue)
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	addrFlag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, addrFlag)
	// empty means "use the configured address"
	assert.Equal(t, "", addrFlag.DefValue)
}

func TestDoneCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	doneCmd, _, err := cmd.Find([]string{"done"})
	require.NoError(t, err)

	undoFlag := doneCmd.Flags().Lookup("undo")
	require.NotNil(t, undoFlag)
	assert.Equal(t, "false", undoFlag.DefValue)
}

func TestTUICommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	tuiCmd, _, err := cmd.Find([]string{"tui"})
	require.NoError(t, err)

	assert.Nil(t, tuiCmd.Flags().Lookup("optimistic"), "optimistic create follows the backend")

	logFlag := tuiCmd.Flags().Lookup("log-file")
	require.NotNil(t, logFlag)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestCommandHelp(t *testing.T) {
	cmd := NewRootCommand()

	assert.Contains(t, cmd.Short, "todo")
	assert.Contains(t, cmd.Long, "SQLite")
	assert.Contains(t, cmd.Long, "MongoDB")
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "ls"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExecute_PrintsErrorOnce(t *testing.T) {
	e := newCLIEnv(t, "local")
	run := func(args ...string) (int, string, string) {
		cmd := newRootCommand(&RootOptions{Dir: e.dir, LookupEnv: e.lookup})
		var stdout, stderr bytes.Buffer
		cmd.SetOut(&stdout)
		cmd.SetErr(&stderr)
		cmd.SetArgs(args)
		code := Execute(context.Background(), cmd, &stderr)
		return code, stdout.String(), stderr.String()
	}

	code, stdout, stderr := run("toggle", "no-such-id")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "Error [NOT_FOUND]")
	assert.NotContains(t, stderr, "Error:", "operation failures are printed by the formatter only")

	code, stdout, stderr = run("--format", "yaml", "ls")
	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, stdout)
	assert.Equal(t, 1, strings.Count(stderr, "Error: invalid format"))

	code, _, stderr = run("ls")
	assert.Equal(t, ExitSuccess, code)
	assert.NotContains(t, stderr, "Error:")
}
