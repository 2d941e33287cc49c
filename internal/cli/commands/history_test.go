package commands

import (
	"context"
	"os/exec"
	"testing"

	"github.com/leapstack-labs/leapquery/internal/cli/testutil"
	"github.com/leapstack-labs/leapquery/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHistory(t *testing.T, path, text string) {
	t.Helper()
	store, err := state.OpenAndMigrate(path, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	_, err = store.ReplaceHistory(context.Background(), text)
	require.NoError(t, err)
}

func TestHistoryCommand_List(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, "", nil)

	out, _, err := executeCommand(t, NewHistoryCommand(), "", "list")
	require.NoError(t, err)
	assert.Equal(t, "(history is empty)\n", out)

	seedHistory(t, cfg.History.Path, "select 1;\nselect\n  2;")

	out, _, err = executeCommand(t, NewHistoryCommand(), "", "list")
	require.NoError(t, err)
	assert.Equal(t, "  1 select 1\n  2 select 2\n", out)

	out, _, err = executeCommand(t, NewHistoryCommand(), "", "list", "-n", "1")
	require.NoError(t, err)
	assert.Equal(t, "  1 select 1\n", out)
}

func TestHistoryCommand_Export(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, "", nil)

	out, _, err := executeCommand(t, NewHistoryCommand(), "", "export")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	seedHistory(t, cfg.History.Path, "select 1; select 'a;b';")

	out, _, err = executeCommand(t, NewHistoryCommand(), "", "export")
	require.NoError(t, err)
	assert.Equal(t, "[\n  \"select 1\",\n  \"select 'a;b'\"\n]\n", out)

	out, _, err = executeCommand(t, NewHistoryCommand(), "", "export", "--format", "sql")
	require.NoError(t, err)
	assert.Equal(t, "select 1;\n\nselect 'a;b';\n", out)

	out, _, err = executeCommand(t, NewHistoryCommand(), "", "export", "--format", "yaml")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "statement: select 1\n")
	testutil.AssertContains(t, out, "select 'a;b'")
	testutil.AssertContains(t, out, "created_at:")

	_, _, err = executeCommand(t, NewHistoryCommand(), "", "export", "--format", "xml")
	assert.Error(t, err)
}

func TestHistoryCommand_ImportRoundTrip(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, "", nil)
	seedHistory(t, cfg.History.Path, "select 1; select 2;")

	exported, _, err := executeCommand(t, NewHistoryCommand(), "", "export")
	require.NoError(t, err)

	_, _, err = executeCommand(t, NewHistoryCommand(), "", "clear")
	require.NoError(t, err)
	assert.Empty(t, historyOf(t, cfg.History.Path))

	out, _, err := executeCommand(t, NewHistoryCommand(), exported, "import", "-")
	require.NoError(t, err)
	assert.Equal(t, "Imported 2 entries\n", out)
	assert.Equal(t, []string{"select 1", "select 2"}, historyOf(t, cfg.History.Path))
}

func TestHistoryCommand_ImportLegacyFile(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, "", nil)
	require.NoError(t, writeFile("history.txt", "select 1;select 2;"))

	_, _, err := executeCommand(t, NewHistoryCommand(), "", "import", "history.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"select 1", "select 2"}, historyOf(t, cfg.History.Path))

	_, _, err = executeCommand(t, NewHistoryCommand(), "", "import", "missing.txt")
	assert.Error(t, err)
}

func TestHistoryCommand_Dedupe(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, "", nil)
	seedHistory(t, cfg.History.Path, "select 1; SELECT   1; select 2;")

	out, _, err := executeCommand(t, NewHistoryCommand(), "", "dedupe")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 duplicate entries\n", out)
	assert.Equal(t, []string{"select 1", "select 2"}, historyOf(t, cfg.History.Path))
}

func TestHistoryCommand_Edit(t *testing.T) {
	if _, err := exec.LookPath("sed"); err != nil {
		t.Skip("sed not available")
	}
	cfg := testutil.LoadTestConfig(t, "", nil)
	seedHistory(t, cfg.History.Path, "select 1; select 2;")

	t.Setenv("VISUAL", "sed -i s/select/SELECT/")
	out, _, err := executeCommand(t, NewHistoryCommand(), "", "edit")
	require.NoError(t, err)
	assert.Equal(t, "History saved (2 entries)\n", out)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, historyOf(t, cfg.History.Path))
}

func TestEditorCommand(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "code --wait")
	assert.Equal(t, []string{"code", "--wait"}, editorCommand())

	t.Setenv("EDITOR", "")
	assert.Equal(t, []string{"vi"}, editorCommand())

	t.Setenv("VISUAL", "nano")
	assert.Equal(t, []string{"nano"}, editorCommand())
}
