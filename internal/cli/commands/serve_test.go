package commands

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapquery/internal/cli/testutil"
	"github.com/leapstack-labs/leapquery/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInitScript(t *testing.T) {
	db, err := server.OpenBackend(context.Background(), "sqlite", "", nil)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	script := filepath.Join(t.TempDir(), "seed.sql")
	require.NoError(t, writeFile(script, "create table t (a text);\ninsert into t values ('x;y');\n\ninsert into t values ('z')"))

	n, err := runInitScript(context.Background(), db, script)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var count int
	require.NoError(t, db.QueryRow("select count(*) from t").Scan(&count))
	assert.Equal(t, 2, count)

	require.NoError(t, writeFile(script, "insert into t values ('ok');\ninsert into missing values (1);"))
	n, err = runInitScript(context.Background(), db, script)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init statement 2 failed")
	assert.Equal(t, 1, n)

	_, err = runInitScript(context.Background(), db, filepath.Join(t.TempDir(), "none.sql"))
	assert.Error(t, err)
}

func TestServeCommand_RunsUntilCancelled(t *testing.T) {
	testutil.LoadTestConfig(t, "", map[string]string{"SERVE_ADDR": "127.0.0.1:0"})
	require.NoError(t, writeFile("seed.sql", "create table t (a int); insert into t values (1);"))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	cmd := NewServeCommand()
	cmd.SetArgs([]string{"--init", "seed.sql"})
	out := testutil.NewTestRenderer()
	cmd.SetOut(out.Out)
	cmd.SetErr(out.ErrOut)

	require.NoError(t, cmd.ExecuteContext(ctx))
	testutil.AssertContains(t, out.Output(), "Serving sqlite on http://127.0.0.1:0/db2json")
}

func TestServeCommand_UnknownDriver(t *testing.T) {
	testutil.LoadTestConfig(t, "", map[string]string{"SERVE_DRIVER": "oracle"})

	_, _, err := executeCommand(t, NewServeCommand(), "")
	var unknown *server.UnknownBackendError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Name)
}
