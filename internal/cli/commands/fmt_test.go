package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapquery/internal/cli/testutil"
	"github.com/leapstack-labs/leapquery/pkg/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	unformattedSQL = "select a, b from t where x=1 and y=2\n"
	formattedSQL   = "SELECT a, b\n  FROM t\n  WHERE x=1\n      AND y=2;\n"
)

func TestFmtCommand_Stdin(t *testing.T) {
	testutil.LoadTestConfig(t, "", nil)

	out, _, err := executeCommand(t, NewFmtCommand(), unformattedSQL)
	require.NoError(t, err)
	assert.Equal(t, formattedSQL, out)
}

func TestFmtCommand_At(t *testing.T) {
	testutil.LoadTestConfig(t, "", nil)

	out, _, err := executeCommand(t, NewFmtCommand(), "select 1;\nselect a, b from t;\n", "--at", "12")
	require.NoError(t, err)
	assert.Equal(t, "select 1;\nSELECT a, b\n  FROM t;\n", out)
}

func TestFmtCommand_Range(t *testing.T) {
	testutil.LoadTestConfig(t, "", nil)

	out, _, err := executeCommand(t, NewFmtCommand(), "select 1;\nselect a, b from t;\n", "--range", "0:5")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;\nselect a, b from t;\n", out)
}

func TestFmtCommand_SavedWidth(t *testing.T) {
	testutil.LoadTestConfig(t, "", map[string]string{"FORMAT_MAX_WIDTH": "40"})

	in := "select customer_id, customer_name, customer_email, created_at from customers"
	out, _, err := executeCommand(t, NewFmtCommand(), in)
	require.NoError(t, err)
	assert.Equal(t, format.New(format.Options{MaxWidth: 40}).Format(in), out)
}

func TestFmtCommand_WriteAndCheck(t *testing.T) {
	testutil.LoadTestConfig(t, "", nil)

	require.NoError(t, writeFile("a.sql", unformattedSQL))
	require.NoError(t, writeFile("b.sql", formattedSQL))

	out, _, err := executeCommand(t, NewFmtCommand(), "", "--check", "a.sql", "b.sql")
	require.EqualError(t, err, "1 file(s) not formatted")
	assert.Equal(t, "a.sql\n", out)

	_, _, err = executeCommand(t, NewFmtCommand(), "", "-w", "a.sql", "b.sql")
	require.NoError(t, err)

	for _, name := range []string{"a.sql", "b.sql"} {
		content, err := os.ReadFile(name)
		require.NoError(t, err)
		assert.Equal(t, formattedSQL, string(content), name)
	}

	_, _, err = executeCommand(t, NewFmtCommand(), "", "--check", "a.sql", "b.sql")
	assert.NoError(t, err)
}

func TestFmtCommand_MultipleFilesToStdout(t *testing.T) {
	testutil.LoadTestConfig(t, "", nil)

	require.NoError(t, writeFile("a.sql", "select 1"))
	require.NoError(t, writeFile("b.sql", "select 2"))

	out, _, err := executeCommand(t, NewFmtCommand(), "", "a.sql", "b.sql")
	require.NoError(t, err)
	assert.Equal(t, "-- a.sql\nSELECT 1;-- b.sql\nSELECT 2;", out)

	_, _, err = executeCommand(t, NewFmtCommand(), "", "a.sql", "missing.sql")
	assert.Error(t, err)
}

func TestFmtCommand_InvalidFlags(t *testing.T) {
	testutil.LoadTestConfig(t, "", nil)

	tests := []struct {
		name string
		args []string
	}{
		{"at and range", []string{"--at", "1", "--range", "0:1"}},
		{"write without files", []string{"-w"}},
		{"watch without write", []string{"--watch", "a.sql"}},
		{"bad range", []string{"--range", "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, NewFmtCommand(), "select 1", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in         string
		start, end int
		wantErr    bool
	}{
		{"0:10", 0, 10, false},
		{" 3 : 7 ", 3, 7, false},
		{"5:5", 5, 5, false},
		{"7:3", 0, 0, true},
		{"-1:3", 0, 0, true},
		{"a:3", 0, 0, true},
		{"3:b", 0, 0, true},
		{"10", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			start, end, err := parseRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestWatchAndFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.sql")
	require.NoError(t, writeFile(path, formattedSQL))

	tr := testutil.NewTestRenderer()
	// the debounce timer may log after the test returns
	cmdCtx := &CommandContext{Cfg: getConfig(), Logger: slog.New(slog.DiscardHandler), Renderer: tr.Renderer}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchAndFormat(ctx, cmdCtx, []string{path}, format.New(format.DefaultOptions()), &FmtOptions{At: -1, Write: true})
	}()

	// Give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, writeFile(path, unformattedSQL))

	assert.Eventually(t, func() bool {
		content, err := os.ReadFile(path)
		return err == nil && string(content) == formattedSQL
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
