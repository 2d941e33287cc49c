package state

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenAndMigrate(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Close())
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	ctx := context.Background()

	store, err := OpenAndMigrate(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.AddHistory(ctx, "select 1"))
	require.NoError(t, store.Close())

	reopened, err := OpenAndMigrate(path, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	stmts, err := reopened.Statements(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"select 1"}, stmts)
	assert.Equal(t, path, reopened.Path())

	version, err := reopened.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	assert.ErrorIs(t, store.Migrate(), errNotOpened)
	assert.ErrorIs(t, store.AddHistory(ctx, "select 1"), errNotOpened)
	_, err := store.History(ctx)
	assert.ErrorIs(t, err, errNotOpened)
	_, _, err = store.Setting(ctx, "x")
	assert.ErrorIs(t, err, errNotOpened)
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"case and spacing", "SELECT  *\n FROM   T;", "select * from t"},
		{"literal kept verbatim", "select 'A  B' from T", "select 'A  B' from t"},
		{"double quoted kept", `select "MyCol" from T`, `select "MyCol" from t`},
		{"spacing after literal", "select 'x'   ,  B", "select 'x' , b"},
		{"trailing semicolon and space", "  select 1 ;  ", "select 1"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.input))
		})
	}
}

func TestSQLiteStore_AddHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddHistory(ctx, "select 1"))
	require.NoError(t, store.AddHistory(ctx, "select 2"))
	require.NoError(t, store.AddHistory(ctx, "SELECT   1;"))
	require.NoError(t, store.AddHistory(ctx, "   "))

	stmts, err := store.Statements(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT   1;", "select 2"}, stmts)
}

func TestSQLiteStore_HistoryCap(t *testing.T) {
	store := setupTestStore(t)
	store.SetMaxEntries(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AddHistory(ctx, fmt.Sprintf("select %d", i)))
	}

	stmts, err := store.Statements(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"select 4", "select 3", "select 2"}, stmts)

	store.SetMaxEntries(0)
	assert.Equal(t, DefaultMaxEntries, store.MaxEntries())
}

func TestSQLiteStore_ClearHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddHistory(ctx, "select 1"))
	require.NoError(t, store.ClearHistory(ctx))

	entries, err := store.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteStore_ReplaceHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddHistory(ctx, "select old"))

	n, err := store.ReplaceHistory(ctx, "select 1;\r\n\r\nselect ';' from t;\n\n;\nselect 3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stmts, err := store.Statements(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"select 1", "select ';' from t", "select 3"}, stmts)
	assert.Equal(t, "select 1;\n\nselect ';' from t;\n\nselect 3;", EditText(stmts))
}

func TestSQLiteStore_ImportLegacy(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"json array", `["select 1;", " ", "select 2"]`, []string{"select 1", "select 2"}},
		{"json string", `"select 9;"`, []string{"select 9"}},
		{"legacy blob", "select 1;select 2;", []string{"select 1", "select 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := context.Background()

			n, err := store.ImportLegacy(ctx, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)

			stmts, err := store.Statements(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmts)
		})
	}
}

func TestSQLiteStore_ImportLegacyLogsFallback(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	store, err := OpenAndMigrate(":memory:", logger)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.ImportLegacy(context.Background(), "select 1;")
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "history blob is not JSON")
}

func TestSQLiteStore_DedupeHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.ReplaceHistory(ctx, "select 1; SELECT  1; select 2; Select 1;")
	require.NoError(t, err)

	removed, err := store.DedupeHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	stmts, err := store.Statements(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"select 1", "select 2"}, stmts)

	removed, err = store.DedupeHistory(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSQLiteStore_Settings(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	width, err := store.MaxWidth(ctx)
	require.NoError(t, err)
	assert.Zero(t, width)

	require.NoError(t, store.SetMaxWidth(ctx, 100))
	require.NoError(t, store.SetMaxWidth(ctx, 120))
	width, err = store.MaxWidth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, width)

	assert.Error(t, store.SetMaxWidth(ctx, 20))

	require.NoError(t, store.SetSetting(ctx, settingMaxWidth, "garbage"))
	width, err = store.MaxWidth(ctx)
	require.NoError(t, err)
	assert.Zero(t, width)
}
