package commands

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapquery/internal/cli/config"
	"github.com/leapstack-labs/leapquery/internal/cli/testutil"
	"github.com/leapstack-labs/leapquery/internal/result"
	"github.com/leapstack-labs/leapquery/internal/state"
	itestutil "github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/leapstack-labs/leapquery/pkg/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	set *result.Set
	err error
	got []string
}

func (f *fakeSubmitter) Submit(_ context.Context, stmt string) (*result.Set, error) {
	f.got = append(f.got, stmt)
	if f.err != nil {
		return nil, f.err
	}
	return f.set, nil
}

func newTestSession(t *testing.T, sub submitter) (*replSession, *testutil.TestRenderer) {
	t.Helper()
	store, err := state.OpenAndMigrate(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tr := testutil.NewTestRenderer()
	cmdCtx := &CommandContext{
		Cfg:      &config.Config{Output: "csv", PageSize: 25},
		Logger:   itestutil.NewTestLogger(t),
		Renderer: tr.Renderer,
	}
	return newREPLSession(context.Background(), cmdCtx, sub, store, tr.Out), tr
}

func sampleSet() *result.Set {
	return &result.Set{
		Columns: []result.Column{{Name: "A"}, {Name: "B", Type: "INTEGER"}},
		Rows:    [][]any{{"x", json.Number("1")}, {"y z", json.Number("2")}},
	}
}

func TestREPL_AccumulatesUntilTerminator(t *testing.T) {
	sub := &fakeSubmitter{set: sampleSet()}
	sess, tr := newTestSession(t, sub)
	ctx := context.Background()

	require.NoError(t, sess.handleLine(ctx, "select a"))
	assert.Empty(t, sub.got)
	assert.NotZero(t, sess.pending.Len())

	require.NoError(t, sess.handleLine(ctx, "from t; select ';'"))
	assert.Equal(t, []string{"select a\nfrom t"}, sub.got)

	require.NoError(t, sess.handleLine(ctx, ";"))
	assert.Equal(t, []string{"select a\nfrom t", "select ';'"}, sub.got)
	assert.Zero(t, sess.pending.Len())

	assert.Equal(t, "A,B\nx,1\ny z,2\n\nA,B\nx,1\ny z,2\n\n", tr.Output())

	stmts, err := sess.store.Statements(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"select ';'", "select a\nfrom t"}, stmts)
}

func TestREPL_DotCommandOnlyAtStatementStart(t *testing.T) {
	sub := &fakeSubmitter{set: sampleSet()}
	sess, _ := newTestSession(t, sub)
	ctx := context.Background()

	require.NoError(t, sess.handleLine(ctx, "select a"))
	require.NoError(t, sess.handleLine(ctx, ".5 as b;"))
	assert.Equal(t, []string{"select a\n.5 as b"}, sub.got)
}

func TestREPL_FailedStatement(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("boom")}
	sess, tr := newTestSession(t, sub)
	ctx := context.Background()

	require.NoError(t, sess.handleLine(ctx, "select 1;"))
	testutil.AssertContains(t, tr.ErrorOutput(), "Error: boom")

	stmts, err := sess.store.Statements(ctx)
	require.NoError(t, err)
	assert.Empty(t, stmts)
	assert.Empty(t, sess.session)
}

func TestREPL_Width(t *testing.T) {
	sess, tr := newTestSession(t, &fakeSubmitter{set: sampleSet()})
	ctx := context.Background()

	require.NoError(t, sess.handleLine(ctx, ".width"))
	testutil.AssertContains(t, tr.Output(), "max width: 80")

	require.NoError(t, sess.handleLine(ctx, ".width 100"))
	assert.Equal(t, 100, sess.formatter.Options().MaxWidth)
	saved, err := sess.store.MaxWidth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, saved)

	err = sess.handleLine(ctx, ".width 10")
	require.Error(t, err)
	testutil.AssertContains(t, tr.ErrorOutput(), "at least 40")
	assert.Equal(t, 100, sess.formatter.Options().MaxWidth)
}

func TestREPL_Format(t *testing.T) {
	sess, tr := newTestSession(t, &fakeSubmitter{set: sampleSet()})
	ctx := context.Background()

	assert.Error(t, sess.handleLine(ctx, ".format"))

	require.NoError(t, sess.handleLine(ctx, "select a, b from t where x=1;"))
	tr.Reset()
	require.NoError(t, sess.handleLine(ctx, ".format"))
	assert.Equal(t, format.Format("select a, b from t where x=1")+"\n", tr.Output())
}

func TestREPL_HistoryCommands(t *testing.T) {
	sub := &fakeSubmitter{set: sampleSet()}
	sess, tr := newTestSession(t, sub)
	ctx := context.Background()

	require.NoError(t, sess.handleLine(ctx, "select 1;"))
	require.NoError(t, sess.handleLine(ctx, "select 2;"))
	require.NoError(t, sess.handleLine(ctx, "SELECT  1;"))
	tr.Reset()

	require.NoError(t, sess.handleLine(ctx, ".history"))
	assert.Equal(t, "  1 SELECT 1\n  2 select 2\n", tr.Output())

	tr.Reset()
	require.NoError(t, sess.handleLine(ctx, ".history 1"))
	assert.Equal(t, "  1 SELECT 1\n", tr.Output())

	require.NoError(t, sess.handleLine(ctx, ".recall 2"))
	assert.Equal(t, "select 2", sub.got[len(sub.got)-1])

	assert.Error(t, sess.handleLine(ctx, ".recall 9"))
	assert.Error(t, sess.handleLine(ctx, ".recall"))

	require.NoError(t, sess.handleLine(ctx, ".clear-history"))
	stmts, err := sess.store.Statements(ctx)
	require.NoError(t, err)
	assert.Empty(t, stmts)

	tr.Reset()
	require.NoError(t, sess.handleLine(ctx, ".history"))
	assert.Equal(t, "(history is empty)\n", tr.Output())
}

func TestREPL_Dedupe(t *testing.T) {
	sess, tr := newTestSession(t, &fakeSubmitter{set: sampleSet()})
	ctx := context.Background()

	_, err := sess.store.ReplaceHistory(ctx, "select 1; SELECT 1; select 2;")
	require.NoError(t, err)

	require.NoError(t, sess.handleLine(ctx, ".dedupe"))
	testutil.AssertContains(t, tr.Output(), "removed 1 duplicate entries")
}

func TestREPL_OpenAndSave(t *testing.T) {
	sub := &fakeSubmitter{set: sampleSet()}
	sess, tr := newTestSession(t, sub)
	ctx := context.Background()
	dir := t.TempDir()

	script := filepath.Join(dir, "script.sql")
	require.NoError(t, os.WriteFile(script, []byte("select 1;\n\nselect 'a;b'\n"), 0o600))

	require.NoError(t, sess.handleLine(ctx, ".open "+script))
	assert.Equal(t, []string{"select 1", "select 'a;b'"}, sub.got)

	require.NoError(t, sess.handleLine(ctx, ".save "+filepath.Join(dir, "session")))
	saved, err := os.ReadFile(filepath.Join(dir, "session.sql"))
	require.NoError(t, err)
	assert.Equal(t, "select 1;\n\nselect 'a;b';\n", string(saved))
	testutil.AssertContains(t, tr.Output(), "saved 2 statements")

	assert.Error(t, sess.handleLine(ctx, ".open "+filepath.Join(dir, "missing.sql")))
}

func TestREPL_SaveWithoutStatements(t *testing.T) {
	sess, _ := newTestSession(t, &fakeSubmitter{set: sampleSet()})
	assert.EqualError(t, sess.handleLine(context.Background(), ".save x.sql"), "no statements to save")
}

func TestREPL_Export(t *testing.T) {
	sess, tr := newTestSession(t, &fakeSubmitter{set: sampleSet()})
	ctx := context.Background()

	assert.EqualError(t, sess.handleLine(ctx, ".export"), "no result to export")

	require.NoError(t, sess.handleLine(ctx, "select a, b from t;"))
	tr.Reset()

	require.NoError(t, sess.handleLine(ctx, ".export"))
	assert.Equal(t, "A\tB\nx\t1\ny z\t2\n", tr.Output())

	tr.Reset()
	require.NoError(t, sess.handleLine(ctx, ".export pipe"))
	assert.Equal(t, "A|B\nx|1\ny z|2\n", tr.Output())

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, sess.handleLine(ctx, ".export comma "+path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A,B\nx,1\ny z,2\n", string(content))

	assert.Error(t, sess.handleLine(ctx, ".export colon"))
}

func TestREPL_Paging(t *testing.T) {
	set := &result.Set{Columns: []result.Column{{Name: "N", Type: "INTEGER"}}}
	for i := range 30 {
		set.Rows = append(set.Rows, []any{json.Number(itoa(i + 1))})
	}
	sess, tr := newTestSession(t, &fakeSubmitter{set: set})
	sess.cmdCtx.Cfg.Output = "table"
	ctx := context.Background()

	require.NoError(t, sess.handleLine(ctx, "select n from t;"))
	testutil.AssertContains(t, tr.Output(), "Showing 1 to 25 of 30 rows (page 1 of 2)")

	tr.Reset()
	require.NoError(t, sess.handleLine(ctx, ".page 2"))
	testutil.AssertContains(t, tr.Output(), "Showing 26 to 30 of 30 rows (page 2 of 2)")

	tr.Reset()
	require.NoError(t, sess.handleLine(ctx, ".perpage 12"))
	assert.Equal(t, 15, sess.perPage)
	testutil.AssertContains(t, tr.Output(), "Showing 1 to 15 of 30 rows (page 1 of 2)")

	tr.Reset()
	require.NoError(t, sess.handleLine(ctx, ".perpage"))
	assert.Equal(t, "rows per page: 15\n", tr.Output())

	assert.Error(t, sess.handleLine(ctx, ".page x"))
}

func TestREPL_QuitAndUnknown(t *testing.T) {
	sess, tr := newTestSession(t, &fakeSubmitter{set: sampleSet()})
	ctx := context.Background()

	assert.ErrorIs(t, sess.handleLine(ctx, ".quit"), errQuit)
	assert.ErrorIs(t, sess.handleLine(ctx, ".EXIT"), errQuit)
	assert.Empty(t, tr.ErrorOutput())

	assert.Error(t, sess.handleLine(ctx, ".tables"))
	testutil.AssertContains(t, tr.ErrorOutput(), "unknown command: .tables")

	tr.Reset()
	require.NoError(t, sess.handleLine(ctx, ".help"))
	testutil.AssertContains(t, tr.Output(), ".recall <n>")
}
