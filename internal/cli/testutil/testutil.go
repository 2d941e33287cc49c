// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapquery/internal/cli/config"
	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/internal/server"
)

// seedSQL populates the test endpoint database.
const seedSQL = `
CREATE TABLE customers (
	cusnum INTEGER PRIMARY KEY,
	lstnam VARCHAR(8) NOT NULL,
	city VARCHAR(6) NOT NULL,
	baldue DECIMAL(6,2)
);
INSERT INTO customers VALUES
	(938472, 'Henning', 'Dallas', 37.00),
	(839283, 'Jones', 'Clay', 100.00),
	(392859, 'Vine', 'Broton', 439.00);
`

// SetupTestEndpoint starts a query endpoint over an in-memory SQLite
// database holding a customers table. It returns the endpoint URL.
func SetupTestEndpoint(t *testing.T) string {
	t.Helper()

	db, err := server.OpenBackend(context.Background(), "sqlite", "", nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(context.Background(), seedSQL); err != nil {
		t.Fatalf("failed to seed database: %v", err)
	}

	srv := server.NewWithDB(db, server.Config{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts.URL + server.DefaultPath
}

// LoadTestConfig loads the configuration for a command test: endpoint,
// a history database in a temp dir and a working directory without a
// config file. Extra environment settings are applied before loading.
func LoadTestConfig(t *testing.T, endpoint string, env map[string]string) *config.Config {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvPrefix+"ENDPOINT", endpoint)
	t.Setenv(config.EnvPrefix+"HISTORY_PATH", filepath.Join(dir, "state.db"))
	for k, v := range env {
		t.Setenv(config.EnvPrefix+k, v)
	}

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a non-TTY renderer capturing its output.
func NewTestRenderer() *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, false),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}
