package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/segment"
)

// Entry is one saved statement.
type Entry struct {
	ID        int64     `json:"id" yaml:"id"`
	Statement string    `json:"statement" yaml:"statement"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// AddHistory saves stmt as the newest entry, replacing any entry with the
// same normalized key, and trims the history to its cap.
func (s *SQLiteStore) AddHistory(ctx context.Context, stmt string) error {
	if s.db == nil {
		return errNotOpened
	}
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return nil
	}
	key := NormalizeKey(stmt)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE norm_key = ?`, key); err != nil {
			return fmt.Errorf("failed to remove duplicates: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history (statement, norm_key, created_at) VALUES (?, ?, ?)`,
			stmt, key, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("failed to save history: %w", err)
		}
		return s.trim(ctx, tx)
	})
}

// History returns the saved statements, newest first.
func (s *SQLiteStore) History(ctx context.Context) ([]Entry, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, statement, created_at FROM history ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Statement, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Statements returns the saved statement texts, newest first.
func (s *SQLiteStore) Statements(ctx context.Context) ([]string, error) {
	entries, err := s.History(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Statement
	}
	return out, nil
}

// ClearHistory removes every entry.
func (s *SQLiteStore) ClearHistory(ctx context.Context) error {
	if s.db == nil {
		return errNotOpened
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// ReplaceHistory replaces the history with the statements of text, split on
// unquoted semicolons. The first statement becomes the newest entry. It
// returns the number of entries stored.
func (s *SQLiteStore) ReplaceHistory(ctx context.Context, text string) (int, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return s.replace(ctx, segment.Texts(segment.SplitStatements(text)))
}

// ImportLegacy replaces the history from an exported blob: a JSON array of
// statements, a single JSON string, or semicolon-separated statements.
func (s *SQLiteStore) ImportLegacy(ctx context.Context, raw string) (int, error) {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return s.replace(ctx, cleanStatements(list))
	}
	var single string
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return s.replace(ctx, cleanStatements([]string{single}))
	}
	s.logger.Debug("history blob is not JSON, splitting on semicolons")
	return s.ReplaceHistory(ctx, raw)
}

// DedupeHistory removes older entries whose normalized key repeats a newer
// one and returns how many were removed.
func (s *SQLiteStore) DedupeHistory(ctx context.Context) (int, error) {
	entries, err := s.History(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(entries))
	var dupes []int64
	for _, e := range entries {
		key := NormalizeKey(e.Statement)
		if seen[key] {
			dupes = append(dupes, e.ID)
			continue
		}
		seen[key] = true
	}
	if len(dupes) == 0 {
		return 0, nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range dupes {
			if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to remove duplicate: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("history deduplicated", slog.Int("removed", len(dupes)))
	return len(dupes), nil
}

func (s *SQLiteStore) replace(ctx context.Context, stmts []string) (int, error) {
	if s.db == nil {
		return 0, errNotOpened
	}
	if len(stmts) > s.maxEntries {
		stmts = stmts[:s.maxEntries]
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM history`); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		now := time.Now().UTC()
		// insert oldest first so the first statement gets the highest id
		for i := len(stmts) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO history (statement, norm_key, created_at) VALUES (?, ?, ?)`,
				stmts[i], NormalizeKey(stmts[i]), now,
			); err != nil {
				return fmt.Errorf("failed to save history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stmts), nil
}

func (s *SQLiteStore) trim(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)`,
		s.maxEntries)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// cleanStatements trims entries, drops one trailing semicolon and removes
// blanks.
func cleanStatements(list []string) []string {
	out := make([]string, 0, len(list))
	for _, stmt := range list {
		stmt = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt), ";"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// EditText renders statements for editing as a whole: each statement
// terminated by a semicolon, separated by a blank line.
func EditText(stmts []string) string {
	parts := make([]string, len(stmts))
	for i, stmt := range stmts {
		if !strings.HasSuffix(stmt, ";") {
			stmt += ";"
		}
		parts[i] = stmt
	}
	return strings.Join(parts, "\n\n")
}
