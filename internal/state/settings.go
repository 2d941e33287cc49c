package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/format"
)

const settingMaxWidth = "format.max_width"

// Setting returns a stored setting and whether it exists.
func (s *SQLiteStore) Setting(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, errNotOpened
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores a setting.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	if s.db == nil {
		return errNotOpened
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// MaxWidth returns the persisted format width, or zero when none was saved
// or the saved value is unusable.
func (s *SQLiteStore) MaxWidth(ctx context.Context) (int, error) {
	value, ok, err := s.Setting(ctx, settingMaxWidth)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < format.MinMaxWidth {
		return 0, nil
	}
	return n, nil
}

// SetMaxWidth persists the format width.
func (s *SQLiteStore) SetMaxWidth(ctx context.Context, n int) error {
	if n < format.MinMaxWidth {
		return fmt.Errorf("max width must be at least %d, got %d", format.MinMaxWidth, n)
	}
	return s.SetSetting(ctx, settingMaxWidth, strconv.Itoa(n))
}
