package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PrefLastSourceDir remembers the parent of the last sorted source directory.
const PrefLastSourceDir = "last_source_dir"

// GetPreference returns the stored value for key. ok is false when unset.
func (s *Store) GetPreference(ctx context.Context, key string) (value string, ok bool, err error) {
	ctx = ensureContext(ctx)
	err = s.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

// SetPreference stores value under key, replacing any previous value.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	err := s.exec(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}
