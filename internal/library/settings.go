package library

import (
	"fmt"
	"time"
)

// GetSetting returns the raw JSON document stored under key.
// The second return value is false if the key has never been written.
func (s *Store) GetSetting(key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if mapSQLiteError(err) == ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// SetSetting stores a raw JSON document under key, replacing any previous value.
func (s *Store) SetSetting(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, mapSQLiteError(err))
	}
	return nil
}
