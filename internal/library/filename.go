package library

import (
	"fmt"
	"time"
)

// UpsertFilenameHash records (filename, size) -> canonical hash so a file can
// be re-identified by name without re-hashing.
func (s *Store) UpsertFilenameHash(filename string, sizeBytes int64, ed2k string) error {
	_, err := s.db.Exec(`
		INSERT INTO filename_hashes (filename, size_bytes, ed2k, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(filename, size_bytes) DO UPDATE SET ed2k = excluded.ed2k, updated_at = excluded.updated_at`,
		filename, sizeBytes, ed2k, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert filename hash: %w", mapSQLiteError(err))
	}
	return nil
}

// GetFilenameHash looks up the canonical hash recorded for (filename, size).
// Returns ErrNotFound if the pair was never seen.
func (s *Store) GetFilenameHash(filename string, sizeBytes int64) (string, error) {
	var ed2k string
	err := s.db.QueryRow(
		"SELECT ed2k FROM filename_hashes WHERE filename = ? AND size_bytes = ?",
		filename, sizeBytes,
	).Scan(&ed2k)
	if err != nil {
		return "", fmt.Errorf("get filename hash: %w", mapSQLiteError(err))
	}
	return ed2k, nil
}
