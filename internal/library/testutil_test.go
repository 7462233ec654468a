package library

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/animarr/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err)
	return db
}

func insertTestVideo(t *testing.T, s *Store, ed2k string, size int64) *Video {
	t.Helper()
	v := &Video{ED2K: ed2k, SizeBytes: size}
	require.NoError(t, s.AddVideo(v))
	return v
}

func insertTestFolder(t *testing.T, s *Store, name, path string, dropType DropType) *ManagedFolder {
	t.Helper()
	f := &ManagedFolder{Name: name, Path: path, DropType: dropType}
	require.NoError(t, s.AddFolder(f))
	return f
}
