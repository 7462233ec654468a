package library

import (
	"fmt"
	"path/filepath"
	"strings"
)

func addFolder(q querier, f *ManagedFolder) error {
	result, err := q.Exec(`
		INSERT INTO managed_folders (name, path, drop_type) VALUES (?, ?, ?)`,
		f.Name, filepath.Clean(f.Path), string(f.DropType),
	)
	if err != nil {
		return fmt.Errorf("insert managed folder: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	f.ID = id
	return nil
}

// AddFolder registers a managed folder. Sets ID on the struct.
func (s *Store) AddFolder(f *ManagedFolder) error { return addFolder(s.db, f) }

// AddFolder registers a managed folder within a transaction.
func (t *Tx) AddFolder(f *ManagedFolder) error { return addFolder(t.tx, f) }

func getFolder(q querier, id int64) (*ManagedFolder, error) {
	f := &ManagedFolder{}
	var dropType string
	err := q.QueryRow(`
		SELECT id, name, path, drop_type FROM managed_folders WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.Path, &dropType)
	if err != nil {
		return nil, fmt.Errorf("get managed folder %d: %w", id, mapSQLiteError(err))
	}
	f.DropType = DropType(dropType)
	return f, nil
}

// GetFolder retrieves a managed folder by ID.
func (s *Store) GetFolder(id int64) (*ManagedFolder, error) { return getFolder(s.db, id) }

// GetFolder retrieves a managed folder within a transaction.
func (t *Tx) GetFolder(id int64) (*ManagedFolder, error) { return getFolder(t.tx, id) }

func listFolders(q querier) ([]*ManagedFolder, error) {
	rows, err := q.Query("SELECT id, name, path, drop_type FROM managed_folders ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list managed folders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*ManagedFolder
	for rows.Next() {
		f := &ManagedFolder{}
		var dropType string
		if err := rows.Scan(&f.ID, &f.Name, &f.Path, &dropType); err != nil {
			return nil, fmt.Errorf("scan managed folder: %w", err)
		}
		f.DropType = DropType(dropType)
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate managed folders: %w", err)
	}
	return results, nil
}

// ListFolders returns all registered managed folders.
func (s *Store) ListFolders() ([]*ManagedFolder, error) { return listFolders(s.db) }

// ListFolders returns all managed folders within a transaction.
func (t *Tx) ListFolders() ([]*ManagedFolder, error) { return listFolders(t.tx) }

// ResolvePath maps an absolute path to the managed folder containing it and
// the folder-relative path (forward slashes, no leading separator). The
// longest matching folder root wins so nested folders resolve correctly.
// Returns ErrNotFound if no managed folder contains the path.
func (s *Store) ResolvePath(absPath string) (*ManagedFolder, string, error) {
	folders, err := s.ListFolders()
	if err != nil {
		return nil, "", err
	}
	clean := filepath.Clean(absPath)

	var best *ManagedFolder
	for _, f := range folders {
		root := filepath.Clean(f.Path)
		if clean == root || strings.HasPrefix(clean, root+string(filepath.Separator)) {
			if best == nil || len(f.Path) > len(best.Path) {
				best = f
			}
		}
	}
	if best == nil {
		return nil, "", fmt.Errorf("resolve %s: %w", absPath, ErrNotFound)
	}
	rel, err := filepath.Rel(filepath.Clean(best.Path), clean)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", absPath, err)
	}
	return best, NormalizeRelPath(rel), nil
}

// NormalizeRelPath converts a relative path to the stored form: forward-slash
// separated with no leading separator.
func NormalizeRelPath(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.ReplaceAll(rel, "\\", "/")
	return strings.TrimPrefix(rel, "/")
}

// AbsolutePath returns the on-disk path of a location within its folder.
func AbsolutePath(folder *ManagedFolder, relPath string) string {
	return filepath.Join(folder.Path, filepath.FromSlash(relPath))
}
