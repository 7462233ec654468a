package library

import (
	"fmt"
)

// AddPipe persists a relocation pipe. Sets ID on the struct.
// If the pipe is marked default, any previous default is cleared first.
func (s *Store) AddPipe(p *RelocationPipe) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if p.Default {
		if _, err := tx.tx.Exec("UPDATE relocation_pipes SET is_default = 0"); err != nil {
			return fmt.Errorf("clear default pipe: %w", err)
		}
	}
	result, err := tx.tx.Exec(`
		INSERT INTO relocation_pipes (name, provider_id, config, is_default)
		VALUES (?, ?, ?, ?)`,
		p.Name, p.ProviderID, p.Config, p.Default,
	)
	if err != nil {
		return fmt.Errorf("insert pipe: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	p.ID = id
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func getPipe(q querier, query string, args ...any) (*RelocationPipe, error) {
	p := &RelocationPipe{}
	err := q.QueryRow(query, args...).Scan(&p.ID, &p.Name, &p.ProviderID, &p.Config, &p.Default)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return p, nil
}

// GetPipe retrieves a pipe by ID.
func (s *Store) GetPipe(id int64) (*RelocationPipe, error) {
	p, err := getPipe(s.db, "SELECT id, name, provider_id, config, is_default FROM relocation_pipes WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get pipe %d: %w", id, err)
	}
	return p, nil
}

// GetPipeByName retrieves a pipe by name.
func (s *Store) GetPipeByName(name string) (*RelocationPipe, error) {
	p, err := getPipe(s.db, "SELECT id, name, provider_id, config, is_default FROM relocation_pipes WHERE name = ?", name)
	if err != nil {
		return nil, fmt.Errorf("get pipe %q: %w", name, err)
	}
	return p, nil
}

// GetDefaultPipe returns the pipe marked default, or ErrNotFound.
func (s *Store) GetDefaultPipe() (*RelocationPipe, error) {
	p, err := getPipe(s.db, "SELECT id, name, provider_id, config, is_default FROM relocation_pipes WHERE is_default = 1")
	if err != nil {
		return nil, fmt.Errorf("get default pipe: %w", err)
	}
	return p, nil
}

// ListPipes returns all persisted pipes.
func (s *Store) ListPipes() ([]*RelocationPipe, error) {
	rows, err := s.db.Query("SELECT id, name, provider_id, config, is_default FROM relocation_pipes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list pipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*RelocationPipe
	for rows.Next() {
		p := &RelocationPipe{}
		if err := rows.Scan(&p.ID, &p.Name, &p.ProviderID, &p.Config, &p.Default); err != nil {
			return nil, fmt.Errorf("scan pipe: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipes: %w", err)
	}
	return results, nil
}

// SetDefaultPipe marks the given pipe as default, clearing any previous one.
func (s *Store) SetDefaultPipe(id int64) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.tx.Exec("UPDATE relocation_pipes SET is_default = 0"); err != nil {
		return fmt.Errorf("clear default pipe: %w", err)
	}
	result, err := tx.tx.Exec("UPDATE relocation_pipes SET is_default = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("set default pipe: %w", mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("set default pipe %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// DeletePipe removes a pipe by ID. Idempotent.
func (s *Store) DeletePipe(id int64) error {
	_, err := s.db.Exec("DELETE FROM relocation_pipes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete pipe %d: %w", id, mapSQLiteError(err))
	}
	return nil
}
