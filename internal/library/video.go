package library

import (
	"fmt"
	"time"
)

func addVideo(q querier, v *Video) error {
	now := time.Now()
	result, err := q.Exec(`
		INSERT INTO videos (ed2k, size_bytes, ignored, imported_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ED2K, v.SizeBytes, v.Ignored, v.ImportedAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	v.ID = id
	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

// AddVideo inserts a new video. Sets ID, CreatedAt and UpdatedAt on the struct.
// Returns ErrDuplicate if a video with the same ED2K hash already exists.
func (s *Store) AddVideo(v *Video) error { return addVideo(s.db, v) }

// AddVideo inserts a new video within a transaction.
func (t *Tx) AddVideo(v *Video) error { return addVideo(t.tx, v) }

func getVideo(q querier, id int64) (*Video, error) {
	v := &Video{}
	err := q.QueryRow(`
		SELECT id, ed2k, size_bytes, ignored, imported_at, created_at, updated_at
		FROM videos WHERE id = ?`, id,
	).Scan(&v.ID, &v.ED2K, &v.SizeBytes, &v.Ignored, &v.ImportedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get video %d: %w", id, mapSQLiteError(err))
	}
	return v, nil
}

// GetVideo retrieves a video by ID. Returns ErrNotFound if it does not exist.
func (s *Store) GetVideo(id int64) (*Video, error) { return getVideo(s.db, id) }

// GetVideo retrieves a video by ID within a transaction.
func (t *Tx) GetVideo(id int64) (*Video, error) { return getVideo(t.tx, id) }

func getVideoByED2K(q querier, ed2k string) (*Video, error) {
	v := &Video{}
	err := q.QueryRow(`
		SELECT id, ed2k, size_bytes, ignored, imported_at, created_at, updated_at
		FROM videos WHERE ed2k = ?`, ed2k,
	).Scan(&v.ID, &v.ED2K, &v.SizeBytes, &v.Ignored, &v.ImportedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get video by hash: %w", mapSQLiteError(err))
	}
	return v, nil
}

// GetVideoByED2K retrieves the video with the given canonical hash.
// Returns ErrNotFound if no such video exists.
func (s *Store) GetVideoByED2K(ed2k string) (*Video, error) { return getVideoByED2K(s.db, ed2k) }

// GetVideoByED2K retrieves a video by canonical hash within a transaction.
func (t *Tx) GetVideoByED2K(ed2k string) (*Video, error) { return getVideoByED2K(t.tx, ed2k) }

func updateVideo(q querier, v *Video) error {
	now := time.Now()
	result, err := q.Exec(`
		UPDATE videos SET ed2k = ?, size_bytes = ?, ignored = ?, imported_at = ?, updated_at = ?
		WHERE id = ?`,
		v.ED2K, v.SizeBytes, v.Ignored, v.ImportedAt, now, v.ID,
	)
	if err != nil {
		return fmt.Errorf("update video %d: %w", v.ID, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update video %d: %w", v.ID, ErrNotFound)
	}
	v.UpdatedAt = now
	return nil
}

// UpdateVideo updates an existing video. Returns ErrNotFound if it does not exist.
func (s *Store) UpdateVideo(v *Video) error { return updateVideo(s.db, v) }

// UpdateVideo updates an existing video within a transaction.
func (t *Tx) UpdateVideo(v *Video) error { return updateVideo(t.tx, v) }

func deleteVideo(q querier, id int64) error {
	_, err := q.Exec("DELETE FROM videos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete video %d: %w", id, mapSQLiteError(err))
	}
	return nil
}

// DeleteVideo removes a video by ID, cascading to locations and digests.
// This operation is idempotent - no error is returned if the video does not exist.
func (s *Store) DeleteVideo(id int64) error { return deleteVideo(s.db, id) }

// DeleteVideo removes a video by ID within a transaction.
func (t *Tx) DeleteVideo(id int64) error { return deleteVideo(t.tx, id) }

func addLocation(q querier, l *VideoFileLocation) error {
	now := time.Now()
	result, err := q.Exec(`
		INSERT INTO video_locations (video_id, folder_id, relative_path, added_at)
		VALUES (?, ?, ?, ?)`,
		l.VideoID, l.FolderID, l.RelativePath, now,
	)
	if err != nil {
		return fmt.Errorf("insert location: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	l.ID = id
	l.AddedAt = now
	return nil
}

// AddLocation inserts a new file location. Sets ID and AddedAt on the struct.
// Returns ErrDuplicate if (folder, relative path) is already taken.
func (s *Store) AddLocation(l *VideoFileLocation) error { return addLocation(s.db, l) }

// AddLocation inserts a new file location within a transaction.
func (t *Tx) AddLocation(l *VideoFileLocation) error { return addLocation(t.tx, l) }

func getLocation(q querier, id int64) (*VideoFileLocation, error) {
	l := &VideoFileLocation{}
	err := q.QueryRow(`
		SELECT id, video_id, folder_id, relative_path, added_at
		FROM video_locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.VideoID, &l.FolderID, &l.RelativePath, &l.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("get location %d: %w", id, mapSQLiteError(err))
	}
	return l, nil
}

// GetLocation retrieves a file location by ID.
func (s *Store) GetLocation(id int64) (*VideoFileLocation, error) { return getLocation(s.db, id) }

// GetLocation retrieves a file location by ID within a transaction.
func (t *Tx) GetLocation(id int64) (*VideoFileLocation, error) { return getLocation(t.tx, id) }

func getLocationByPath(q querier, folderID int64, relPath string) (*VideoFileLocation, error) {
	l := &VideoFileLocation{}
	err := q.QueryRow(`
		SELECT id, video_id, folder_id, relative_path, added_at
		FROM video_locations WHERE folder_id = ? AND relative_path = ?`,
		folderID, relPath,
	).Scan(&l.ID, &l.VideoID, &l.FolderID, &l.RelativePath, &l.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("get location %d:%s: %w", folderID, relPath, mapSQLiteError(err))
	}
	return l, nil
}

// GetLocationByPath retrieves the location at (folder, relative path).
// Returns ErrNotFound if no file is known there.
func (s *Store) GetLocationByPath(folderID int64, relPath string) (*VideoFileLocation, error) {
	return getLocationByPath(s.db, folderID, relPath)
}

// GetLocationByPath retrieves a location by placement within a transaction.
func (t *Tx) GetLocationByPath(folderID int64, relPath string) (*VideoFileLocation, error) {
	return getLocationByPath(t.tx, folderID, relPath)
}

func listLocations(q querier, videoID int64) ([]*VideoFileLocation, error) {
	rows, err := q.Query(`
		SELECT id, video_id, folder_id, relative_path, added_at
		FROM video_locations WHERE video_id = ?
		ORDER BY added_at, folder_id, relative_path`, videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*VideoFileLocation
	for rows.Next() {
		l := &VideoFileLocation{}
		if err := rows.Scan(&l.ID, &l.VideoID, &l.FolderID, &l.RelativePath, &l.AddedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		results = append(results, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return results, nil
}

// ListLocations returns all locations of a video, oldest first.
func (s *Store) ListLocations(videoID int64) ([]*VideoFileLocation, error) {
	return listLocations(s.db, videoID)
}

// ListLocations returns all locations of a video within a transaction.
func (t *Tx) ListLocations(videoID int64) ([]*VideoFileLocation, error) {
	return listLocations(t.tx, videoID)
}

func updateLocation(q querier, l *VideoFileLocation) error {
	result, err := q.Exec(`
		UPDATE video_locations SET video_id = ?, folder_id = ?, relative_path = ?
		WHERE id = ?`,
		l.VideoID, l.FolderID, l.RelativePath, l.ID,
	)
	if err != nil {
		return fmt.Errorf("update location %d: %w", l.ID, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update location %d: %w", l.ID, ErrNotFound)
	}
	return nil
}

// UpdateLocation updates an existing file location.
func (s *Store) UpdateLocation(l *VideoFileLocation) error { return updateLocation(s.db, l) }

// UpdateLocation updates a file location within a transaction.
func (t *Tx) UpdateLocation(l *VideoFileLocation) error { return updateLocation(t.tx, l) }

func deleteLocation(q querier, id int64) error {
	_, err := q.Exec("DELETE FROM video_locations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete location %d: %w", id, mapSQLiteError(err))
	}
	return nil
}

// DeleteLocation removes a file location by ID. Idempotent.
// Callers are responsible for deleting the video when its last location goes
// away; see Store.DeleteLocationCascade.
func (s *Store) DeleteLocation(id int64) error { return deleteLocation(s.db, id) }

// DeleteLocation removes a file location within a transaction.
func (t *Tx) DeleteLocation(id int64) error { return deleteLocation(t.tx, id) }

// DeleteLocationCascade removes a location and, if it was the last location of
// its video, the now-orphaned video as well. Returns whether the video was
// deleted.
func (s *Store) DeleteLocationCascade(id int64) (bool, error) {
	tx, err := s.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	loc, err := tx.GetLocation(id)
	if err != nil {
		return false, err
	}
	if err := tx.DeleteLocation(id); err != nil {
		return false, err
	}
	remaining, err := tx.ListLocations(loc.VideoID)
	if err != nil {
		return false, err
	}
	videoDeleted := false
	if len(remaining) == 0 {
		if err := tx.DeleteVideo(loc.VideoID); err != nil {
			return false, err
		}
		videoDeleted = true
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return videoDeleted, nil
}

func listDigests(q querier, videoID int64) ([]HashDigest, error) {
	rows, err := q.Query(`
		SELECT id, video_id, type, value, metadata
		FROM hash_digests WHERE video_id = ? ORDER BY id`, videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("list digests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []HashDigest
	for rows.Next() {
		var d HashDigest
		if err := rows.Scan(&d.ID, &d.VideoID, &d.Type, &d.Value, &d.Metadata); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate digests: %w", err)
	}
	return results, nil
}

// ListDigests returns all hash digests of a video in insertion order.
func (s *Store) ListDigests(videoID int64) ([]HashDigest, error) { return listDigests(s.db, videoID) }

// ListDigests returns all hash digests within a transaction.
func (t *Tx) ListDigests(videoID int64) ([]HashDigest, error) { return listDigests(t.tx, videoID) }

func upsertDigest(q querier, d *HashDigest) error {
	result, err := q.Exec(`
		INSERT INTO hash_digests (video_id, type, value, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(video_id, type) DO UPDATE SET value = excluded.value, metadata = excluded.metadata`,
		d.VideoID, d.Type, d.Value, d.Metadata,
	)
	if err != nil {
		return fmt.Errorf("upsert digest %s: %w", d.Type, mapSQLiteError(err))
	}
	if id, err := result.LastInsertId(); err == nil {
		d.ID = id
	}
	return nil
}

// UpsertDigest inserts or replaces the digest of one type for a video.
func (s *Store) UpsertDigest(d *HashDigest) error { return upsertDigest(s.db, d) }

// UpsertDigest inserts or replaces a digest within a transaction.
func (t *Tx) UpsertDigest(d *HashDigest) error { return upsertDigest(t.tx, d) }

func deleteDigest(q querier, videoID int64, hashType string) error {
	_, err := q.Exec("DELETE FROM hash_digests WHERE video_id = ? AND type = ?", videoID, hashType)
	if err != nil {
		return fmt.Errorf("delete digest %s: %w", hashType, mapSQLiteError(err))
	}
	return nil
}

// DeleteDigest removes the digest of one type for a video. Idempotent.
func (s *Store) DeleteDigest(videoID int64, hashType string) error {
	return deleteDigest(s.db, videoID, hashType)
}

// DeleteDigest removes a digest within a transaction.
func (t *Tx) DeleteDigest(videoID int64, hashType string) error {
	return deleteDigest(t.tx, videoID, hashType)
}
