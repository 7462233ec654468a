package library

import (
	"fmt"
	"strings"
	"time"
)

func scanRelease(q querier, query string, args ...any) (*ReleaseInfo, error) {
	r := &ReleaseInfo{}
	var groupID *int64
	var groupSource, groupName, groupShort *string
	err := q.QueryRow(query, args...).Scan(
		&r.ID, &r.ED2K, &r.SizeBytes, &r.Provider, &r.URI, &r.Revision,
		&groupID, &groupSource, &groupName, &groupShort,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	if groupID != nil {
		r.Group = &GroupIdentity{ID: *groupID}
		if groupSource != nil {
			r.Group.Source = *groupSource
		}
		if groupName != nil {
			r.Group.Name = *groupName
		}
		if groupShort != nil {
			r.Group.ShortName = *groupShort
		}
	}
	return r, nil
}

const releaseColumns = `id, ed2k, size_bytes, provider, uri, revision,
	group_id, group_source, group_name, group_short_name, created_at, updated_at`

func getRelease(q querier, ed2k string, sizeBytes int64) (*ReleaseInfo, error) {
	r, err := scanRelease(q,
		"SELECT "+releaseColumns+" FROM releases WHERE ed2k = ? AND size_bytes = ?",
		ed2k, sizeBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("get release: %w", err)
	}
	xrefs, err := listCrossRefs(q, r.ID)
	if err != nil {
		return nil, err
	}
	r.CrossRefs = xrefs
	return r, nil
}

// GetRelease retrieves the release bound to (hash, size) with its
// cross-references. Returns ErrNotFound if no release is bound.
func (s *Store) GetRelease(ed2k string, sizeBytes int64) (*ReleaseInfo, error) {
	return getRelease(s.db, ed2k, sizeBytes)
}

// GetRelease retrieves a release within a transaction.
func (t *Tx) GetRelease(ed2k string, sizeBytes int64) (*ReleaseInfo, error) {
	return getRelease(t.tx, ed2k, sizeBytes)
}

func listCrossRefs(q querier, releaseID int64) ([]CrossReference, error) {
	rows, err := q.Query(`
		SELECT id, release_id, episode_id, anime_id, percent_start, percent_end
		FROM release_xrefs WHERE release_id = ? ORDER BY ord`, releaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list cross references: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []CrossReference
	for rows.Next() {
		var x CrossReference
		if err := rows.Scan(&x.ID, &x.ReleaseID, &x.EpisodeID, &x.AnimeID, &x.PercentStart, &x.PercentEnd); err != nil {
			return nil, fmt.Errorf("scan cross reference: %w", err)
		}
		results = append(results, x)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cross references: %w", err)
	}
	return results, nil
}

func addRelease(q querier, r *ReleaseInfo) error {
	now := time.Now()
	var groupID *int64
	var groupSource, groupName, groupShort *string
	if r.Group != nil {
		groupID = &r.Group.ID
		groupSource = &r.Group.Source
		groupName = &r.Group.Name
		groupShort = &r.Group.ShortName
	}
	result, err := q.Exec(`
		INSERT INTO releases (ed2k, size_bytes, provider, uri, revision,
			group_id, group_source, group_name, group_short_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ED2K, r.SizeBytes, r.Provider, r.URI, r.Revision,
		groupID, groupSource, groupName, groupShort, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert release: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now

	for i := range r.CrossRefs {
		x := &r.CrossRefs[i]
		x.ReleaseID = id
		res, err := q.Exec(`
			INSERT INTO release_xrefs (release_id, episode_id, anime_id, percent_start, percent_end, ord)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, x.EpisodeID, x.AnimeID, x.PercentStart, x.PercentEnd, i,
		)
		if err != nil {
			return fmt.Errorf("insert cross reference: %w", mapSQLiteError(err))
		}
		if xid, err := res.LastInsertId(); err == nil {
			x.ID = xid
		}
	}
	return nil
}

// AddRelease inserts a release and its cross-references.
// Returns ErrDuplicate if (hash, size) already has a release.
func (s *Store) AddRelease(r *ReleaseInfo) error { return addRelease(s.db, r) }

// AddRelease inserts a release within a transaction.
func (t *Tx) AddRelease(r *ReleaseInfo) error { return addRelease(t.tx, r) }

func deleteRelease(q querier, ed2k string, sizeBytes int64) error {
	_, err := q.Exec("DELETE FROM releases WHERE ed2k = ? AND size_bytes = ?", ed2k, sizeBytes)
	if err != nil {
		return fmt.Errorf("delete release: %w", mapSQLiteError(err))
	}
	return nil
}

// GetReleaseByEpisode returns the most recently updated release with a
// cross-reference to the given episode. Returns ErrNotFound if none exists.
func (s *Store) GetReleaseByEpisode(episodeID int64) (*ReleaseInfo, error) {
	r, err := scanRelease(s.db, `
		SELECT r.id, r.ed2k, r.size_bytes, r.provider, r.uri, r.revision,
			r.group_id, r.group_source, r.group_name, r.group_short_name, r.created_at, r.updated_at
		FROM releases r
		JOIN release_xrefs x ON x.release_id = r.id
		WHERE x.episode_id = ?
		ORDER BY r.updated_at DESC LIMIT 1`, episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("get release by episode %d: %w", episodeID, err)
	}
	xrefs, err := listCrossRefs(s.db, r.ID)
	if err != nil {
		return nil, err
	}
	r.CrossRefs = xrefs
	return r, nil
}

// DeleteRelease removes the release bound to (hash, size), cascading to its
// cross-references. Idempotent.
func (s *Store) DeleteRelease(ed2k string, sizeBytes int64) error {
	return deleteRelease(s.db, ed2k, sizeBytes)
}

// DeleteRelease removes a release within a transaction.
func (t *Tx) DeleteRelease(ed2k string, sizeBytes int64) error {
	return deleteRelease(t.tx, ed2k, sizeBytes)
}

func touchRelease(q querier, id int64) error {
	_, err := q.Exec("UPDATE releases SET updated_at = ? WHERE id = ?", time.Now(), id)
	if err != nil {
		return fmt.Errorf("touch release %d: %w", id, mapSQLiteError(err))
	}
	return nil
}

// TouchRelease bumps the last-updated timestamp of a release without changing
// its payload. Used when an identical release is re-confirmed.
func (s *Store) TouchRelease(id int64) error { return touchRelease(s.db, id) }

// TouchRelease bumps a release timestamp within a transaction.
func (t *Tx) TouchRelease(id int64) error { return touchRelease(t.tx, id) }

// GroupName is one (name, short name) pair observed on persisted releases.
type GroupName struct {
	Name      string
	ShortName string
	Count     int
}

// ListGroupNames returns the distinct display names recorded for a release
// group across all persisted releases, most frequent first. Used to borrow a
// valid name when a provider returned a placeholder.
func (s *Store) ListGroupNames(groupID int64, source string) ([]GroupName, error) {
	rows, err := s.db.Query(`
		SELECT group_name, group_short_name, COUNT(*) AS n
		FROM releases
		WHERE group_id = ? AND group_source = ? AND group_name IS NOT NULL AND group_name != ''
		GROUP BY group_name, group_short_name
		ORDER BY n DESC, group_name`,
		groupID, source,
	)
	if err != nil {
		return nil, fmt.Errorf("list group names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []GroupName
	for rows.Next() {
		var g GroupName
		if err := rows.Scan(&g.Name, &g.ShortName, &g.Count); err != nil {
			return nil, fmt.Errorf("scan group name: %w", err)
		}
		results = append(results, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group names: %w", err)
	}
	return results, nil
}

// ListReleasesByGroup returns all releases carrying the given group identity.
func (s *Store) ListReleasesByGroup(groupID int64, source string) ([]*ReleaseInfo, error) {
	rows, err := s.db.Query(
		"SELECT "+releaseColumns+" FROM releases WHERE group_id = ? AND group_source = ? ORDER BY id",
		groupID, source,
	)
	if err != nil {
		return nil, fmt.Errorf("list releases by group: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*ReleaseInfo
	for rows.Next() {
		r := &ReleaseInfo{}
		var gid *int64
		var gsrc, gname, gshort *string
		if err := rows.Scan(&r.ID, &r.ED2K, &r.SizeBytes, &r.Provider, &r.URI, &r.Revision,
			&gid, &gsrc, &gname, &gshort, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		if gid != nil {
			r.Group = &GroupIdentity{ID: *gid}
			if gsrc != nil {
				r.Group.Source = *gsrc
			}
			if gname != nil {
				r.Group.Name = *gname
			}
			if gshort != nil {
				r.Group.ShortName = *gshort
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate releases: %w", err)
	}
	return results, nil
}

// AddMatchAttempt records one resolution attempt. Sets ID on the struct.
func (s *Store) AddMatchAttempt(a *ReleaseMatchAttempt) error {
	var matched *string
	if a.MatchedProvider != "" {
		matched = &a.MatchedProvider
	}
	result, err := s.db.Exec(`
		INSERT INTO release_match_attempts (attempt_id, ed2k, size_bytes, providers, matched_provider, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.AttemptID, a.ED2K, a.SizeBytes, strings.Join(a.Providers, ","), matched, a.StartedAt, a.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match attempt: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	a.ID = id
	return nil
}

// ListMatchAttempts returns all recorded attempts for (hash, size), newest
// first. Used by back-off decisions elsewhere.
func (s *Store) ListMatchAttempts(ed2k string, sizeBytes int64) ([]*ReleaseMatchAttempt, error) {
	rows, err := s.db.Query(`
		SELECT id, attempt_id, ed2k, size_bytes, providers, matched_provider, started_at, ended_at
		FROM release_match_attempts WHERE ed2k = ? AND size_bytes = ?
		ORDER BY started_at DESC, id DESC`,
		ed2k, sizeBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("list match attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*ReleaseMatchAttempt
	for rows.Next() {
		a := &ReleaseMatchAttempt{}
		var providers string
		var matched *string
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.ED2K, &a.SizeBytes, &providers, &matched, &a.StartedAt, &a.EndedAt); err != nil {
			return nil, fmt.Errorf("scan match attempt: %w", err)
		}
		if providers != "" {
			a.Providers = strings.Split(providers, ",")
		}
		if matched != nil {
			a.MatchedProvider = *matched
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match attempts: %w", err)
	}
	return results, nil
}
