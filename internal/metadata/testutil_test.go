package metadata

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/animarr/internal/migrations"
	"github.com/vmunix/animarr/pkg/animeta"
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

// countingRemote tracks how often each fetch method runs.
type countingRemote struct {
	episodes map[int64]*animeta.EpisodeInfo
	animes   map[int64]*animeta.AnimeInfo
	groups   map[int64]*animeta.GroupInfo

	episodeCalls int
	animeCalls   int
	groupCalls   int
	down         bool
}

func newCountingRemote() *countingRemote {
	return &countingRemote{
		episodes: make(map[int64]*animeta.EpisodeInfo),
		animes:   make(map[int64]*animeta.AnimeInfo),
		groups:   make(map[int64]*animeta.GroupInfo),
	}
}

var errRemoteDown = errors.New("remote unavailable")

func (r *countingRemote) Available() bool { return !r.down }

func (r *countingRemote) GetEpisode(_ context.Context, id int64) (*animeta.EpisodeInfo, error) {
	r.episodeCalls++
	if r.down {
		return nil, errRemoteDown
	}
	if ep, ok := r.episodes[id]; ok {
		return ep, nil
	}
	return nil, errors.New("unknown episode")
}

func (r *countingRemote) GetAnime(_ context.Context, id int64) (*animeta.AnimeInfo, error) {
	r.animeCalls++
	if r.down {
		return nil, errRemoteDown
	}
	if a, ok := r.animes[id]; ok {
		return a, nil
	}
	return nil, errors.New("unknown anime")
}

func (r *countingRemote) GetGroup(_ context.Context, id int64, _ string) (*animeta.GroupInfo, error) {
	r.groupCalls++
	if r.down {
		return nil, errRemoteDown
	}
	if g, ok := r.groups[id]; ok {
		return g, nil
	}
	return nil, errors.New("unknown group")
}
