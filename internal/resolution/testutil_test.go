package resolution

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/metadata"
	"github.com/vmunix/animarr/internal/migrations"
	"github.com/vmunix/animarr/internal/scheduler"
	"github.com/vmunix/animarr/pkg/animeta"
)

var errRemoteDown = errors.New("remote metadata service unreachable")

// fakeRemote is a canned metadata.Remote.
type fakeRemote struct {
	available bool
	episodes  map[int64]*animeta.EpisodeInfo
	animes    map[int64]*animeta.AnimeInfo
	groups    map[int64]*animeta.GroupInfo
}

func (f *fakeRemote) Available() bool { return f.available }

func (f *fakeRemote) GetEpisode(_ context.Context, id int64) (*animeta.EpisodeInfo, error) {
	if ep, ok := f.episodes[id]; ok {
		return ep, nil
	}
	return nil, errRemoteDown
}

func (f *fakeRemote) GetAnime(_ context.Context, id int64) (*animeta.AnimeInfo, error) {
	if a, ok := f.animes[id]; ok {
		return a, nil
	}
	return nil, errRemoteDown
}

func (f *fakeRemote) GetGroup(_ context.Context, id int64, _ string) (*animeta.GroupInfo, error) {
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return nil, errRemoteDown
}

// stubProvider is a canned release provider with an optional artificial delay.
type stubProvider struct {
	name    string
	release *library.ReleaseInfo
	err     error
	delay   time.Duration

	// waitForCancel makes Search block until its context is canceled.
	waitForCancel bool
	canceled      chan struct{}
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Search(ctx context.Context, _ *library.Video) (*library.ReleaseInfo, error) {
	if p.waitForCancel {
		select {
		case <-ctx.Done():
			if p.canceled != nil {
				close(p.canceled)
			}
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return nil, errors.New("never canceled")
		}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.release == nil {
		return nil, nil
	}
	clone := *p.release
	clone.CrossRefs = append([]library.CrossReference(nil), p.release.CrossRefs...)
	if p.release.Group != nil {
		g := *p.release.Group
		clone.Group = &g
	}
	return &clone, nil
}

type testEnv struct {
	engine   *Engine
	store    *library.Store
	registry *Registry
	meta     *metadata.Service
	sched    *scheduler.Recorder
	remote   *fakeRemote
}

func setupEngine(t *testing.T, cfg Config, provs ...Provider) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err)

	store := library.NewStore(db)
	registry := NewRegistry(store, nil)
	for _, p := range provs {
		registry.Register("test", p)
	}

	remote := &fakeRemote{
		episodes: make(map[int64]*animeta.EpisodeInfo),
		animes:   make(map[int64]*animeta.AnimeInfo),
		groups:   make(map[int64]*animeta.GroupInfo),
	}
	meta := metadata.NewService(remote, metadata.NewCache(db), nil)
	sched := &scheduler.Recorder{}

	engine := NewEngine(store, registry, meta, sched, nil, cfg, nil)
	return &testEnv{
		engine:   engine,
		store:    store,
		registry: registry,
		meta:     meta,
		sched:    sched,
		remote:   remote,
	}
}

func (env *testEnv) addVideo(t *testing.T, ed2k string, size int64) *library.Video {
	t.Helper()
	v := &library.Video{ED2K: ed2k, SizeBytes: size}
	require.NoError(t, env.store.AddVideo(v))
	return v
}

func testReleaseInfo(episodeID, animeID int64) *library.ReleaseInfo {
	return &library.ReleaseInfo{
		Provider: "anidb",
		URI:      "https://anidb.net/file/100",
		Revision: 1,
		CrossRefs: []library.CrossReference{
			{EpisodeID: episodeID, AnimeID: animeID, PercentStart: 0, PercentEnd: 100},
		},
	}
}
