package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vmunix/animarr/internal/config"
	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/metadata"
	"github.com/vmunix/animarr/pkg/animeta"
)

type fakeRemote struct {
	animes map[int64]*animeta.AnimeInfo
}

func (f *fakeRemote) GetAnime(_ context.Context, id int64) (*animeta.AnimeInfo, error) {
	if a, ok := f.animes[id]; ok {
		return a, nil
	}
	return nil, animeta.ErrNotFound
}

func (f *fakeRemote) GetEpisode(_ context.Context, _ int64) (*animeta.EpisodeInfo, error) {
	return nil, animeta.ErrNotFound
}

func (f *fakeRemote) GetGroup(_ context.Context, _ int64, _ string) (*animeta.GroupInfo, error) {
	return nil, animeta.ErrNotFound
}

func (f *fakeRemote) Available() bool { return true }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Folders: []config.FolderConfig{
			{Name: "incoming", Path: t.TempDir(), DropType: "source"},
			{Name: "anime", Path: t.TempDir(), DropType: "destination"},
		},
		Hashing: config.HashingConfig{EnabledTypes: []string{"ED2K", "CRC32"}},
	}
}

func TestBuild_WiresComponents(t *testing.T) {
	db, err := OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	components, err := Build(db, testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = components.Bus.Close() })

	require.NotNil(t, components.Hashing)
	require.NotNil(t, components.Resolution)
	require.NotNil(t, components.Relocation)

	// The built-in providers are registered and enabled.
	require.Len(t, components.HashReg.Enabled(), 1)
	require.Len(t, components.RelocReg.List(), 1)
}

func TestBuild_SeedsFolders(t *testing.T) {
	db, err := OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := testConfig(t)
	components, err := Build(db, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = components.Bus.Close() })

	folders, err := components.Store.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 2)
	require.Equal(t, library.DropSource, folders[0].DropType)

	// Building again against the same database must not duplicate folders.
	again, err := Build(db, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Bus.Close() })

	folders, err = again.Store.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 2)
}

func TestRecomputeStats_PersistsRollup(t *testing.T) {
	db, err := OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := library.NewStore(db)
	remote := &fakeRemote{animes: map[int64]*animeta.AnimeInfo{
		10: {ID: 10, Title: "Mushishi", Complete: true, Episodes: []animeta.EpisodeInfo{
			{ID: 55, AnimeID: 10, Number: 1},
			{ID: 56, AnimeID: 10, Number: 2},
		}},
	}}
	meta := metadata.NewService(remote, metadata.NewCache(db), nil)

	// Episode 55 has a bound release with one file on disk; 56 has nothing.
	folder := &library.ManagedFolder{Name: "anime", Path: t.TempDir(), DropType: library.DropDestination}
	require.NoError(t, store.AddFolder(folder))
	video := &library.Video{ED2K: "aaaa", SizeBytes: 1000}
	require.NoError(t, store.AddVideo(video))
	require.NoError(t, store.AddLocation(&library.VideoFileLocation{
		VideoID: video.ID, FolderID: folder.ID, RelativePath: "Mushishi/Mushishi - 01.mkv",
	}))
	require.NoError(t, store.AddRelease(&library.ReleaseInfo{
		ED2K: "aaaa", SizeBytes: 1000, Provider: "test", Revision: 1,
		CrossRefs: []library.CrossReference{{EpisodeID: 55, AnimeID: 10, PercentStart: 0, PercentEnd: 100}},
	}))

	require.NoError(t, recomputeStats(context.Background(), store, meta, 10))

	doc, ok, err := store.GetSetting(statsSettingKey(10))
	require.NoError(t, err)
	require.True(t, ok, "rollup must be persisted, not just cached")

	var stats metadata.WatchedStats
	require.NoError(t, json.Unmarshal(doc, &stats))
	require.Equal(t, int64(2), stats.Episodes)
	require.Equal(t, int64(1), stats.FileCount)
	require.Equal(t, int64(1), stats.MissingFiles)
}

func TestScheduler_StartsAndStops(t *testing.T) {
	db, err := OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	components, err := Build(db, testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = components.Bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- components.Scheduler.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for scheduler to stop")
	}
}
