package relocation

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/metadata"
	"github.com/vmunix/animarr/internal/migrations"
	"github.com/vmunix/animarr/internal/watchguard"
	"github.com/vmunix/animarr/pkg/animeta"
)

// fixedSpace is a SpaceChecker reporting a constant free byte count.
type fixedSpace int64

func (f fixedSpace) Free(string) (int64, error) { return int64(f), nil }

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
	return nil, errors.New("unknown episode")
}

func (f *fakeRemote) GetAnime(_ context.Context, id int64) (*animeta.AnimeInfo, error) {
	if a, ok := f.animes[id]; ok {
		return a, nil
	}
	return nil, errors.New("unknown anime")
}

func (f *fakeRemote) GetGroup(_ context.Context, id int64, _ string) (*animeta.GroupInfo, error) {
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return nil, errors.New("unknown group")
}

type relocEnv struct {
	engine   *Engine
	store    *library.Store
	registry *Registry
	remote   *fakeRemote
	source   *library.ManagedFolder
	dest     *library.ManagedFolder
	provider string // template provider ID
}

func setupReloc(t *testing.T, cfg Config, space SpaceChecker) *relocEnv {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err)

	store := library.NewStore(db)
	source := &library.ManagedFolder{Name: "incoming", Path: t.TempDir(), DropType: library.DropSource}
	dest := &library.ManagedFolder{Name: "anime", Path: t.TempDir(), DropType: library.DropDestination}
	require.NoError(t, store.AddFolder(source))
	require.NoError(t, store.AddFolder(dest))

	registry := NewRegistry(store, nil)
	info := registry.Register("core", NewTemplateProvider(nil))
	require.NoError(t, registry.Load())

	remote := &fakeRemote{
		available: true,
		episodes:  make(map[int64]*animeta.EpisodeInfo),
		animes:    make(map[int64]*animeta.AnimeInfo),
		groups:    make(map[int64]*animeta.GroupInfo),
	}
	meta := metadata.NewService(remote, metadata.NewCache(db), nil)

	engine := NewEngine(store, registry, meta, nil, watchguard.New(), space, cfg, nil)
	return &relocEnv{
		engine:   engine,
		store:    store,
		registry: registry,
		remote:   remote,
		source:   source,
		dest:     dest,
		provider: info.ID,
	}
}

// addFile persists a video+location pair and creates the physical file.
func (env *relocEnv) addFile(t *testing.T, folder *library.ManagedFolder, rel, ed2k string, content []byte) (*library.Video, *library.VideoFileLocation) {
	t.Helper()
	video := &library.Video{ED2K: ed2k, SizeBytes: int64(len(content))}
	require.NoError(t, env.store.AddVideo(video))

	loc := &library.VideoFileLocation{VideoID: video.ID, FolderID: folder.ID, RelativePath: rel}
	require.NoError(t, env.store.AddLocation(loc))

	abs := library.AbsolutePath(folder, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, content, 0o644))
	return video, loc
}

func (env *relocEnv) addPipe(t *testing.T, config string) *library.RelocationPipe {
	t.Helper()
	pipe := &library.RelocationPipe{
		Name:       "default",
		ProviderID: env.provider,
		Config:     []byte(config),
		Default:    true,
	}
	require.NoError(t, env.store.AddPipe(pipe))
	return pipe
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
