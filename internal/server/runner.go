// Package server wires the pipeline together and manages the daemon
// lifecycle.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/vmunix/animarr/internal/config"
	"github.com/vmunix/animarr/internal/events"
	"github.com/vmunix/animarr/internal/hashing"
	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/metadata"
	"github.com/vmunix/animarr/internal/migrations"
	"github.com/vmunix/animarr/internal/relocation"
	"github.com/vmunix/animarr/internal/resolution"
	"github.com/vmunix/animarr/internal/scheduler"
	"github.com/vmunix/animarr/internal/watchguard"
	"github.com/vmunix/animarr/pkg/animeta"
)

// Components are the wired pipeline engines and their shared collaborators.
type Components struct {
	Store      *library.Store
	Bus        *events.Bus
	Guard      *watchguard.Registry
	Metadata   *metadata.Service
	Hashing    *hashing.Engine
	HashReg    *hashing.Registry
	Resolution *resolution.Engine
	ReleaseReg *resolution.Registry
	Relocation *relocation.Engine
	RelocReg   *relocation.Registry
	Scheduler  *scheduler.Worker
}

// Runner owns the daemon lifecycle: instance lock, database, pipeline wiring
// and the scheduler worker.
type Runner struct {
	cfg *config.Config
	log *slog.Logger
}

// NewRunner creates a runner for the given configuration.
func NewRunner(cfg *config.Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, log: log}
}

// OpenDatabase opens the sqlite database and applies the schema.
func OpenDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// Build wires every pipeline component against the given database. The
// returned bus must be closed by the caller.
func Build(db *sql.DB, cfg *config.Config, log *slog.Logger) (*Components, error) {
	if log == nil {
		log = slog.Default()
	}
	store := library.NewStore(db)
	if err := seedFolders(store, cfg.Folders); err != nil {
		return nil, err
	}

	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, log.With("component", "bus"))
	guard := watchguard.New()

	remote := animeta.New(cfg.Metadata.RemoteURL, cfg.Metadata.APIKey,
		animeta.WithLogger(log.With("component", "animeta")))
	meta := metadata.NewService(remote, metadata.NewCache(db), log.With("component", "metadata"))

	worker := scheduler.NewWorker(scheduler.Handlers{
		AnimeRefresh: func(ctx context.Context, animeID int64) error {
			_, err := meta.RefreshAnime(ctx, animeID)
			return err
		},
		GroupFetch: func(ctx context.Context, groupID int64, source string) error {
			_, err := meta.Group(ctx, groupID, source)
			return err
		},
		StatsRecompute: func(ctx context.Context, animeID int64) error {
			return recomputeStats(ctx, store, meta, animeID)
		},
		ExternalListSync: func(_ context.Context, videoID int64, add bool) error {
			log.Info("external list sync", "video_id", videoID, "add", add)
			return nil
		},
	}, 0, log)

	hashReg := hashing.NewRegistry(store)
	hashReg.Register("core", hashing.NewCoreProvider())
	if err := hashReg.Load(); err != nil {
		return nil, err
	}
	hashEngine := hashing.NewEngine(store, hashReg, bus, guard, hashing.Config{
		Parallel:             cfg.Hashing.Parallel,
		AutoDeleteDuplicates: cfg.Hashing.AutoDeleteDuplicates,
		EnabledTypes:         cfg.Hashing.EnabledTypes,
	}, log)

	releaseReg := resolution.NewRegistry(store, bus)
	if err := releaseReg.Load(); err != nil {
		return nil, err
	}
	resEngine := resolution.NewEngine(store, releaseReg, meta, worker, bus, resolution.Config{
		Parallel:            cfg.Resolution.Parallel,
		InheritWatchStatus:  cfg.Resolution.InheritWatchStatus,
		FreshnessWindow:     cfg.FreshnessWindow(),
		ExternalListEnabled: cfg.Resolution.ExternalList.Enabled,
	}, log)

	relocReg := relocation.NewRegistry(store, bus)
	relocReg.Register("core", relocation.NewTemplateProvider(log))
	if err := relocReg.Load(); err != nil {
		return nil, err
	}
	patterns, err := compilePatterns(cfg.Relocation.CleanupExcludePaths)
	if err != nil {
		return nil, err
	}
	relocEngine := relocation.NewEngine(store, relocReg, meta, bus, guard, relocation.StatfsChecker{}, relocation.Config{
		MoveEnabled:            cfg.Relocation.MoveEnabled,
		RenameEnabled:          cfg.Relocation.RenameEnabled,
		RelocateInDestination:  cfg.Relocation.RelocateInDestination,
		DeleteEmptyDirs:        cfg.Relocation.DeleteEmptyDirs,
		SkipFreeSpaceCheck:     cfg.Relocation.SkipFreeSpaceCheck,
		CleanupExcludePatterns: patterns,
	}, log)

	if cfg.Relocation.TriggerOnReleaseSave {
		resEngine.SetRelocator(relocEngine)
	}

	return &Components{
		Store:      store,
		Bus:        bus,
		Guard:      guard,
		Metadata:   meta,
		Hashing:    hashEngine,
		HashReg:    hashReg,
		Resolution: resEngine,
		ReleaseReg: releaseReg,
		Relocation: relocEngine,
		RelocReg:   relocReg,
		Scheduler:  worker,
	}, nil
}

// Run acquires the instance lock and runs the daemon until the context is
// cancelled.
func (r *Runner) Run(ctx context.Context) error {
	lock := flock.New(r.cfg.Server.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance holds %s", r.cfg.Server.LockFile)
	}
	defer func() { _ = lock.Unlock() }()

	db, err := OpenDatabase(r.cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	components, err := Build(db, r.cfg, r.log)
	if err != nil {
		return err
	}
	defer func() { _ = components.Bus.Close() }()

	r.log.Info("daemon started", "database", r.cfg.Database.Path)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return components.Scheduler.Run(ctx)
	})
	return g.Wait()
}

func statsSettingKey(animeID int64) string {
	return fmt.Sprintf("stats.anime.%d", animeID)
}

// recomputeStats aggregates per-episode file presence for the anime and
// persists the rollup as a settings document. Watched fields stay zero; there
// is no local watched-state source yet.
func recomputeStats(ctx context.Context, store *library.Store, meta *metadata.Service, animeID int64) error {
	anime, err := meta.Anime(ctx, animeID)
	if err != nil {
		return err
	}

	states := make([]metadata.EpisodeWatchState, 0, len(anime.Episodes))
	for _, ep := range anime.Episodes {
		state := metadata.EpisodeWatchState{EpisodeID: ep.ID, AiredAt: ep.AiredAt}
		release, err := store.GetReleaseByEpisode(ep.ID)
		if err != nil && !errors.Is(err, library.ErrNotFound) {
			return err
		}
		if release != nil {
			video, err := store.GetVideoByED2K(release.ED2K)
			if err != nil && !errors.Is(err, library.ErrNotFound) {
				return err
			}
			if video != nil {
				locations, err := store.ListLocations(video.ID)
				if err != nil {
					return err
				}
				state.HasFile = len(locations) > 0
				state.FileCount = len(locations)
			}
		}
		states = append(states, state)
	}

	stats, err := metadata.RollupWatchedStats(ctx, states)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return store.SetSetting(statsSettingKey(animeID), doc)
}

// seedFolders registers configured managed folders that are not yet known.
func seedFolders(store *library.Store, folders []config.FolderConfig) error {
	existing, err := store.ListFolders()
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, f := range existing {
		known[f.Path] = true
	}
	for _, fc := range folders {
		if known[fc.Path] {
			continue
		}
		f := &library.ManagedFolder{Name: fc.Name, Path: fc.Path, DropType: library.DropType(fc.DropType)}
		if err := store.AddFolder(f); err != nil {
			return fmt.Errorf("seed folder %q: %w", fc.Name, err)
		}
	}
	return nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("cleanup exclude pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
