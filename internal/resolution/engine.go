package resolution

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vmunix/animarr/internal/events"
	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/metadata"
	"github.com/vmunix/animarr/internal/providers"
	"github.com/vmunix/animarr/internal/scheduler"
)

// Config holds the engine's behavior switches.
type Config struct {
	// Parallel races all providers instead of trying them in priority order.
	Parallel bool

	// InheritWatchStatus propagates watched-state from sibling files of the
	// same episode after a save.
	InheritWatchStatus bool

	// FreshnessWindow bounds how old anime metadata may be before a save
	// schedules a refresh.
	FreshnessWindow time.Duration

	// ExternalListEnabled turns on external tracking-list synchronization.
	ExternalListEnabled bool
}

// Relocator triggers placement after a successful save. Optional.
type Relocator interface {
	AutoRelocate(ctx context.Context, video *library.Video)
}

// WatchPropagator copies watched-state between files of the same episode.
// Optional.
type WatchPropagator interface {
	PropagateWatchState(ctx context.Context, video *library.Video, episodeIDs []int64) error
}

// Engine resolves and persists release bindings.
type Engine struct {
	store    *library.Store
	registry *Registry
	meta     *metadata.Service
	sched    scheduler.Scheduler
	bus      *events.Bus
	cfg      Config
	log      *slog.Logger

	relocator Relocator       // may be nil
	watch     WatchPropagator // may be nil
}

// NewEngine creates a resolution engine.
func NewEngine(store *library.Store, registry *Registry, meta *metadata.Service, sched scheduler.Scheduler, bus *events.Bus, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if sched == nil {
		sched = scheduler.Noop{}
	}
	return &Engine{
		store:    store,
		registry: registry,
		meta:     meta,
		sched:    sched,
		bus:      bus,
		cfg:      cfg,
		log:      log.With("component", "resolution"),
	}
}

// SetRelocator installs the optional post-save relocation trigger.
func (e *Engine) SetRelocator(r Relocator) { e.relocator = r }

// SetWatchPropagator installs the optional watched-state propagation hook.
func (e *Engine) SetWatchPropagator(w WatchPropagator) { e.watch = w }

// FindRelease searches the enabled providers for the video's release. With
// saveResult the winning release is validated and persisted before returning.
// A match attempt audit record is always written, found or not. The
// search-completed event fires on every exit path and carries the error when
// the search failed, so observers can tell true absence from failure.
func (e *Engine) FindRelease(ctx context.Context, video *library.Video, saveResult, addToExternalList bool) (result *library.ReleaseInfo, retErr error) {
	enabled := e.registry.Enabled()
	names := make([]string, len(enabled))
	for i, p := range enabled {
		names[i] = p.Info.Name
	}

	attempt := &library.ReleaseMatchAttempt{
		AttemptID: uuid.NewString(),
		ED2K:      video.ED2K,
		SizeBytes: video.SizeBytes,
		Providers: names,
		StartedAt: time.Now(),
	}

	if e.bus != nil {
		_ = e.bus.Publish(ctx, &events.ReleaseSearchStarted{
			BaseEvent: events.NewBaseEvent(events.EventReleaseSearchStarted, events.EntityVideo, video.ID),
			VideoID:   video.ID,
			Providers: names,
		})
	}
	defer func() {
		ev := &events.ReleaseSearchCompleted{
			BaseEvent: events.NewBaseEvent(events.EventReleaseSearchCompleted, events.EntityVideo, video.ID),
			VideoID:   video.ID,
			Found:     result != nil,
		}
		if result != nil {
			ev.Provider = result.Provider
		}
		if retErr != nil {
			ev.Error = retErr.Error()
		}
		if e.bus != nil {
			_ = e.bus.Publish(ctx, ev)
		}
	}()

	var release *library.ReleaseInfo
	var winner string
	var searchErr error
	if e.cfg.Parallel {
		release, winner, searchErr = e.race(ctx, enabled, video)
	} else {
		release, winner, searchErr = e.sequential(ctx, enabled, video)
	}

	if release == nil {
		// Record the miss before reporting any provider failure.
		e.recordAttempt(attempt, "")
		if searchErr != nil {
			return nil, searchErr
		}
		e.log.Info("no release found", "video_id", video.ID, "attempt_id", attempt.AttemptID)
		return nil, nil
	}

	attempt.MatchedProvider = winner
	e.log.Info("release found",
		"video_id", video.ID,
		"provider", winner,
		"xrefs", len(release.CrossRefs),
		"attempt_id", attempt.AttemptID)

	if !saveResult {
		e.recordAttempt(attempt, winner)
		return release, nil
	}

	saved, err := e.SaveRelease(ctx, video, release, attempt, addToExternalList)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// sequential tries providers strictly in priority order and accepts the first
// non-empty result.
func (e *Engine) sequential(ctx context.Context, enabled []providers.Registered[Provider], video *library.Video) (*library.ReleaseInfo, string, error) {
	var errs []error
	for _, reg := range enabled {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		rel, err := reg.Provider.Search(ctx, video)
		if err != nil {
			e.log.Warn("provider search failed", "provider", reg.Info.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		if rel != nil && len(rel.CrossRefs) > 0 {
			return rel, reg.Info.Name, nil
		}
	}
	return nil, "", errors.Join(errs...)
}

// race launches every provider concurrently, each under its own cancellation
// scope. A non-empty result beats the current winner only if it comes from a
// strictly higher-priority provider; accepting a winner cancels every
// still-running provider of equal or lower priority. The final winner is
// therefore the highest-priority provider that produced anything, regardless
// of completion order.
func (e *Engine) race(ctx context.Context, enabled []providers.Registered[Provider], video *library.Video) (*library.ReleaseInfo, string, error) {
	if len(enabled) == 0 {
		return nil, "", nil
	}

	cancels := make([]context.CancelFunc, len(enabled))
	ctxs := make([]context.Context, len(enabled))
	for i := range enabled {
		ctxs[i], cancels[i] = context.WithCancel(ctx)
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	var mu sync.Mutex
	winnerIdx := len(enabled)
	var winnerRel *library.ReleaseInfo
	var errs []error

	var wg sync.WaitGroup
	for i, reg := range enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := reg.Provider.Search(ctxs[i], video)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					e.log.Warn("provider search failed", "provider", reg.Info.Name, "error", err)
					errs = append(errs, err)
				}
				return
			}
			if rel == nil || len(rel.CrossRefs) == 0 {
				return
			}
			if i >= winnerIdx {
				return
			}
			winnerIdx = i
			winnerRel = rel
			for j := i + 1; j < len(enabled); j++ {
				cancels[j]()
			}
		}()
	}
	wg.Wait()

	if winnerRel == nil {
		// The collector drops context.Canceled because losing providers are
		// cancelled on purpose. When the parent context itself is done, that
		// cancellation must surface instead of reading as a clean miss.
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		return nil, "", errors.Join(errs...)
	}
	return winnerRel, enabled[winnerIdx].Info.Name, nil
}

// recordAttempt persists the audit record, closing it at the current time.
func (e *Engine) recordAttempt(attempt *library.ReleaseMatchAttempt, matched string) {
	attempt.MatchedProvider = matched
	now := time.Now()
	attempt.EndedAt = &now
	if err := e.store.AddMatchAttempt(attempt); err != nil {
		e.log.Warn("failed to record match attempt", "attempt_id", attempt.AttemptID, "error", err)
	}
}
