package metadata

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// rollupWorkers caps the data-parallel fan-out of watched-state aggregation.
const rollupWorkers = 4

// EpisodeWatchState is one episode's watch bookkeeping fed into a rollup.
type EpisodeWatchState struct {
	EpisodeID int64
	Watched   bool
	WatchedAt *time.Time
	AiredAt   *time.Time
	HasFile   bool
	FileCount int
}

// WatchedStats is the aggregate over one anime's episodes.
type WatchedStats struct {
	Episodes      int64
	WatchedCount  int64
	FileCount     int64
	MissingFiles  int64
	FirstWatched  *time.Time
	LastWatched   *time.Time
	LatestAirDate *time.Time
}

// RollupWatchedStats aggregates watch state across episodes with bounded
// parallelism. Counters use atomics; min/max/date accumulation happens under
// a single lock.
func RollupWatchedStats(ctx context.Context, episodes []EpisodeWatchState) (WatchedStats, error) {
	var stats WatchedStats
	var mu sync.Mutex

	sem := semaphore.NewWeighted(rollupWorkers)
	var wg sync.WaitGroup

	for i := range episodes {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return stats, err
		}
		wg.Add(1)
		go func(ep *EpisodeWatchState) {
			defer sem.Release(1)
			defer wg.Done()

			atomic.AddInt64(&stats.Episodes, 1)
			atomic.AddInt64(&stats.FileCount, int64(ep.FileCount))
			if ep.Watched {
				atomic.AddInt64(&stats.WatchedCount, 1)
			}
			if !ep.HasFile {
				atomic.AddInt64(&stats.MissingFiles, 1)
			}

			mu.Lock()
			if ep.WatchedAt != nil {
				if stats.FirstWatched == nil || ep.WatchedAt.Before(*stats.FirstWatched) {
					stats.FirstWatched = ep.WatchedAt
				}
				if stats.LastWatched == nil || ep.WatchedAt.After(*stats.LastWatched) {
					stats.LastWatched = ep.WatchedAt
				}
			}
			if ep.AiredAt != nil {
				if stats.LatestAirDate == nil || ep.AiredAt.After(*stats.LatestAirDate) {
					stats.LatestAirDate = ep.AiredAt
				}
			}
			mu.Unlock()
		}(&episodes[i])
	}

	wg.Wait()
	return stats, nil
}
