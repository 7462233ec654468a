// Package scheduler defines the contract the pipeline uses to hand follow-on
// work to the job scheduler. The scheduler itself is an external collaborator;
// this package only carries the interface plus small implementations for the
// daemon and for tests.
package scheduler

import "sync"

// Priority orders scheduled work.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// Scheduler accepts deferred pipeline work. Implementations must be safe for
// concurrent use and must not block the caller.
type Scheduler interface {
	// ScheduleAnimeRefresh requests a metadata refresh for an anime.
	ScheduleAnimeRefresh(animeID int64, p Priority)

	// ScheduleGroupFetch requests a deferred release-group info fetch.
	ScheduleGroupFetch(groupID int64, source string)

	// ScheduleStatsRecompute requests a lightweight stats rollup for an anime.
	ScheduleStatsRecompute(animeID int64)

	// ScheduleExternalListSync requests adding (add=true) or removing a video
	// from the external tracking list.
	ScheduleExternalListSync(videoID int64, add bool)
}

// Noop discards all scheduled work.
type Noop struct{}

func (Noop) ScheduleAnimeRefresh(int64, Priority) {}
func (Noop) ScheduleGroupFetch(int64, string)     {}
func (Noop) ScheduleStatsRecompute(int64)         {}
func (Noop) ScheduleExternalListSync(int64, bool) {}

// Recorder captures scheduled work for assertions in tests.
type Recorder struct {
	mu sync.Mutex

	AnimeRefreshes  []AnimeRefresh
	GroupFetches    []GroupFetch
	StatsRecomputes []int64
	ListSyncs       []ListSync
}

type AnimeRefresh struct {
	AnimeID  int64
	Priority Priority
}

type GroupFetch struct {
	GroupID int64
	Source  string
}

type ListSync struct {
	VideoID int64
	Add     bool
}

func (r *Recorder) ScheduleAnimeRefresh(animeID int64, p Priority) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.AnimeRefreshes = append(r.AnimeRefreshes, AnimeRefresh{AnimeID: animeID, Priority: p})
}

func (r *Recorder) ScheduleGroupFetch(groupID int64, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.GroupFetches = append(r.GroupFetches, GroupFetch{GroupID: groupID, Source: source})
}

func (r *Recorder) ScheduleStatsRecompute(animeID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StatsRecomputes = append(r.StatsRecomputes, animeID)
}

func (r *Recorder) ScheduleExternalListSync(videoID int64, add bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ListSyncs = append(r.ListSyncs, ListSync{VideoID: videoID, Add: add})
}
