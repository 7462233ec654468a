package scheduler

import (
	"context"
	"log/slog"
)

type jobKind int

const (
	jobAnimeRefresh jobKind = iota
	jobGroupFetch
	jobStatsRecompute
	jobListSync
)

type job struct {
	kind    jobKind
	animeID int64
	groupID int64
	source  string
	videoID int64
	add     bool
}

// Handlers are the callbacks the worker dispatches scheduled work to. Nil
// handlers drop their jobs.
type Handlers struct {
	AnimeRefresh     func(ctx context.Context, animeID int64) error
	GroupFetch       func(ctx context.Context, groupID int64, source string) error
	StatsRecompute   func(ctx context.Context, animeID int64) error
	ExternalListSync func(ctx context.Context, videoID int64, add bool) error
}

// Worker is an in-process scheduler: jobs queue on buffered channels and a
// single goroutine drains them, always preferring the high-priority queue.
// Enqueueing never blocks; a full queue drops the job with a warning.
type Worker struct {
	handlers Handlers
	high     chan job
	normal   chan job
	log      *slog.Logger
}

// NewWorker creates a scheduler worker with the given queue capacity.
func NewWorker(handlers Handlers, capacity int, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if capacity <= 0 {
		capacity = 256
	}
	return &Worker{
		handlers: handlers,
		high:     make(chan job, capacity),
		normal:   make(chan job, capacity),
		log:      log.With("component", "scheduler"),
	}
}

// Run drains the queues until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		// Drain high-priority work first.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-w.high:
			w.dispatch(ctx, j)
			continue
		default:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-w.high:
			w.dispatch(ctx, j)
		case j := <-w.normal:
			w.dispatch(ctx, j)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, j job) {
	var err error
	switch j.kind {
	case jobAnimeRefresh:
		if w.handlers.AnimeRefresh != nil {
			err = w.handlers.AnimeRefresh(ctx, j.animeID)
		}
	case jobGroupFetch:
		if w.handlers.GroupFetch != nil {
			err = w.handlers.GroupFetch(ctx, j.groupID, j.source)
		}
	case jobStatsRecompute:
		if w.handlers.StatsRecompute != nil {
			err = w.handlers.StatsRecompute(ctx, j.animeID)
		}
	case jobListSync:
		if w.handlers.ExternalListSync != nil {
			err = w.handlers.ExternalListSync(ctx, j.videoID, j.add)
		}
	}
	if err != nil && ctx.Err() == nil {
		w.log.Warn("scheduled job failed", "kind", int(j.kind), "error", err)
	}
}

func (w *Worker) enqueue(q chan job, j job) {
	select {
	case q <- j:
	default:
		w.log.Warn("scheduler queue full, dropping job", "kind", int(j.kind))
	}
}

func (w *Worker) ScheduleAnimeRefresh(animeID int64, p Priority) {
	q := w.normal
	if p == PriorityHigh {
		q = w.high
	}
	w.enqueue(q, job{kind: jobAnimeRefresh, animeID: animeID})
}

func (w *Worker) ScheduleGroupFetch(groupID int64, source string) {
	w.enqueue(w.normal, job{kind: jobGroupFetch, groupID: groupID, source: source})
}

func (w *Worker) ScheduleStatsRecompute(animeID int64) {
	w.enqueue(w.normal, job{kind: jobStatsRecompute, animeID: animeID})
}

func (w *Worker) ScheduleExternalListSync(videoID int64, add bool) {
	w.enqueue(w.normal, job{kind: jobListSync, videoID: videoID, add: add})
}
