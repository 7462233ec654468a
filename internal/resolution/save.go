package resolution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmunix/animarr/internal/events"
	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/metadata"
	"github.com/vmunix/animarr/internal/scheduler"
)

// placeholderGroupNames are sentinel names some providers emit instead of a
// real group identity.
var placeholderGroupNames = map[string]bool{
	"":            true,
	"raw":         true,
	"unknown":     true,
	"raw/unknown": true,
}

// SaveRelease validates and persists a release binding for the video. The
// attempt record is closed with the persistence timestamp. A partial failure
// never persists inconsistent metadata: either the whole normalized release
// lands, or nothing changes.
func (e *Engine) SaveRelease(ctx context.Context, video *library.Video, release *library.ReleaseInfo, attempt *library.ReleaseMatchAttempt, addToExternalList bool) (*library.ReleaseInfo, error) {
	if len(release.CrossRefs) == 0 {
		return nil, ErrNoCrossRefs
	}

	xrefs, err := e.normalizeCrossRefs(ctx, release.CrossRefs)
	if err != nil {
		return nil, err
	}
	if len(xrefs) == 0 {
		return nil, ErrNoCrossRefs
	}
	release.CrossRefs = xrefs
	release.ED2K = video.ED2K
	release.SizeBytes = video.SizeBytes
	if release.Revision < 1 {
		release.Revision = 1
	}

	e.resolveGroup(ctx, release)

	existing, err := e.store.GetRelease(video.ED2K, video.SizeBytes)
	if err != nil && !errors.Is(err, library.ErrNotFound) {
		return nil, err
	}

	// Idempotence: a byte-identical re-confirmation only bumps the timestamp.
	if existing != nil && releasesEqual(existing, release) {
		if err := e.store.TouchRelease(existing.ID); err != nil {
			return nil, err
		}
		e.recordAttempt(attempt, attempt.MatchedProvider)
		e.log.Info("identical release re-confirmed", "video_id", video.ID, "release_id", existing.ID)
		return existing, nil
	}

	uriChanged := existing == nil || !strings.EqualFold(existing.URI, release.URI)
	if existing != nil {
		if err := e.store.DeleteRelease(video.ED2K, video.SizeBytes); err != nil {
			return nil, err
		}
		// The same remote source re-confirming must not churn the list.
		if e.cfg.ExternalListEnabled && uriChanged {
			e.sched.ScheduleExternalListSync(video.ID, false)
		}
	}

	if err := e.store.AddRelease(release); err != nil {
		return nil, fmt.Errorf("persist release: %w", err)
	}
	e.recordAttempt(attempt, attempt.MatchedProvider)

	if !video.Imported() {
		now := time.Now()
		video.ImportedAt = &now
		if err := e.store.UpdateVideo(video); err != nil {
			return nil, err
		}
	}

	episodes, animes := referencedIDs(release.CrossRefs)
	e.scheduleFollowOn(ctx, video, animes, episodes, addToExternalList, uriChanged)

	if e.bus != nil {
		_ = e.bus.Publish(ctx, &events.ReleaseSaved{
			BaseEvent: events.NewBaseEvent(events.EventReleaseSaved, events.EntityVideo, video.ID),
			VideoID:   video.ID,
			ReleaseID: release.ID,
			Provider:  release.Provider,
			Episodes:  episodes,
			Animes:    animes,
		})
	}
	e.log.Info("release saved",
		"video_id", video.ID,
		"release_id", release.ID,
		"provider", release.Provider,
		"revision", release.Revision,
		"xrefs", len(release.CrossRefs))
	return release, nil
}

// normalizeCrossRefs returns the valid subset of the given cross-references:
// degenerate ranges are discarded, inverted ranges swapped, bounds clamped to
// [0,100]. Missing anime IDs are backfilled from episode metadata when
// reachable and left unresolved otherwise. A cross-reference without an
// episode ID cannot be normalized and rejects the whole release.
func (e *Engine) normalizeCrossRefs(ctx context.Context, in []library.CrossReference) ([]library.CrossReference, error) {
	var out []library.CrossReference
	for _, x := range in {
		if x.EpisodeID <= 0 {
			return nil, fmt.Errorf("%w: cross-reference without episode id", ErrUnnormalizable)
		}
		if x.PercentStart == x.PercentEnd {
			continue
		}
		if x.PercentStart > x.PercentEnd {
			x.PercentStart, x.PercentEnd = x.PercentEnd, x.PercentStart
		}
		x.PercentStart = clampPercent(x.PercentStart)
		x.PercentEnd = clampPercent(x.PercentEnd)

		if x.AnimeID <= 0 && e.meta != nil {
			ep, err := e.meta.Episode(ctx, x.EpisodeID)
			if err != nil {
				// Leave unresolved; the anime refresh picks it up later.
				e.log.Debug("anime backfill deferred", "episode_id", x.EpisodeID, "error", err)
			} else {
				x.AnimeID = ep.AnimeID
			}
		}
		out = append(out, x)
	}
	return out, nil
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// resolveGroup settles the release's group identity. Returns true when the
// identity was stripped and a deferred fetch is needed.
func (e *Engine) resolveGroup(ctx context.Context, release *library.ReleaseInfo) bool {
	g := release.Group
	if g == nil || g.ID == 0 {
		release.Group = nil
		return false
	}
	if !placeholderGroupIdentity(g) {
		return false
	}

	// Borrow a valid name another release already recorded for this group.
	if names, err := e.store.ListGroupNames(g.ID, g.Source); err == nil && len(names) > 0 {
		g.Name = names[0].Name
		g.ShortName = names[0].ShortName
		return false
	}

	if e.meta != nil && e.meta.Available() {
		if info, err := e.meta.Group(ctx, g.ID, g.Source); err == nil {
			g.Name = info.Name
			g.ShortName = info.ShortName
			return false
		}
	}

	// Strip rather than persist a half-resolved identity.
	e.log.Warn("group identity unresolved, stripping", "group_id", g.ID, "source", g.Source)
	release.Group = nil
	e.sched.ScheduleGroupFetch(g.ID, g.Source)
	return true
}

// placeholderGroupIdentity reports whether the group's identity needs
// resolution. A real Name paired with a placeholder ShortName is still
// half-resolved; the pair is only valid when both members are.
func placeholderGroupIdentity(g *library.GroupIdentity) bool {
	return placeholderGroupNames[strings.ToLower(g.Name)] ||
		placeholderGroupNames[strings.ToLower(g.ShortName)]
}

// scheduleFollowOn hands deferred work to the scheduler after a save. The
// deferred group fetch, when needed, was already scheduled in resolveGroup.
func (e *Engine) scheduleFollowOn(ctx context.Context, video *library.Video, animes, episodes []int64, addToExternalList, uriChanged bool) {
	for _, animeID := range animes {
		switch e.meta.AnimeFreshness(ctx, animeID, e.cfg.FreshnessWindow) {
		case metadata.FreshnessMissing, metadata.FreshnessIncomplete:
			e.sched.ScheduleAnimeRefresh(animeID, scheduler.PriorityHigh)
		case metadata.FreshnessStale:
			e.sched.ScheduleAnimeRefresh(animeID, scheduler.PriorityNormal)
		default:
			e.sched.ScheduleStatsRecompute(animeID)
		}
	}

	if e.cfg.InheritWatchStatus && e.watch != nil {
		if err := e.watch.PropagateWatchState(ctx, video, episodes); err != nil {
			e.log.Warn("watched-state propagation failed", "video_id", video.ID, "error", err)
		}
	}

	if e.cfg.ExternalListEnabled && addToExternalList && uriChanged {
		e.sched.ScheduleExternalListSync(video.ID, true)
	}

	if e.relocator != nil {
		e.relocator.AutoRelocate(ctx, video)
	}
}

// ClearRelease deletes the video's release binding and cross-references and
// marks the video as not imported. Idempotent.
func (e *Engine) ClearRelease(ctx context.Context, video *library.Video, removeFromExternalList bool) error {
	existing, err := e.store.GetRelease(video.ED2K, video.SizeBytes)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return nil
		}
		return err
	}

	episodes, animes := referencedIDs(existing.CrossRefs)
	if err := e.store.DeleteRelease(video.ED2K, video.SizeBytes); err != nil {
		return err
	}
	if video.Imported() {
		video.ImportedAt = nil
		if err := e.store.UpdateVideo(video); err != nil {
			return err
		}
	}
	if removeFromExternalList && e.cfg.ExternalListEnabled {
		e.sched.ScheduleExternalListSync(video.ID, false)
	}

	if e.bus != nil {
		_ = e.bus.Publish(ctx, &events.ReleaseDeleted{
			BaseEvent: events.NewBaseEvent(events.EventReleaseDeleted, events.EntityVideo, video.ID),
			VideoID:   video.ID,
			Episodes:  episodes,
			Animes:    animes,
		})
	}
	e.log.Info("release cleared", "video_id", video.ID, "release_id", existing.ID)
	return nil
}

// referencedIDs returns the distinct episode and anime IDs of the
// cross-references, in first-seen order. Unresolved anime IDs are skipped.
func referencedIDs(xrefs []library.CrossReference) (episodes, animes []int64) {
	seenEp := make(map[int64]bool)
	seenAn := make(map[int64]bool)
	for _, x := range xrefs {
		if !seenEp[x.EpisodeID] {
			seenEp[x.EpisodeID] = true
			episodes = append(episodes, x.EpisodeID)
		}
		if x.AnimeID > 0 && !seenAn[x.AnimeID] {
			seenAn[x.AnimeID] = true
			animes = append(animes, x.AnimeID)
		}
	}
	return episodes, animes
}

// releasesEqual reports whether two releases are byte-for-byte identical in
// payload (provenance, URI, revision, group, cross-references).
func releasesEqual(a, b *library.ReleaseInfo) bool {
	if a.Provider != b.Provider || a.URI != b.URI || a.Revision != b.Revision {
		return false
	}
	if (a.Group == nil) != (b.Group == nil) {
		return false
	}
	if a.Group != nil && *a.Group != *b.Group {
		return false
	}
	if len(a.CrossRefs) != len(b.CrossRefs) {
		return false
	}
	for i := range a.CrossRefs {
		ax, bx := a.CrossRefs[i], b.CrossRefs[i]
		if ax.EpisodeID != bx.EpisodeID || ax.AnimeID != bx.AnimeID ||
			ax.PercentStart != bx.PercentStart || ax.PercentEnd != bx.PercentEnd {
			return false
		}
	}
	return true
}
