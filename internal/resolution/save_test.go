package resolution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/scheduler"
	"github.com/vmunix/animarr/pkg/animeta"
)

func newAttempt(video *library.Video) *library.ReleaseMatchAttempt {
	return &library.ReleaseMatchAttempt{
		AttemptID: "test-attempt",
		ED2K:      video.ED2K,
		SizeBytes: video.SizeBytes,
		StartedAt: time.Now(),
	}
}

func TestSaveRelease_NormalizesCrossRefs(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	release := testReleaseInfo(100, 10)
	release.CrossRefs = []library.CrossReference{
		{EpisodeID: 1, AnimeID: 10, PercentStart: 80, PercentEnd: 20}, // inverted
		{EpisodeID: 2, AnimeID: 10, PercentStart: -5, PercentEnd: 150}, // out of bounds
		{EpisodeID: 3, AnimeID: 10, PercentStart: 30, PercentEnd: 30},  // degenerate
	}

	saved, err := env.engine.SaveRelease(context.Background(), video, release, newAttempt(video), false)
	require.NoError(t, err)
	require.Len(t, saved.CrossRefs, 2, "degenerate range dropped")

	assert.Equal(t, 20, saved.CrossRefs[0].PercentStart)
	assert.Equal(t, 80, saved.CrossRefs[0].PercentEnd)
	assert.Equal(t, 0, saved.CrossRefs[1].PercentStart)
	assert.Equal(t, 100, saved.CrossRefs[1].PercentEnd)
}

func TestSaveRelease_RejectsMissingEpisodeID(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	release := testReleaseInfo(100, 10)
	release.CrossRefs = append(release.CrossRefs, library.CrossReference{
		EpisodeID: 0, PercentStart: 0, PercentEnd: 100,
	})

	_, err := env.engine.SaveRelease(context.Background(), video, release, newAttempt(video), false)
	assert.ErrorIs(t, err, ErrUnnormalizable)

	_, err = env.store.GetRelease("aaaa", 1000)
	assert.ErrorIs(t, err, library.ErrNotFound, "nothing persisted on rejection")
}

func TestSaveRelease_AllRefsDegenerate(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	release := testReleaseInfo(100, 10)
	release.CrossRefs = []library.CrossReference{
		{EpisodeID: 1, AnimeID: 10, PercentStart: 50, PercentEnd: 50},
	}

	_, err := env.engine.SaveRelease(context.Background(), video, release, newAttempt(video), false)
	assert.ErrorIs(t, err, ErrNoCrossRefs)
}

func TestSaveRelease_BackfillsAnimeID(t *testing.T) {
	env := setupEngine(t, Config{})
	env.remote.episodes[55] = &animeta.EpisodeInfo{ID: 55, AnimeID: 77, Number: 3}
	video := env.addVideo(t, "aaaa", 1000)

	release := testReleaseInfo(55, 0)

	saved, err := env.engine.SaveRelease(context.Background(), video, release, newAttempt(video), false)
	require.NoError(t, err)
	assert.Equal(t, int64(77), saved.CrossRefs[0].AnimeID)
}

func TestSaveRelease_BackfillDeferredWhenRemoteDown(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	saved, err := env.engine.SaveRelease(context.Background(), video, testReleaseInfo(55, 0), newAttempt(video), false)
	require.NoError(t, err, "unreachable metadata does not block the save")
	assert.Zero(t, saved.CrossRefs[0].AnimeID, "left unresolved")
}

func TestSaveRelease_IdempotentReconfirmation(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	first, err := env.engine.SaveRelease(context.Background(), video, testReleaseInfo(100, 10), newAttempt(video), false)
	require.NoError(t, err)

	second, err := env.engine.SaveRelease(context.Background(), video, testReleaseInfo(100, 10), newAttempt(video), false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "identical payload only touches the timestamp")

	persisted, err := env.store.GetRelease("aaaa", 1000)
	require.NoError(t, err)
	assert.Equal(t, first.ID, persisted.ID)
}

func TestSaveRelease_RevisionZeroDefaultsBeforeComparison(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	first := testReleaseInfo(100, 10)
	first.Revision = 0
	saved, err := env.engine.SaveRelease(context.Background(), video, first, newAttempt(video), false)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Revision)

	// A provider that keeps sending revision 0 must still be idempotent.
	again := testReleaseInfo(100, 10)
	again.Revision = 0
	reSaved, err := env.engine.SaveRelease(context.Background(), video, again, newAttempt(video), false)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, reSaved.ID)
}

func TestSaveRelease_ReplacesChangedBinding(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	first, err := env.engine.SaveRelease(context.Background(), video, testReleaseInfo(100, 10), newAttempt(video), false)
	require.NoError(t, err)

	changed := testReleaseInfo(200, 10)
	changed.URI = "https://anidb.net/file/200"
	second, err := env.engine.SaveRelease(context.Background(), video, changed, newAttempt(video), false)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	persisted, err := env.store.GetRelease("aaaa", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(200), persisted.CrossRefs[0].EpisodeID)
}

func TestSaveRelease_ExternalListSyncOnURIChange(t *testing.T) {
	env := setupEngine(t, Config{ExternalListEnabled: true})
	video := env.addVideo(t, "aaaa", 1000)

	_, err := env.engine.SaveRelease(context.Background(), video, testReleaseInfo(100, 10), newAttempt(video), true)
	require.NoError(t, err)
	require.Len(t, env.sched.ListSyncs, 1)
	assert.Equal(t, scheduler.ListSync{VideoID: video.ID, Add: true}, env.sched.ListSyncs[0])

	// Re-confirmation from the same URI does not churn the list.
	_, err = env.engine.SaveRelease(context.Background(), video, testReleaseInfo(100, 10), newAttempt(video), true)
	require.NoError(t, err)
	assert.Len(t, env.sched.ListSyncs, 1)

	// A different source replaces the entry: remove then add.
	changed := testReleaseInfo(100, 10)
	changed.URI = "https://other.example/file/9"
	_, err = env.engine.SaveRelease(context.Background(), video, changed, newAttempt(video), true)
	require.NoError(t, err)
	require.Len(t, env.sched.ListSyncs, 3)
	assert.False(t, env.sched.ListSyncs[1].Add)
	assert.True(t, env.sched.ListSyncs[2].Add)
}

func TestSaveRelease_GroupNameBorrowedFromHistory(t *testing.T) {
	env := setupEngine(t, Config{})

	// An earlier release recorded the real name for group 7.
	prior := testReleaseInfo(1, 10)
	prior.ED2K = "prior"
	prior.SizeBytes = 500
	prior.Group = &library.GroupIdentity{ID: 7, Source: "anidb", Name: "SubsPlease", ShortName: "SP"}
	require.NoError(t, env.store.AddRelease(prior))

	video := env.addVideo(t, "aaaa", 1000)
	release := testReleaseInfo(100, 10)
	release.Group = &library.GroupIdentity{ID: 7, Source: "anidb", Name: "raw"}

	saved, err := env.engine.SaveRelease(context.Background(), video, release, newAttempt(video), false)
	require.NoError(t, err)
	require.NotNil(t, saved.Group)
	assert.Equal(t, "SubsPlease", saved.Group.Name)
	assert.Equal(t, "SP", saved.Group.ShortName)
	assert.Empty(t, env.sched.GroupFetches)
}

func TestSaveRelease_GroupNameFromMetadataService(t *testing.T) {
	env := setupEngine(t, Config{})
	env.remote.available = true
	env.remote.groups[7] = &animeta.GroupInfo{ID: 7, Source: "anidb", Name: "Commie", ShortName: "C"}

	video := env.addVideo(t, "aaaa", 1000)
	release := testReleaseInfo(100, 10)
	release.Group = &library.GroupIdentity{ID: 7, Source: "anidb", Name: "Unknown"}

	saved, err := env.engine.SaveRelease(context.Background(), video, release, newAttempt(video), false)
	require.NoError(t, err)
	require.NotNil(t, saved.Group)
	assert.Equal(t, "Commie", saved.Group.Name)
}

func TestSaveRelease_UnresolvableGroupStripped(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	release := testReleaseInfo(100, 10)
	release.Group = &library.GroupIdentity{ID: 7, Source: "anidb", Name: "raw/unknown"}

	saved, err := env.engine.SaveRelease(context.Background(), video, release, newAttempt(video), false)
	require.NoError(t, err)
	assert.Nil(t, saved.Group, "half-resolved identity never persisted")
	require.Len(t, env.sched.GroupFetches, 1)
	assert.Equal(t, scheduler.GroupFetch{GroupID: 7, Source: "anidb"}, env.sched.GroupFetches[0])
}

func TestSaveRelease_PlaceholderShortNameStripsGroup(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	// A real Name with an empty ShortName is still a half-resolved pair.
	release := testReleaseInfo(100, 10)
	release.Group = &library.GroupIdentity{ID: 7, Source: "anidb", Name: "Erai-raws", ShortName: ""}

	saved, err := env.engine.SaveRelease(context.Background(), video, release, newAttempt(video), false)
	require.NoError(t, err)
	assert.Nil(t, saved.Group)
	require.Len(t, env.sched.GroupFetches, 1)
	assert.Equal(t, scheduler.GroupFetch{GroupID: 7, Source: "anidb"}, env.sched.GroupFetches[0])
}

func TestSaveRelease_PlaceholderShortNameBorrowsPair(t *testing.T) {
	env := setupEngine(t, Config{})

	prior := testReleaseInfo(1, 10)
	prior.ED2K = "prior"
	prior.SizeBytes = 500
	prior.Group = &library.GroupIdentity{ID: 7, Source: "anidb", Name: "Erai-raws", ShortName: "ER"}
	require.NoError(t, env.store.AddRelease(prior))

	video := env.addVideo(t, "aaaa", 1000)
	release := testReleaseInfo(100, 10)
	release.Group = &library.GroupIdentity{ID: 7, Source: "anidb", Name: "Erai-raws", ShortName: ""}

	saved, err := env.engine.SaveRelease(context.Background(), video, release, newAttempt(video), false)
	require.NoError(t, err)
	require.NotNil(t, saved.Group)
	assert.Equal(t, "ER", saved.Group.ShortName)
	assert.Empty(t, env.sched.GroupFetches)
}

func TestSaveRelease_RealGroupNameKept(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	release := testReleaseInfo(100, 10)
	release.Group = &library.GroupIdentity{ID: 7, Source: "anidb", Name: "Erai-raws", ShortName: "ER"}

	saved, err := env.engine.SaveRelease(context.Background(), video, release, newAttempt(video), false)
	require.NoError(t, err)
	require.NotNil(t, saved.Group)
	assert.Equal(t, "Erai-raws", saved.Group.Name)
}

func TestSaveRelease_SchedulesAnimeRefreshByFreshness(t *testing.T) {
	env := setupEngine(t, Config{FreshnessWindow: time.Hour})
	video := env.addVideo(t, "aaaa", 1000)

	// Nothing cached for anime 10: refresh at high priority.
	_, err := env.engine.SaveRelease(context.Background(), video, testReleaseInfo(100, 10), newAttempt(video), false)
	require.NoError(t, err)
	require.Len(t, env.sched.AnimeRefreshes, 1)
	assert.Equal(t, scheduler.AnimeRefresh{AnimeID: 10, Priority: scheduler.PriorityHigh}, env.sched.AnimeRefreshes[0])
}

func TestSaveRelease_FreshAnimeOnlyRecomputesStats(t *testing.T) {
	env := setupEngine(t, Config{FreshnessWindow: time.Hour})
	env.remote.animes[10] = &animeta.AnimeInfo{ID: 10, Title: "Mushishi", Complete: true}
	_, err := env.meta.RefreshAnime(context.Background(), 10)
	require.NoError(t, err)

	video := env.addVideo(t, "aaaa", 1000)
	_, err = env.engine.SaveRelease(context.Background(), video, testReleaseInfo(100, 10), newAttempt(video), false)
	require.NoError(t, err)

	assert.Empty(t, env.sched.AnimeRefreshes)
	assert.Equal(t, []int64{10}, env.sched.StatsRecomputes)
}

func TestClearRelease(t *testing.T) {
	env := setupEngine(t, Config{})
	video := env.addVideo(t, "aaaa", 1000)

	_, err := env.engine.SaveRelease(context.Background(), video, testReleaseInfo(100, 10), newAttempt(video), false)
	require.NoError(t, err)

	require.NoError(t, env.engine.ClearRelease(context.Background(), video, false))

	_, err = env.store.GetRelease("aaaa", 1000)
	assert.ErrorIs(t, err, library.ErrNotFound)

	updated, err := env.store.GetVideo(video.ID)
	require.NoError(t, err)
	assert.False(t, updated.Imported())

	// Clearing again is a no-op.
	require.NoError(t, env.engine.ClearRelease(context.Background(), video, false))
}
