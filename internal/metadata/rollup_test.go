package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollupWatchedStats(t *testing.T) {
	day := func(d int) *time.Time {
		ts := time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
		return &ts
	}
	episodes := []EpisodeWatchState{
		{EpisodeID: 1, Watched: true, WatchedAt: day(5), AiredAt: day(1), HasFile: true, FileCount: 1},
		{EpisodeID: 2, Watched: true, WatchedAt: day(3), AiredAt: day(8), HasFile: true, FileCount: 2},
		{EpisodeID: 3, Watched: false, AiredAt: day(15), HasFile: false},
		{EpisodeID: 4, Watched: false, HasFile: true, FileCount: 1},
	}

	stats, err := RollupWatchedStats(context.Background(), episodes)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.Episodes)
	assert.Equal(t, int64(2), stats.WatchedCount)
	assert.Equal(t, int64(4), stats.FileCount)
	assert.Equal(t, int64(1), stats.MissingFiles)
	assert.Equal(t, *day(3), *stats.FirstWatched)
	assert.Equal(t, *day(5), *stats.LastWatched)
	assert.Equal(t, *day(15), *stats.LatestAirDate)
}

func TestRollupWatchedStats_Empty(t *testing.T) {
	stats, err := RollupWatchedStats(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Episodes)
	assert.Nil(t, stats.FirstWatched)
	assert.Nil(t, stats.LatestAirDate)
}

func TestRollupWatchedStats_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	many := make([]EpisodeWatchState, 100)
	_, err := RollupWatchedStats(ctx, many)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRollupWatchedStats_ManyEpisodes(t *testing.T) {
	episodes := make([]EpisodeWatchState, 500)
	for i := range episodes {
		episodes[i] = EpisodeWatchState{EpisodeID: int64(i + 1), Watched: i%2 == 0, HasFile: true, FileCount: 1}
	}

	stats, err := RollupWatchedStats(context.Background(), episodes)
	require.NoError(t, err)
	assert.Equal(t, int64(500), stats.Episodes)
	assert.Equal(t, int64(250), stats.WatchedCount)
	assert.Equal(t, int64(500), stats.FileCount)
}
