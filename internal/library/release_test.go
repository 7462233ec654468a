package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRelease(ed2k string, size int64) *ReleaseInfo {
	return &ReleaseInfo{
		ED2K:      ed2k,
		SizeBytes: size,
		Provider:  "anidb",
		URI:       "https://anidb.net/file/12345",
		Revision:  1,
		Group:     &GroupIdentity{ID: 7, Source: "anidb", Name: "SubsPlease", ShortName: "SP"},
		CrossRefs: []CrossReference{
			{EpisodeID: 100, AnimeID: 10, PercentStart: 0, PercentEnd: 100},
		},
	}
}

func TestStore_AddRelease_RoundTrip(t *testing.T) {
	s := NewStore(setupTestDB(t))

	r := testRelease("aaaa", 1000)
	require.NoError(t, s.AddRelease(r))
	assert.NotZero(t, r.ID)

	got, err := s.GetRelease("aaaa", 1000)
	require.NoError(t, err)
	assert.Equal(t, "anidb", got.Provider)
	require.NotNil(t, got.Group)
	assert.Equal(t, "SubsPlease", got.Group.Name)
	require.Len(t, got.CrossRefs, 1)
	assert.Equal(t, int64(100), got.CrossRefs[0].EpisodeID)
}

func TestStore_AddRelease_DuplicateBinding(t *testing.T) {
	s := NewStore(setupTestDB(t))
	require.NoError(t, s.AddRelease(testRelease("aaaa", 1000)))

	err := s.AddRelease(testRelease("aaaa", 1000))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStore_GetRelease_SizeDisambiguates(t *testing.T) {
	s := NewStore(setupTestDB(t))
	require.NoError(t, s.AddRelease(testRelease("aaaa", 1000)))

	// Same hash, different size is a distinct binding.
	_, err := s.GetRelease("aaaa", 2000)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CrossRefs_PreserveOrder(t *testing.T) {
	s := NewStore(setupTestDB(t))

	r := testRelease("bbbb", 500)
	r.CrossRefs = []CrossReference{
		{EpisodeID: 300, AnimeID: 30, PercentStart: 0, PercentEnd: 50},
		{EpisodeID: 100, AnimeID: 10, PercentStart: 50, PercentEnd: 100},
	}
	require.NoError(t, s.AddRelease(r))

	got, err := s.GetRelease("bbbb", 500)
	require.NoError(t, err)
	require.Len(t, got.CrossRefs, 2)
	assert.Equal(t, int64(300), got.CrossRefs[0].EpisodeID)
	assert.Equal(t, int64(100), got.CrossRefs[1].EpisodeID)
}

func TestStore_DeleteRelease_CascadesToCrossRefs(t *testing.T) {
	s := NewStore(setupTestDB(t))
	r := testRelease("cccc", 500)
	require.NoError(t, s.AddRelease(r))

	require.NoError(t, s.DeleteRelease("cccc", 500))
	require.NoError(t, s.DeleteRelease("cccc", 500))

	_, err := s.GetRelease("cccc", 500)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetReleaseByEpisode(t *testing.T) {
	s := NewStore(setupTestDB(t))

	old := testRelease("aaaa", 100)
	require.NoError(t, s.AddRelease(old))
	newer := testRelease("bbbb", 200)
	require.NoError(t, s.AddRelease(newer))
	require.NoError(t, s.TouchRelease(newer.ID))

	got, err := s.GetReleaseByEpisode(100)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID, "most recently updated release wins")

	_, err = s.GetReleaseByEpisode(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListGroupNames_MostFrequentFirst(t *testing.T) {
	s := NewStore(setupTestDB(t))

	for i, name := range []string{"SubsPlease", "SubsPlease", "subsplease-old"} {
		r := testRelease(string(rune('a'+i))+"xxx", int64(100+i))
		r.Group.Name = name
		require.NoError(t, s.AddRelease(r))
	}

	names, err := s.ListGroupNames(7, "anidb")
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "SubsPlease", names[0].Name)
	assert.Equal(t, 2, names[0].Count)
}

func TestStore_ListGroupNames_SkipsEmpty(t *testing.T) {
	s := NewStore(setupTestDB(t))

	r := testRelease("dddd", 100)
	r.Group.Name = ""
	require.NoError(t, s.AddRelease(r))

	names, err := s.ListGroupNames(7, "anidb")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStore_MatchAttempts(t *testing.T) {
	s := NewStore(setupTestDB(t))

	ended := time.Now()
	a := &ReleaseMatchAttempt{
		AttemptID: "uuid-1",
		ED2K:      "aaaa",
		SizeBytes: 100,
		Providers: []string{"anidb", "local"},
		StartedAt: time.Now().Add(-time.Second),
		EndedAt:   &ended,
	}
	require.NoError(t, s.AddMatchAttempt(a))
	assert.NotZero(t, a.ID)

	b := &ReleaseMatchAttempt{
		AttemptID:       "uuid-2",
		ED2K:            "aaaa",
		SizeBytes:       100,
		Providers:       []string{"anidb"},
		MatchedProvider: "anidb",
		StartedAt:       time.Now(),
	}
	require.NoError(t, s.AddMatchAttempt(b))

	attempts, err := s.ListMatchAttempts("aaaa", 100)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "uuid-2", attempts[0].AttemptID, "newest first")
	assert.Equal(t, []string{"anidb", "local"}, attempts[1].Providers)
	assert.Empty(t, attempts[1].MatchedProvider)
}
