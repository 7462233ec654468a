package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmunix/animarr/pkg/animeta"
)

// Cache TTLs
const (
	episodeTTL = 24 * time.Hour
	groupTTL   = 7 * 24 * time.Hour
	// anime entries live far beyond the freshness window; staleness is
	// judged from the recorded fetch time, not from expiry.
	animeTTL = 365 * 24 * time.Hour
)

// Cache key prefixes
const (
	keyPrefixEpisode = "animeta:episode:"
	keyPrefixAnime   = "animeta:anime:"
	keyPrefixGroup   = "animeta:group:"
)

// Remote is the slice of the metadata service the pipeline consumes.
type Remote interface {
	GetEpisode(ctx context.Context, id int64) (*animeta.EpisodeInfo, error)
	GetAnime(ctx context.Context, id int64) (*animeta.AnimeInfo, error)
	GetGroup(ctx context.Context, id int64, source string) (*animeta.GroupInfo, error)
	Available() bool
}

// Freshness classifies how badly an anime's local metadata needs a refresh.
type Freshness int

const (
	FreshnessMissing Freshness = iota
	FreshnessIncomplete
	FreshnessStale
	FreshnessFresh
)

func (f Freshness) String() string {
	switch f {
	case FreshnessMissing:
		return "missing"
	case FreshnessIncomplete:
		return "incomplete"
	case FreshnessStale:
		return "stale"
	default:
		return "fresh"
	}
}

// envelope wraps cached payloads with their fetch time.
type envelope struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Data      json.RawMessage `json:"data"`
}

// Service provides cached access to the remote metadata service.
type Service struct {
	remote Remote
	cache  *Cache
	log    *slog.Logger
}

// NewService creates a new metadata service.
func NewService(remote Remote, cache *Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{remote: remote, cache: cache, log: log}
}

// Available reports whether the remote service is currently reachable.
func (s *Service) Available() bool { return s.remote.Available() }

func cacheGet[T any](ctx context.Context, s *Service, key string) (*T, time.Time, bool) {
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, time.Time{}, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, time.Time{}, false
	}
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, time.Time{}, false
	}
	return &v, env.FetchedAt, true
}

func cacheSet(ctx context.Context, s *Service, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	raw, err := json.Marshal(envelope{FetchedAt: time.Now(), Data: data})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		s.log.Warn("metadata cache write failed", "key", key, "error", err)
	}
}

// Episode returns episode info, from cache when possible.
func (s *Service) Episode(ctx context.Context, id int64) (*animeta.EpisodeInfo, error) {
	key := fmt.Sprintf("%s%d", keyPrefixEpisode, id)
	if ep, _, ok := cacheGet[animeta.EpisodeInfo](ctx, s, key); ok {
		return ep, nil
	}
	ep, err := s.remote.GetEpisode(ctx, id)
	if err != nil {
		return nil, err
	}
	cacheSet(ctx, s, key, ep, episodeTTL)
	return ep, nil
}

// Anime returns anime info, from cache when possible.
func (s *Service) Anime(ctx context.Context, id int64) (*animeta.AnimeInfo, error) {
	key := fmt.Sprintf("%s%d", keyPrefixAnime, id)
	if a, _, ok := cacheGet[animeta.AnimeInfo](ctx, s, key); ok {
		return a, nil
	}
	a, err := s.remote.GetAnime(ctx, id)
	if err != nil {
		return nil, err
	}
	cacheSet(ctx, s, key, a, animeTTL)
	return a, nil
}

// Group returns release-group info, from cache when possible.
func (s *Service) Group(ctx context.Context, id int64, source string) (*animeta.GroupInfo, error) {
	key := fmt.Sprintf("%s%s:%d", keyPrefixGroup, source, id)
	if g, _, ok := cacheGet[animeta.GroupInfo](ctx, s, key); ok {
		return g, nil
	}
	g, err := s.remote.GetGroup(ctx, id, source)
	if err != nil {
		return nil, err
	}
	cacheSet(ctx, s, key, g, groupTTL)
	return g, nil
}

// RefreshAnime fetches an anime from the remote service unconditionally and
// replaces the cached copy.
func (s *Service) RefreshAnime(ctx context.Context, id int64) (*animeta.AnimeInfo, error) {
	a, err := s.remote.GetAnime(ctx, id)
	if err != nil {
		return nil, err
	}
	cacheSet(ctx, s, fmt.Sprintf("%s%d", keyPrefixAnime, id), a, animeTTL)
	return a, nil
}

// AnimeFreshness classifies the locally known metadata of one anime against
// the configured freshness window. Missing and incomplete anime should be
// refreshed immediately, stale anime at normal priority; fresh anime only
// need a lightweight stats recompute.
func (s *Service) AnimeFreshness(ctx context.Context, id int64, window time.Duration) Freshness {
	key := fmt.Sprintf("%s%d", keyPrefixAnime, id)
	a, fetchedAt, ok := cacheGet[animeta.AnimeInfo](ctx, s, key)
	if !ok {
		return FreshnessMissing
	}
	if !a.Complete {
		return FreshnessIncomplete
	}
	if time.Since(fetchedAt) > window {
		return FreshnessStale
	}
	return FreshnessFresh
}
