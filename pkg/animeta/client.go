package animeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Sentinel errors for metadata service responses.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("metadata service unavailable")
	ErrBanned      = errors.New("client is banned or rate limited")
)

// Client talks to the remote metadata service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger

	mu          sync.RWMutex
	bannedUntil time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log.With("component", "animeta")
	}
}

// New creates a new metadata service client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Available reports whether the service is currently usable. A ban or rate
// limit marks the client unavailable for a cool-down window; callers should
// defer remote work instead of failing their whole pipeline stage.
func (c *Client) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().After(c.bannedUntil)
}

func (c *Client) markBanned(d time.Duration) {
	c.mu.Lock()
	c.bannedUntil = time.Now().Add(d)
	c.mu.Unlock()
	c.log.Warn("metadata service banned us, backing off", "until", c.bannedUntil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if !c.Available() {
		return ErrBanned
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests, http.StatusForbidden:
		c.markBanned(30 * time.Minute)
		return ErrBanned
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetEpisode fetches one episode by ID.
func (c *Client) GetEpisode(ctx context.Context, id int64) (*EpisodeInfo, error) {
	var ep EpisodeInfo
	if err := c.get(ctx, "/episodes/"+strconv.FormatInt(id, 10), &ep); err != nil {
		return nil, err
	}
	return &ep, nil
}

// GetAnime fetches one anime with its episode inventory.
func (c *Client) GetAnime(ctx context.Context, id int64) (*AnimeInfo, error) {
	var a AnimeInfo
	if err := c.get(ctx, "/anime/"+strconv.FormatInt(id, 10), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetGroup fetches release-group info by ID and source.
func (c *Client) GetGroup(ctx context.Context, id int64, source string) (*GroupInfo, error) {
	var g GroupInfo
	path := fmt.Sprintf("/groups/%s/%d", source, id)
	if err := c.get(ctx, path, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
