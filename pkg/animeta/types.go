// Package animeta is a client for the remote anime metadata service used to
// resolve episode, anime and release-group information.
package animeta

import "time"

// EpisodeInfo describes one episode as known by the remote service.
type EpisodeInfo struct {
	ID      int64      `json:"id"`
	AnimeID int64      `json:"anime_id"`
	Number  int        `json:"number"`
	Type    string     `json:"type"`
	Title   string     `json:"title"`
	AiredAt *time.Time `json:"aired_at,omitempty"`
}

// AnimeInfo describes one anime with its episode inventory.
type AnimeInfo struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	Episodes  []EpisodeInfo `json:"episodes"`
	Complete  bool          `json:"complete"` // all episode metadata present
	UpdatedAt time.Time     `json:"updated_at"`
}

// GroupInfo describes a release group.
type GroupInfo struct {
	ID        int64  `json:"id"`
	Source    string `json:"source"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}
