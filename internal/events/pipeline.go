package events

// Event type constants.
const (
	EventFileHashed             = "file.hashed"
	EventFileRelocated          = "file.relocated"
	EventReleaseSearchStarted   = "release.search_started"
	EventReleaseSearchCompleted = "release.search_completed"
	EventReleaseSaved           = "release.saved"
	EventReleaseDeleted         = "release.deleted"
	EventProviderSetChanged     = "provider.set_changed"
)

// Entity type constants.
const (
	EntityVideo    = "video"
	EntityProvider = "provider"
)

// FileHashed fires after a file's content identity has been established.
type FileHashed struct {
	BaseEvent
	VideoID      int64  `json:"video_id"`
	LocationID   int64  `json:"location_id"`
	ED2K         string `json:"ed2k"`
	SizeBytes    int64  `json:"size_bytes"`
	NewVideo     bool   `json:"new_video"`
	NewLocation  bool   `json:"new_location"`
	ReusedHashes bool   `json:"reused_hashes"`
}

// ReleaseSearchStarted fires when release resolution begins for a video.
type ReleaseSearchStarted struct {
	BaseEvent
	VideoID   int64    `json:"video_id"`
	Providers []string `json:"providers"`
}

// ReleaseSearchCompleted fires when release resolution ends, whether a release
// was found, nothing matched, or the search failed. Error distinguishes true
// absence from failure or cancellation.
type ReleaseSearchCompleted struct {
	BaseEvent
	VideoID  int64  `json:"video_id"`
	Found    bool   `json:"found"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ReleaseSaved fires after a release binding has been persisted.
type ReleaseSaved struct {
	BaseEvent
	VideoID   int64   `json:"video_id"`
	ReleaseID int64   `json:"release_id"`
	Provider  string  `json:"provider"`
	Episodes  []int64 `json:"episodes"`
	Animes    []int64 `json:"animes"`
}

// ReleaseDeleted fires after a release binding has been removed.
type ReleaseDeleted struct {
	BaseEvent
	VideoID  int64   `json:"video_id"`
	Episodes []int64 `json:"episodes"`
	Animes   []int64 `json:"animes"`
}

// FileRelocated fires after a file was physically moved or renamed. It carries
// the old and new placement so observers can re-derive affected series without
// re-querying the pipeline.
type FileRelocated struct {
	BaseEvent
	VideoID    int64   `json:"video_id"`
	LocationID int64   `json:"location_id"`
	OldFolder  int64   `json:"old_folder"`
	OldPath    string  `json:"old_path"`
	NewFolder  int64   `json:"new_folder"`
	NewPath    string  `json:"new_path"`
	Moved      bool    `json:"moved"`
	Renamed    bool    `json:"renamed"`
	Episodes   []int64 `json:"episodes"`
	Animes     []int64 `json:"animes"`
}

// ProviderSetChanged fires when a provider registry's enablement or ordering
// is mutated.
type ProviderSetChanged struct {
	BaseEvent
	Registry string `json:"registry"` // "hash", "release", "relocation"
}
