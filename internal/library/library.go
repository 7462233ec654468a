// Package library manages content identity tracking (videos, file locations,
// hash digests, releases, relocation pipes).
package library

import (
	"time"
)

// Hash type tags. ED2K is the canonical content fingerprint; every persisted
// video carries exactly one ED2K digest.
const (
	HashTypeED2K  = "ED2K"
	HashTypeCRC32 = "CRC32"
	HashTypeMD5   = "MD5"
	HashTypeSHA1  = "SHA1"
)

// DropType classifies a managed folder for the pipeline.
type DropType string

const (
	DropNone        DropType = "none"
	DropSource      DropType = "source"
	DropDestination DropType = "destination"
	DropBoth        DropType = "both"
	DropExcluded    DropType = "excluded"
)

// IsSource reports whether the pipeline may ingest from this folder.
func (d DropType) IsSource() bool { return d == DropSource || d == DropBoth }

// IsDestination reports whether the pipeline may relocate into this folder.
func (d DropType) IsDestination() bool { return d == DropDestination || d == DropBoth }

// ManagedFolder is a registered root directory.
type ManagedFolder struct {
	ID       int64
	Name     string
	Path     string
	DropType DropType
}

// Video is a canonical piece of content, keyed by its ED2K hash.
// ID 0 means not yet persisted.
type Video struct {
	ID         int64
	ED2K       string
	SizeBytes  int64
	Ignored    bool
	ImportedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Imported reports whether the video has been bound to release metadata.
func (v *Video) Imported() bool { return v.ImportedAt != nil }

// VideoFileLocation is one physical placement of a video.
// (FolderID, RelativePath) is unique; relative paths use forward slashes and
// never begin with a separator.
type VideoFileLocation struct {
	ID           int64
	VideoID      int64
	FolderID     int64
	RelativePath string
	AddedAt      time.Time
}

// HashDigest is a typed hash value for a video. Unique per (video, type).
type HashDigest struct {
	ID       int64
	VideoID  int64
	Type     string
	Value    string
	Metadata string
}

// GroupIdentity identifies the release group that produced a file.
type GroupIdentity struct {
	ID        int64
	Source    string
	Name      string
	ShortName string
}

// ReleaseInfo binds content identity (hash + size) to external episode and
// anime identifiers. It deliberately has no foreign key to videos so it
// survives video row replacement.
type ReleaseInfo struct {
	ID        int64
	ED2K      string
	SizeBytes int64
	Provider  string
	URI       string
	Revision  int
	Group     *GroupIdentity
	CrossRefs []CrossReference
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CrossReference maps a percentage range of a file to an episode.
type CrossReference struct {
	ID           int64
	ReleaseID    int64
	EpisodeID    int64
	AnimeID      int64 // 0 = unresolved
	PercentStart int
	PercentEnd   int
}

// ReleaseMatchAttempt is an audit record of one resolution attempt.
type ReleaseMatchAttempt struct {
	ID              int64
	AttemptID       string // correlation UUID
	ED2K            string
	SizeBytes       int64
	Providers       []string
	MatchedProvider string // empty if nothing matched
	StartedAt       time.Time
	EndedAt         *time.Time
}

// RelocationPipe is a named, persisted (provider, configuration) binding.
type RelocationPipe struct {
	ID         int64
	Name       string
	ProviderID string
	Config     []byte
	Default    bool
}

// FilenameHash is a reverse filename+size to canonical hash lookup, kept so
// files can be re-identified by name without re-hashing.
type FilenameHash struct {
	ID        int64
	Filename  string
	SizeBytes int64
	ED2K      string
	UpdatedAt time.Time
}
