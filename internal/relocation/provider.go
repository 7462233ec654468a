// Package relocation computes and applies new (folder, relative-path)
// placements for video files through pluggable providers, enforcing
// managed-folder policy and resolving destination conflicts.
package relocation

import (
	"context"
	"strings"

	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/pkg/animeta"
)

// ErrorSentinel is the marker a provider embeds in a returned filename or
// path to signal a handled failure without returning an error. Everything
// after the marker is the human-readable message.
const ErrorSentinel = "*error*: "

// Context is the immutable input a provider computes a target from.
type Context struct {
	Video    *library.Video
	Location *library.VideoFileLocation
	Folder   *library.ManagedFolder

	// Release is nil for unrecognized files.
	Release *library.ReleaseInfo

	// Episodes holds metadata for the release's cross-referenced episodes,
	// in cross-reference order. Entries may be missing when metadata is
	// incomplete.
	Episodes []*animeta.EpisodeInfo

	// Anime is the primary referenced series, when known.
	Anime *animeta.AnimeInfo

	// Folders lists every non-excluded managed folder.
	Folders []*library.ManagedFolder

	MoveEnabled   bool
	RenameEnabled bool

	// Config is the pipe's opaque provider configuration.
	Config []byte
}

// Target is a provider's computed placement. Filename and Path are combined
// and normalized by the engine; either may carry an ErrorSentinel marker.
type Target struct {
	// FolderID selects the destination managed folder; 0 keeps the current.
	FolderID int64

	// Path is the destination directory, relative to the folder root.
	Path string

	// Filename is the new file name; empty keeps the current name.
	Filename string
}

// Failed reports whether the target carries an embedded error sentinel, and
// returns the message when it does.
func (t Target) Failed() (string, bool) {
	for _, s := range []string{t.Filename, t.Path} {
		if strings.HasPrefix(s, ErrorSentinel) {
			return strings.TrimPrefix(s, ErrorSentinel), true
		}
	}
	return "", false
}

// Provider computes placements for video files.
type Provider interface {
	Name() string

	// SupportsUnrecognized reports whether the provider can place files that
	// have no release cross-references.
	SupportsUnrecognized() bool

	// SupportsIncompleteMetadata reports whether the provider can place files
	// whose episode metadata is only partially resolved.
	SupportsIncompleteMetadata() bool

	// ComputeTarget derives the new placement from the relocation context.
	ComputeTarget(ctx context.Context, rc *Context) (Target, error)
}
