// Package resolution binds videos to canonical episode and anime identifiers
// using pluggable, priority-ordered release providers, and persists the
// winning binding.
package resolution

import (
	"context"
	"errors"

	"github.com/vmunix/animarr/internal/library"
)

// Sentinel errors.
var (
	// ErrNoCrossRefs rejects a release that maps to no episodes at all.
	ErrNoCrossRefs = errors.New("release has no cross-references")

	// ErrUnnormalizable rejects a release when a cross-reference could not be
	// normalized into a valid entry.
	ErrUnnormalizable = errors.New("release cross-references could not be normalized")
)

// Provider looks up release metadata for a video by its content identity.
// Implementations must honor context cancellation; a returned error aborts
// only this provider's attempt, not the whole search.
type Provider interface {
	// Name returns the provider's display name, also used as the release
	// provenance tag.
	Name() string

	// Search finds the release for the given content identity. A nil release
	// with a nil error means the provider has no match; an empty cross-
	// reference list is treated the same way by the engine.
	Search(ctx context.Context, video *library.Video) (*library.ReleaseInfo, error)
}
