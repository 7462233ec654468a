// Package hashing computes canonical content identities for video files and
// reconciles them against previously known videos.
package hashing

import (
	"context"
	"errors"

	"github.com/vmunix/animarr/internal/library"
)

// Engine-level sentinel errors.
var (
	// ErrFileNotFound indicates the source file or symlink target is gone.
	// Terminal - never retried.
	ErrFileNotFound = errors.New("file not found")

	// ErrEmptyFile indicates the file probed to a size of zero.
	ErrEmptyFile = errors.New("file has zero size")

	// ErrNotVideo indicates content sniffing did not recognize a video container.
	ErrNotVideo = errors.New("not a recognized video container")

	// ErrMissingCanonical indicates no provider produced the canonical ED2K
	// digest. The registry invariant should make this unreachable.
	ErrMissingCanonical = errors.New("canonical hash missing from provider results")
)

// Request carries everything a hash provider needs for one file.
type Request struct {
	Path string
	Size int64

	// Types lists the hash types this provider must produce.
	Types []string

	// Existing holds the caller's current digests. A provider may return an
	// existing value unchanged instead of recomputing it.
	Existing []library.HashDigest
}

// Provider computes typed hash digests for a file.
//
// A provider error aborts the whole ComputeHashes call; providers wanting
// partial-result tolerance must not return errors for individual types.
type Provider interface {
	// Name identifies the provider within its plugin.
	Name() string

	// HashTypes lists the digest types this provider can produce.
	HashTypes() []string

	// Hash produces digests for the requested types.
	Hash(ctx context.Context, req Request) ([]library.HashDigest, error)
}
