package relocation

import "errors"

var (
	// ErrExcludedFolder refuses to relocate out of an excluded managed folder.
	ErrExcludedFolder = errors.New("file is in an excluded folder")

	// ErrDestinationOnly refuses in-destination relocation when disabled.
	ErrDestinationOnly = errors.New("in-destination relocation is disabled")

	// ErrUnrecognized refuses files without release cross-references when the
	// provider does not support them.
	ErrUnrecognized = errors.New("file is unrecognized")

	// ErrIncompleteMetadata refuses files whose episode metadata is incomplete
	// when the provider demands complete metadata.
	ErrIncompleteMetadata = errors.New("episode metadata is incomplete")

	// ErrNoTarget indicates the provider produced neither a new name nor a
	// new path.
	ErrNoTarget = errors.New("provider produced no target")

	// ErrPathTraversal indicates the resolved target escapes the managed
	// folder root.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrInsufficientSpace refuses a move into a folder without room.
	ErrInsufficientSpace = errors.New("insufficient free space")

	// ErrAmbiguousConflict refuses to overwrite an unrelated or equal-version
	// file at the destination.
	ErrAmbiguousConflict = errors.New("ambiguous destination conflict")

	// ErrDisabled short-circuits when both move and rename are disabled.
	ErrDisabled = errors.New("both move and rename are disabled")

	// ErrNoPipe indicates no relocation pipe is configured.
	ErrNoPipe = errors.New("no relocation pipe configured")

	// ErrTransient marks a failure worth retrying (file lock, share
	// violation). Callers match it with errors.Is.
	ErrTransient = errors.New("transient i/o failure")
)
