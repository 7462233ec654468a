package relocation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/vmunix/animarr/internal/events"
	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/metadata"
	"github.com/vmunix/animarr/internal/retry"
	"github.com/vmunix/animarr/internal/watchguard"
	"github.com/vmunix/animarr/pkg/animeta"
)

// applyRetryDelays is the fixed backoff between attempts of a relocation that
// failed with a transient I/O error.
var applyRetryDelays = []time.Duration{750 * time.Millisecond, 3 * time.Second, 5 * time.Second}

// Config holds the engine's behavior switches.
type Config struct {
	MoveEnabled           bool
	RenameEnabled         bool
	RelocateInDestination bool
	DeleteEmptyDirs       bool
	SkipFreeSpaceCheck    bool

	// CleanupExcludePatterns are matched against absolute directory paths
	// during empty-directory cleanup; a match stops the upward walk.
	CleanupExcludePatterns []*regexp.Regexp
}

// Result describes one applied (or refused-as-no-op) relocation.
type Result struct {
	Moved   bool
	Renamed bool

	OldFolderID int64
	OldPath     string
	NewFolderID int64
	NewPath     string
}

// TargetResult is a computed, normalized placement ready for Apply.
type TargetResult struct {
	Folder       *library.ManagedFolder
	RelativePath string
}

// Engine computes and applies file placements.
type Engine struct {
	store    *library.Store
	registry *Registry
	meta     *metadata.Service
	bus      *events.Bus
	guard    *watchguard.Registry
	space    SpaceChecker
	cfg      Config
	log      *slog.Logger
}

// NewEngine creates a relocation engine. A nil space checker disables free
// space checks regardless of configuration.
func NewEngine(store *library.Store, registry *Registry, meta *metadata.Service, bus *events.Bus, guard *watchguard.Registry, space SpaceChecker, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if space == nil {
		cfg.SkipFreeSpaceCheck = true
		space = StatfsChecker{}
	}
	return &Engine{
		store:    store,
		registry: registry,
		meta:     meta,
		bus:      bus,
		guard:    guard,
		space:    space,
		cfg:      cfg,
		log:      log.With("component", "relocation"),
	}
}

// ComputeTarget builds the relocation context for the file, invokes the
// pipe's provider and normalizes its output. Policy refusals (excluded
// folder, destination-only, unrecognized, incomplete metadata) are returned
// as sentinel errors before the provider runs.
func (e *Engine) ComputeTarget(ctx context.Context, video *library.Video, loc *library.VideoFileLocation, pipe *library.RelocationPipe, moveEnabled, renameEnabled bool) (*TargetResult, error) {
	reg, ok := e.registry.Get(pipe.ProviderID)
	if !ok {
		return nil, fmt.Errorf("pipe %q: unknown provider %s", pipe.Name, pipe.ProviderID)
	}
	provider := reg.Provider

	folder, err := e.store.GetFolder(loc.FolderID)
	if err != nil {
		return nil, err
	}
	if folder.DropType == library.DropExcluded {
		return nil, fmt.Errorf("%w: %s", ErrExcludedFolder, folder.Name)
	}
	if folder.DropType == library.DropDestination && !e.cfg.RelocateInDestination {
		return nil, fmt.Errorf("%w: %s", ErrDestinationOnly, folder.Name)
	}

	release, err := e.store.GetRelease(video.ED2K, video.SizeBytes)
	if err != nil && !errors.Is(err, library.ErrNotFound) {
		return nil, err
	}
	if (release == nil || len(release.CrossRefs) == 0) && !provider.SupportsUnrecognized() {
		return nil, fmt.Errorf("%w: provider %s requires a release", ErrUnrecognized, provider.Name())
	}

	rc := &Context{
		Video:         video,
		Location:      loc,
		Folder:        folder,
		Release:       release,
		MoveEnabled:   moveEnabled,
		RenameEnabled: renameEnabled,
		Config:        pipe.Config,
	}
	if err := e.fillMetadata(ctx, rc); err != nil {
		return nil, err
	}
	if rc.incomplete() && !provider.SupportsIncompleteMetadata() {
		return nil, fmt.Errorf("%w: provider %s requires complete metadata", ErrIncompleteMetadata, provider.Name())
	}

	folders, err := e.store.ListFolders()
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		if f.DropType != library.DropExcluded {
			rc.Folders = append(rc.Folders, f)
		}
	}

	target, err := provider.ComputeTarget(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", provider.Name(), err)
	}
	if msg, failed := target.Failed(); failed {
		return nil, fmt.Errorf("provider %s: %s", provider.Name(), msg)
	}
	return e.normalizeTarget(folder, loc, target, moveEnabled, renameEnabled)
}

// fillMetadata loads candidate episode/anime metadata into the context.
// Missing entries are tolerated; the incomplete flag gates providers that
// cannot cope.
func (e *Engine) fillMetadata(ctx context.Context, rc *Context) error {
	if rc.Release == nil || e.meta == nil {
		return nil
	}
	for _, x := range rc.Release.CrossRefs {
		ep, err := e.meta.Episode(ctx, x.EpisodeID)
		if err != nil {
			rc.Episodes = append(rc.Episodes, nil)
			continue
		}
		rc.Episodes = append(rc.Episodes, ep)
	}
	for _, x := range rc.Release.CrossRefs {
		if x.AnimeID > 0 {
			if a, err := e.meta.Anime(ctx, x.AnimeID); err == nil {
				rc.Anime = a
			}
			break
		}
	}
	return nil
}

// incomplete reports whether any cross-referenced episode lacks metadata.
func (rc *Context) incomplete() bool {
	if rc.Release == nil {
		return false
	}
	if len(rc.Episodes) < len(rc.Release.CrossRefs) {
		return true
	}
	for _, ep := range rc.Episodes {
		if ep == nil {
			return true
		}
	}
	return false
}

// normalizeTarget folds directory components of the filename into the path,
// strips leading separators, and applies the move/rename enable flags.
func (e *Engine) normalizeTarget(current *library.ManagedFolder, loc *library.VideoFileLocation, t Target, moveEnabled, renameEnabled bool) (*TargetResult, error) {
	dir := library.NormalizeRelPath(t.Path)
	name := library.NormalizeRelPath(t.Filename)
	if idx := path.Dir(name); name != "" && idx != "." {
		dir = path.Join(dir, idx)
		name = path.Base(name)
	}

	currentDir := path.Dir(loc.RelativePath)
	if currentDir == "." {
		currentDir = ""
	}
	currentName := path.Base(loc.RelativePath)

	if !renameEnabled || name == "" {
		name = currentName
	}

	folder := current
	if moveEnabled {
		if t.FolderID != 0 && t.FolderID != current.ID {
			f, err := e.store.GetFolder(t.FolderID)
			if err != nil {
				return nil, err
			}
			folder = f
		}
	} else {
		folder = current
		dir = currentDir
	}
	if t.FolderID == 0 && t.Path == "" {
		dir = currentDir
	}

	rel := library.NormalizeRelPath(path.Join(dir, name))
	if rel == "" || rel == "." {
		return nil, ErrNoTarget
	}
	return &TargetResult{Folder: folder, RelativePath: rel}, nil
}

// Apply physically moves the file to (targetFolderID, targetRel) and persists
// the new placement. Transient I/O failures are wrapped with ErrTransient so
// callers can retry.
func (e *Engine) Apply(ctx context.Context, video *library.Video, loc *library.VideoFileLocation, targetFolderID int64, targetRel string, deleteEmptyDirs bool) (*Result, error) {
	targetRel = library.NormalizeRelPath(targetRel)
	if targetFolderID == 0 || targetRel == "" {
		return nil, ErrNoTarget
	}
	targetFolder, err := e.store.GetFolder(targetFolderID)
	if err != nil {
		return nil, err
	}
	srcFolder, err := e.store.GetFolder(loc.FolderID)
	if err != nil {
		return nil, err
	}

	absTarget := library.AbsolutePath(targetFolder, targetRel)
	if err := ValidatePath(absTarget, targetFolder.Path); err != nil {
		return nil, err
	}
	absSrc := library.AbsolutePath(srcFolder, loc.RelativePath)

	result := &Result{
		OldFolderID: srcFolder.ID,
		OldPath:     loc.RelativePath,
		NewFolderID: targetFolder.ID,
		NewPath:     targetRel,
	}

	// Move onto self is a successful no-op.
	if targetFolder.ID == srcFolder.ID && targetRel == loc.RelativePath {
		return result, nil
	}
	result.Moved = targetFolder.ID != srcFolder.ID || path.Dir(targetRel) != path.Dir(loc.RelativePath)
	result.Renamed = path.Base(targetRel) != path.Base(loc.RelativePath)

	if targetFolder.ID != srcFolder.ID && !e.cfg.SkipFreeSpaceCheck {
		free, err := e.space.Free(targetFolder.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		if free < video.SizeBytes+spaceMargin {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientSpace, targetFolder.Name)
		}
	}

	targetDir := filepath.Dir(absTarget)
	e.guard.Add(targetDir)
	defer e.guard.Remove(targetDir)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrTransient, targetDir, err)
	}

	if _, err := os.Stat(absTarget); err == nil {
		done, err := e.resolveConflict(video, loc, targetFolder, targetRel, absTarget, absSrc)
		if err != nil {
			return nil, err
		}
		if done {
			// The existing copy won; the mover's record is gone.
			result.Moved = false
			result.Renamed = false
			return result, nil
		}
	}

	e.guard.Add(absSrc)
	e.guard.Add(absTarget)
	moveErr := moveFile(absSrc, absTarget)
	e.guard.Remove(absSrc)
	e.guard.Remove(absTarget)
	if moveErr != nil {
		return nil, fmt.Errorf("%w: move %s: %v", ErrTransient, absSrc, moveErr)
	}

	oldDir := filepath.Dir(absSrc)
	loc.FolderID = targetFolder.ID
	loc.RelativePath = targetRel
	if err := e.store.UpdateLocation(loc); err != nil {
		return nil, err
	}

	e.migrateSidecars(absSrc, absTarget)

	if err := e.store.UpsertFilenameHash(path.Base(targetRel), video.SizeBytes, video.ED2K); err != nil {
		e.log.Warn("filename hash bookkeeping failed", "path", targetRel, "error", err)
	}

	if deleteEmptyDirs {
		e.cleanupEmptyDirs(srcFolder.Path, oldDir)
	}

	episodes, animes := e.referencedIDs(video)
	if e.bus != nil {
		_ = e.bus.Publish(ctx, &events.FileRelocated{
			BaseEvent:  events.NewBaseEvent(events.EventFileRelocated, events.EntityVideo, video.ID),
			VideoID:    video.ID,
			LocationID: loc.ID,
			OldFolder:  result.OldFolderID,
			OldPath:    result.OldPath,
			NewFolder:  result.NewFolderID,
			NewPath:    result.NewPath,
			Moved:      result.Moved,
			Renamed:    result.Renamed,
			Episodes:   episodes,
			Animes:     animes,
		})
	}
	e.log.Info("file relocated",
		"video_id", video.ID,
		"from", fmt.Sprintf("%d:%s", result.OldFolderID, result.OldPath),
		"to", fmt.Sprintf("%d:%s", result.NewFolderID, result.NewPath),
		"moved", result.Moved,
		"renamed", result.Renamed)
	return result, nil
}

// resolveConflict handles an occupied destination. Returns done=true when the
// conflict was resolved by keeping the existing copy (the caller's move is
// finished), done=false when the destination was cleared and the move may
// proceed.
func (e *Engine) resolveConflict(video *library.Video, loc *library.VideoFileLocation, targetFolder *library.ManagedFolder, targetRel, absTarget, absSrc string) (bool, error) {
	destLoc, err := e.store.GetLocationByPath(targetFolder.ID, targetRel)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			// Unknown file at the destination; never overwrite blind.
			e.log.Warn("destination occupied by unrecognized file", "path", absTarget)
			return false, fmt.Errorf("%w: %s is not a known video", ErrAmbiguousConflict, absTarget)
		}
		return false, err
	}
	destVideo, err := e.store.GetVideo(destLoc.VideoID)
	if err != nil {
		return false, err
	}

	// Bit-identical content already at the target: keep the earliest-known
	// copy and drop the mover's separate record and file.
	if destVideo.ED2K == video.ED2K {
		e.guard.Add(absSrc)
		rmErr := os.Remove(absSrc)
		e.guard.Remove(absSrc)
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: remove redundant copy %s: %v", ErrTransient, absSrc, rmErr)
		}
		if err := e.store.DeleteLocation(loc.ID); err != nil {
			return false, err
		}
		e.log.Info("redundant move, kept existing copy", "video_id", video.ID, "path", absTarget)
		return true, nil
	}

	srcRelease, err := e.store.GetRelease(video.ED2K, video.SizeBytes)
	if err != nil && !errors.Is(err, library.ErrNotFound) {
		return false, err
	}
	destRelease, err := e.store.GetRelease(destVideo.ED2K, destVideo.SizeBytes)
	if err != nil && !errors.Is(err, library.ErrNotFound) {
		return false, err
	}

	// Version supersession: same group and source, strictly lower revision at
	// the destination.
	if srcRelease != nil && destRelease != nil &&
		srcRelease.Group != nil && destRelease.Group != nil &&
		srcRelease.Group.ID == destRelease.Group.ID &&
		srcRelease.Group.Source == destRelease.Group.Source &&
		destRelease.Revision < srcRelease.Revision {
		e.guard.Add(absTarget)
		rmErr := os.Remove(absTarget)
		e.guard.Remove(absTarget)
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: remove superseded %s: %v", ErrTransient, absTarget, rmErr)
		}
		if _, err := e.store.DeleteLocationCascade(destLoc.ID); err != nil {
			return false, err
		}
		e.log.Info("superseded older revision at destination",
			"path", absTarget,
			"old_revision", destRelease.Revision,
			"new_revision", srcRelease.Revision)
		return false, nil
	}

	e.log.Warn("ambiguous duplicate at destination, refusing",
		"src_video", video.ID, "dest_video", destVideo.ID, "path", absTarget)
	return false, fmt.Errorf("%w: %s", ErrAmbiguousConflict, absTarget)
}

// Relocate computes the target via the given pipe and applies it, retrying
// the whole attempt on transient failures.
func (e *Engine) Relocate(ctx context.Context, video *library.Video, loc *library.VideoFileLocation, pipe *library.RelocationPipe) (*Result, error) {
	if !e.cfg.MoveEnabled && !e.cfg.RenameEnabled {
		return nil, ErrDisabled
	}
	policy := retry.Policy[*Result]{
		Delays: applyRetryDelays,
		Retryable: func(_ *Result, err error) bool {
			return errors.Is(err, ErrTransient)
		},
	}
	return retry.Do(ctx, policy, func(ctx context.Context) (*Result, error) {
		target, err := e.ComputeTarget(ctx, video, loc, pipe, e.cfg.MoveEnabled, e.cfg.RenameEnabled)
		if err != nil {
			return nil, err
		}
		return e.Apply(ctx, video, loc, target.Folder.ID, target.RelativePath, e.cfg.DeleteEmptyDirs)
	})
}

// AutoRelocate applies the default pipe with configured defaults to every
// location of the video. Failures are logged, not propagated; this is the
// fire-and-forget hook the resolution engine triggers after a save.
func (e *Engine) AutoRelocate(ctx context.Context, video *library.Video) {
	pipe, _, err := e.registry.DefaultPipe()
	if err != nil {
		if !errors.Is(err, ErrNoPipe) {
			e.log.Warn("auto-relocate skipped", "video_id", video.ID, "error", err)
		}
		return
	}
	locations, err := e.store.ListLocations(video.ID)
	if err != nil {
		e.log.Warn("auto-relocate skipped", "video_id", video.ID, "error", err)
		return
	}
	for _, loc := range locations {
		if _, err := e.Relocate(ctx, video, loc, pipe); err != nil {
			e.log.Warn("auto-relocate failed", "video_id", video.ID, "location_id", loc.ID, "error", err)
		}
	}
}

// DirectRelocate applies a user-directed placement, skipping provider
// computation.
func (e *Engine) DirectRelocate(ctx context.Context, video *library.Video, loc *library.VideoFileLocation, targetFolderID int64, targetRel string) (*Result, error) {
	return e.Apply(ctx, video, loc, targetFolderID, targetRel, e.cfg.DeleteEmptyDirs)
}

// FirstDestinationWithSpace returns the first destination-flagged managed
// folder with room for size bytes, or the first destination at all when
// space-checking is disabled. Returns ErrInsufficientSpace when none fits.
func (e *Engine) FirstDestinationWithSpace(size int64) (*library.ManagedFolder, error) {
	folders, err := e.store.ListFolders()
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		if !f.DropType.IsDestination() {
			continue
		}
		if e.cfg.SkipFreeSpaceCheck {
			return f, nil
		}
		free, err := e.space.Free(f.Path)
		if err != nil {
			e.log.Warn("destination unreachable", "folder", f.Name, "error", err)
			continue
		}
		if free >= size+spaceMargin {
			return f, nil
		}
	}
	return nil, ErrInsufficientSpace
}

// ExistingSeriesLocation finds the placement of the most recently aired
// sibling episode of the same series, so new episodes land next to existing
// ones. Returns nil when no suitable sibling exists.
func (e *Engine) ExistingSeriesLocation(ctx context.Context, video *library.Video, animeID int64, currentDir string) (*library.ManagedFolder, string, error) {
	if e.meta == nil || animeID <= 0 {
		return nil, "", nil
	}
	anime, err := e.meta.Anime(ctx, animeID)
	if err != nil {
		return nil, "", nil
	}

	var best *library.VideoFileLocation
	var bestFolder *library.ManagedFolder
	var bestAired time.Time
	for _, ep := range anime.Episodes {
		sibling := e.siblingLocation(ctx, ep)
		if sibling == nil || ep.AiredAt == nil || !ep.AiredAt.After(bestAired) {
			continue
		}
		folder, err := e.store.GetFolder(sibling.FolderID)
		if err != nil {
			continue
		}
		dir := path.Dir(sibling.RelativePath)
		if library.AbsolutePath(folder, dir) == currentDir {
			continue
		}
		if !e.cfg.SkipFreeSpaceCheck {
			free, err := e.space.Free(folder.Path)
			if err != nil || free < video.SizeBytes+spaceMargin {
				continue
			}
		}
		best = sibling
		bestFolder = folder
		bestAired = *ep.AiredAt
	}
	if best == nil {
		return nil, "", nil
	}
	return bestFolder, path.Dir(best.RelativePath), nil
}

// siblingLocation finds a persisted location of any video bound to the given
// episode, skipping videos whose release spans multiple animes.
func (e *Engine) siblingLocation(_ context.Context, ep animeta.EpisodeInfo) *library.VideoFileLocation {
	release, err := e.store.GetReleaseByEpisode(ep.ID)
	if err != nil {
		return nil
	}
	seen := make(map[int64]bool)
	for _, x := range release.CrossRefs {
		if x.AnimeID > 0 {
			seen[x.AnimeID] = true
		}
	}
	if len(seen) > 1 {
		return nil
	}
	v, err := e.store.GetVideoByED2K(release.ED2K)
	if err != nil {
		return nil
	}
	locations, err := e.store.ListLocations(v.ID)
	if err != nil || len(locations) == 0 {
		return nil
	}
	return locations[0]
}

// referencedIDs returns the distinct episode and anime IDs bound to the
// video, for event payloads.
func (e *Engine) referencedIDs(video *library.Video) (episodes, animes []int64) {
	release, err := e.store.GetRelease(video.ED2K, video.SizeBytes)
	if err != nil {
		return nil, nil
	}
	seenEp := make(map[int64]bool)
	seenAn := make(map[int64]bool)
	for _, x := range release.CrossRefs {
		if !seenEp[x.EpisodeID] {
			seenEp[x.EpisodeID] = true
			episodes = append(episodes, x.EpisodeID)
		}
		if x.AnimeID > 0 && !seenAn[x.AnimeID] {
			seenAn[x.AnimeID] = true
			animes = append(animes, x.AnimeID)
		}
	}
	return episodes, animes
}

// moveFile renames src to dst, falling back to copy-and-delete across
// filesystem boundaries.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
