package hashing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/animarr/internal/events"
	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/retry"
	"github.com/vmunix/animarr/internal/watchguard"
)

// sizeProbeDelays is the fixed backoff for the file-size probe; a locked file
// usually frees up within a couple of seconds.
var sizeProbeDelays = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}

// Config holds the engine's behavior switches.
type Config struct {
	// Parallel runs all providers concurrently instead of in priority order.
	Parallel bool

	// AutoDeleteDuplicates physically removes newer duplicate copies.
	AutoDeleteDuplicates bool

	// EnabledTypes lists the hash types to compute. ED2K is always included.
	EnabledTypes []string
}

// Prober refreshes technical media metadata after hashing. Optional.
type Prober interface {
	Probe(ctx context.Context, path string) error
}

// Engine derives canonical content identities and merges them with existing
// video records.
type Engine struct {
	store    *library.Store
	registry *Registry
	bus      *events.Bus
	guard    *watchguard.Registry
	prober   Prober // may be nil
	cfg      Config
	log      *slog.Logger
}

// NewEngine creates a hashing engine.
func NewEngine(store *library.Store, registry *Registry, bus *events.Bus, guard *watchguard.Registry, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	hasED2K := false
	for _, t := range cfg.EnabledTypes {
		if t == library.HashTypeED2K {
			hasED2K = true
		}
	}
	if !hasED2K {
		cfg.EnabledTypes = append([]string{library.HashTypeED2K}, cfg.EnabledTypes...)
	}
	return &Engine{
		store:    store,
		registry: registry,
		bus:      bus,
		guard:    guard,
		cfg:      cfg,
		log:      log.With("component", "hashing"),
	}
}

// SetProber installs an optional technical-metadata prober.
func (e *Engine) SetProber(p Prober) { e.prober = p }

// Result describes the outcome of GetOrCreateIdentity.
type Result struct {
	Video    *library.Video
	Location *library.VideoFileLocation

	NewVideo     bool
	NewLocation  bool
	ReusedHashes bool

	// DuplicateHandled is set when this location was removed as a physical
	// duplicate; downstream stages must skip the file.
	DuplicateHandled bool
}

// ComputeHashes runs every enabled provider over the file and merges the
// results onto the existing digest set. In parallel mode results are
// re-ordered by provider priority before merging, so for deterministic
// providers both modes produce identical output.
//
// A provider error aborts the whole call.
func (e *Engine) ComputeHashes(ctx context.Context, path string, size int64, existing []library.HashDigest) ([]library.HashDigest, error) {
	type job struct {
		provider Provider
		types    []string
	}
	var jobs []job
	for _, reg := range e.registry.Enabled() {
		types := e.registry.TypesFor(reg.Info.ID, e.cfg.EnabledTypes)
		if len(types) == 0 {
			continue
		}
		jobs = append(jobs, job{provider: reg.Provider, types: types})
	}

	if !e.cfg.Parallel {
		acc := existing
		for _, j := range jobs {
			res, err := j.provider.Hash(ctx, Request{Path: path, Size: size, Types: j.types, Existing: acc})
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", j.provider.Name(), err)
			}
			acc = mergeDigests(acc, res)
		}
		return acc, nil
	}

	results := make([][]library.HashDigest, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			res, err := j.provider.Hash(gctx, Request{Path: path, Size: size, Types: j.types, Existing: existing})
			if err != nil {
				return fmt.Errorf("provider %s: %w", j.provider.Name(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in registration priority order for determinism.
	acc := existing
	for _, res := range results {
		acc = mergeDigests(acc, res)
	}
	return acc, nil
}

// mergeDigests overlays updates onto base: same-type entries are replaced in
// place, new types are appended in encounter order.
func mergeDigests(base, updates []library.HashDigest) []library.HashDigest {
	out := make([]library.HashDigest, len(base))
	copy(out, base)
	for _, u := range updates {
		replaced := false
		for i := range out {
			if out[i].Type == u.Type {
				out[i].Value = u.Value
				out[i].Metadata = u.Metadata
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, u)
		}
	}
	return out
}

// IdentifyFile resolves an absolute path to its managed folder and known
// video/location records. Symbolic links are resolved to their target first.
// When the placement is unknown a transient (unpersisted) pair is returned.
func (e *Engine) IdentifyFile(path string) (*library.Video, *library.VideoFileLocation, error) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, nil, fmt.Errorf("resolve symlinks: %w", err)
	}
	if _, err := os.Stat(real); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, real)
	}

	folder, rel, err := e.store.ResolvePath(real)
	if err != nil {
		return nil, nil, fmt.Errorf("identify %s: %w", real, err)
	}

	loc, err := e.store.GetLocationByPath(folder.ID, rel)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return &library.Video{}, &library.VideoFileLocation{FolderID: folder.ID, RelativePath: rel}, nil
		}
		return nil, nil, err
	}
	video, err := e.store.GetVideo(loc.VideoID)
	if err != nil {
		return nil, nil, err
	}
	return video, loc, nil
}

// GetOrCreateIdentity establishes (or re-validates) the content identity of
// one file and persists the video/location association. Content addressing
// wins: when the computed canonical hash matches an already-persisted video,
// the work re-targets onto that video instead of creating a duplicate.
func (e *Engine) GetOrCreateIdentity(ctx context.Context, video *library.Video, loc *library.VideoFileLocation, useExistingHashes bool) (*Result, error) {
	folder, err := e.store.GetFolder(loc.FolderID)
	if err != nil {
		return nil, err
	}
	abs := library.AbsolutePath(folder, loc.RelativePath)

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, abs)
	}

	size, err := e.probeSize(ctx, real)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, real)
	}

	// Cheap content check before spending a full read on hashing.
	isVideo, err := SniffVideo(real)
	if err != nil {
		return nil, fmt.Errorf("sniff %s: %w", real, err)
	}
	if !isVideo {
		return nil, fmt.Errorf("%w: %s", ErrNotVideo, real)
	}

	var existing []library.HashDigest
	if useExistingHashes && video.ID > 0 {
		existing, err = e.store.ListDigests(video.ID)
		if err != nil {
			return nil, err
		}
	}

	digests, err := e.ComputeHashes(ctx, real, size, existing)
	if err != nil {
		return nil, err
	}
	ed2k := ""
	for _, d := range digests {
		if d.Type == library.HashTypeED2K {
			ed2k = d.Value
			break
		}
	}
	if ed2k == "" {
		return nil, ErrMissingCanonical
	}

	result := &Result{ReusedHashes: len(existing) > 0}

	video, err = e.persistIdentity(video, ed2k, size, digests, result)
	if err != nil {
		return nil, err
	}
	loc, err = e.persistLocation(video, loc, result)
	if err != nil {
		return nil, err
	}
	result.Video = video
	result.Location = loc

	dupHandled, err := e.resolveDuplicates(video, loc)
	if err != nil {
		return nil, err
	}
	result.DuplicateHandled = dupHandled

	if !dupHandled {
		if err := e.store.UpsertFilenameHash(filepath.Base(real), size, ed2k); err != nil {
			e.log.Warn("filename hash bookkeeping failed", "path", real, "error", err)
		}
		if e.prober != nil && (result.NewVideo || !result.ReusedHashes) {
			if err := e.prober.Probe(ctx, real); err != nil {
				e.log.Warn("media metadata probe failed", "path", real, "error", err)
			}
		}
	}

	if e.bus != nil {
		_ = e.bus.Publish(ctx, &events.FileHashed{
			BaseEvent:    events.NewBaseEvent(events.EventFileHashed, events.EntityVideo, video.ID),
			VideoID:      video.ID,
			LocationID:   loc.ID,
			ED2K:         ed2k,
			SizeBytes:    size,
			NewVideo:     result.NewVideo,
			NewLocation:  result.NewLocation,
			ReusedHashes: result.ReusedHashes,
		})
	}

	e.log.Info("file hashed",
		"video_id", video.ID,
		"path", loc.RelativePath,
		"ed2k", ed2k,
		"size", size,
		"new_video", result.NewVideo,
		"duplicate_handled", result.DuplicateHandled)
	return result, nil
}

// probeSize determines the file size with a bounded retry loop tolerant of
// transient lock errors. Not-found is terminal.
func (e *Engine) probeSize(ctx context.Context, path string) (int64, error) {
	policy := retry.Policy[int64]{
		Delays: sizeProbeDelays,
		Retryable: func(_ int64, err error) bool {
			return err != nil && !errors.Is(err, fs.ErrNotExist)
		},
	}
	size, err := retry.Do(ctx, policy, func(context.Context) (int64, error) {
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return 0, fmt.Errorf("probe size %s: %w", path, err)
	}
	return size, nil
}

// persistIdentity creates, re-targets or updates the video row for the
// computed canonical hash and persists the digest delta.
func (e *Engine) persistIdentity(video *library.Video, ed2k string, size int64, digests []library.HashDigest, result *Result) (*library.Video, error) {
	known, err := e.store.GetVideoByED2K(ed2k)
	switch {
	case err == nil:
		// Content addressing takes precedence over the caller's working
		// object: converge onto the persisted record.
		video = known
	case errors.Is(err, library.ErrNotFound):
		if video.ID == 0 {
			video = &library.Video{ED2K: ed2k, SizeBytes: size}
			if err := e.store.AddVideo(video); err != nil {
				return nil, err
			}
			result.NewVideo = true
		} else {
			// The file at this location changed content in place.
			video.ED2K = ed2k
			video.SizeBytes = size
			if err := e.store.UpdateVideo(video); err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}

	// Persist only the digest delta, never blind-overwrite.
	old, err := e.store.ListDigests(video.ID)
	if err != nil {
		return nil, err
	}
	oldByType := make(map[string]library.HashDigest, len(old))
	for _, d := range old {
		oldByType[d.Type] = d
	}
	newTypes := make(map[string]bool, len(digests))
	for _, d := range digests {
		newTypes[d.Type] = true
		if prev, ok := oldByType[d.Type]; ok && prev.Value == d.Value && prev.Metadata == d.Metadata {
			continue
		}
		up := library.HashDigest{VideoID: video.ID, Type: d.Type, Value: d.Value, Metadata: d.Metadata}
		if err := e.store.UpsertDigest(&up); err != nil {
			return nil, err
		}
	}
	for _, d := range old {
		if !newTypes[d.Type] {
			if err := e.store.DeleteDigest(video.ID, d.Type); err != nil {
				return nil, err
			}
		}
	}
	return video, nil
}

// persistLocation binds the location to the (possibly re-targeted) video,
// cleaning up a video orphaned by the re-targeting.
func (e *Engine) persistLocation(video *library.Video, loc *library.VideoFileLocation, result *Result) (*library.VideoFileLocation, error) {
	if loc.ID == 0 {
		loc.VideoID = video.ID
		if err := e.store.AddLocation(loc); err != nil {
			if errors.Is(err, library.ErrDuplicate) {
				// Raced with a concurrent hash of the same placement.
				return e.store.GetLocationByPath(loc.FolderID, loc.RelativePath)
			}
			return nil, err
		}
		result.NewLocation = true
		return loc, nil
	}

	if loc.VideoID != video.ID {
		orphanCandidate := loc.VideoID
		loc.VideoID = video.ID
		if err := e.store.UpdateLocation(loc); err != nil {
			return nil, err
		}
		remaining, err := e.store.ListLocations(orphanCandidate)
		if err != nil {
			return nil, err
		}
		if len(remaining) == 0 {
			if err := e.store.DeleteVideo(orphanCandidate); err != nil {
				return nil, err
			}
			e.log.Info("deleted orphaned video after re-target", "video_id", orphanCandidate)
		}
	}
	return loc, nil
}
