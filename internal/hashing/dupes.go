package hashing

import (
	"errors"
	"io/fs"
	"os"

	"github.com/vmunix/animarr/internal/library"
)

// resolveDuplicates enumerates all locations of the video, drops records whose
// file disappeared, and handles surviving physical duplicates. The
// first-discovered location is kept; with auto-delete enabled every newer copy
// is removed from disk and from the store. Returns true when the current
// location itself was removed, so the caller skips downstream bookkeeping for
// it.
func (e *Engine) resolveDuplicates(video *library.Video, current *library.VideoFileLocation) (bool, error) {
	locations, err := e.store.ListLocations(video.ID)
	if err != nil {
		return false, err
	}

	var surviving []*library.VideoFileLocation
	for _, loc := range locations {
		abs, err := e.locationPath(loc)
		if err != nil {
			return false, err
		}
		if _, err := os.Stat(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				e.log.Info("dropping location with missing file", "video_id", video.ID, "path", abs)
				if err := e.store.DeleteLocation(loc.ID); err != nil {
					return false, err
				}
				continue
			}
			return false, err
		}
		surviving = append(surviving, loc)
	}
	if len(surviving) < 2 {
		return false, nil
	}

	// ListLocations orders oldest first with a lexicographic tie-break, so the
	// keeper is deterministic even when two copies arrived in the same tick.
	keeper := surviving[0]
	e.log.Warn("physical duplicate detected",
		"video_id", video.ID,
		"copies", len(surviving),
		"keeping", keeper.RelativePath,
		"auto_delete", e.cfg.AutoDeleteDuplicates)
	if !e.cfg.AutoDeleteDuplicates {
		return false, nil
	}

	currentRemoved := false
	for _, loc := range surviving[1:] {
		abs, err := e.locationPath(loc)
		if err != nil {
			return currentRemoved, err
		}
		e.guard.Add(abs)
		rmErr := os.Remove(abs)
		e.guard.Remove(abs)
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			e.log.Warn("failed to delete duplicate file", "path", abs, "error", rmErr)
			continue
		}
		if err := e.store.DeleteLocation(loc.ID); err != nil {
			return currentRemoved, err
		}
		e.log.Info("deleted duplicate copy", "video_id", video.ID, "path", abs)
		if loc.ID == current.ID {
			currentRemoved = true
		}
	}
	return currentRemoved, nil
}

func (e *Engine) locationPath(loc *library.VideoFileLocation) (string, error) {
	folder, err := e.store.GetFolder(loc.FolderID)
	if err != nil {
		return "", err
	}
	return library.AbsolutePath(folder, loc.RelativePath), nil
}
