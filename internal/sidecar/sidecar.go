// Package sidecar discovers external subtitle files that travel with a video.
package sidecar

import (
	"os"
	"path/filepath"
	"strings"
)

// subtitleExts are the sidecar extensions migrated alongside a video file.
var subtitleExts = map[string]bool{
	".srt": true,
	".ass": true,
	".ssa": true,
	".sub": true,
	".idx": true,
	".vtt": true,
	".smi": true,
}

// IsSubtitleFile reports whether the path has a known subtitle extension.
func IsSubtitleFile(path string) bool {
	return subtitleExts[strings.ToLower(filepath.Ext(path))]
}

// Find returns the subtitle files sitting next to videoPath whose names start
// with the video's base name (so "show.mkv" matches "show.srt" and
// "show.eng.srt"). Results are sorted by name.
func Find(videoPath string) ([]string, error) {
	dir := filepath.Dir(videoPath)
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var results []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !IsSubtitleFile(name) {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem == base || strings.HasPrefix(stem, base+".") {
			results = append(results, filepath.Join(dir, name))
		}
	}
	return results, nil
}
