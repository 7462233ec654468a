package sidecar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSubtitleFile(t *testing.T) {
	assert.True(t, IsSubtitleFile("ep.srt"))
	assert.True(t, IsSubtitleFile("ep.ASS"))
	assert.True(t, IsSubtitleFile("/abs/path/ep.vtt"))
	assert.False(t, IsSubtitleFile("ep.mkv"))
	assert.False(t, IsSubtitleFile("ep.txt"))
	assert.False(t, IsSubtitleFile("srt"))
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	write("show - 01.mkv")
	write("show - 01.srt")
	write("show - 01.eng.srt")
	write("show - 01.full.eng.ass")
	write("show - 010.srt") // different episode, stem does not match
	write("other.srt")
	write("show - 01.nfo") // not a subtitle

	subs, err := Find(filepath.Join(dir, "show - 01.mkv"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "show - 01.eng.srt"),
		filepath.Join(dir, "show - 01.full.eng.ass"),
		filepath.Join(dir, "show - 01.srt"),
	}, subs)
}

func TestFind_NoSidecars(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ep.mkv"), []byte("x"), 0o644))

	subs, err := Find(filepath.Join(dir, "ep.mkv"))
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestFind_MissingDir(t *testing.T) {
	_, err := Find("/does/not/exist/ep.mkv")
	assert.Error(t, err)
}
