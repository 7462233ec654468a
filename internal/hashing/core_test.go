package hashing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/animarr/internal/library"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestCoreProvider_KnownDigests(t *testing.T) {
	path := writeTempFile(t, []byte("hello world"))
	p := NewCoreProvider()

	digests, err := p.Hash(context.Background(), Request{
		Path:  path,
		Size:  11,
		Types: []string{library.HashTypeCRC32, library.HashTypeMD5, library.HashTypeSHA1},
	})
	require.NoError(t, err)
	require.Len(t, digests, 3)

	byType := map[string]string{}
	for _, d := range digests {
		byType[d.Type] = d.Value
	}
	assert.Equal(t, "0d4a1185", byType[library.HashTypeCRC32])
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", byType[library.HashTypeMD5])
	assert.Equal(t, "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed", byType[library.HashTypeSHA1])
}

func TestCoreProvider_SingleRead(t *testing.T) {
	path := writeTempFile(t, []byte("abc"))
	p := NewCoreProvider()

	digests, err := p.Hash(context.Background(), Request{
		Path:  path,
		Size:  3,
		Types: []string{library.HashTypeED2K, library.HashTypeMD5},
	})
	require.NoError(t, err)
	require.Len(t, digests, 2)
	assert.Equal(t, "a448017aaf21d8525fc10ae87aa6729d", digests[0].Value, "ED2K of a sub-chunk file is its MD4")
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", digests[1].Value)
}

func TestCoreProvider_ReusesExistingDigests(t *testing.T) {
	path := writeTempFile(t, []byte("current content"))
	p := NewCoreProvider()

	digests, err := p.Hash(context.Background(), Request{
		Path:  path,
		Size:  15,
		Types: []string{library.HashTypeMD5},
		Existing: []library.HashDigest{
			{Type: library.HashTypeMD5, Value: "cached-value"},
		},
	})
	require.NoError(t, err)
	require.Len(t, digests, 1)
	assert.Equal(t, "cached-value", digests[0].Value, "existing digest returned without re-reading")
}

func TestCoreProvider_UnsupportedType(t *testing.T) {
	path := writeTempFile(t, []byte("x"))
	p := NewCoreProvider()

	_, err := p.Hash(context.Background(), Request{Path: path, Types: []string{"XXHASH"}})
	assert.ErrorContains(t, err, "unsupported hash type")
}

func TestCoreProvider_CanceledContext(t *testing.T) {
	path := writeTempFile(t, []byte("data"))
	p := NewCoreProvider()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Hash(ctx, Request{Path: path, Types: []string{library.HashTypeMD5}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoreProvider_MissingFile(t *testing.T) {
	p := NewCoreProvider()

	_, err := p.Hash(context.Background(), Request{
		Path:  filepath.Join(t.TempDir(), "gone.mkv"),
		Types: []string{library.HashTypeMD5},
	})
	assert.Error(t, err)
}
