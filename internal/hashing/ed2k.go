package hashing

import (
	"encoding/hex"
	"hash"
	"io"

	"golang.org/x/crypto/md4"
)

// ed2kChunkSize is the eMule chunk size the ED2K hash is defined over.
const ed2kChunkSize = 9728000

// ed2kDigest computes the ED2K hash incrementally: the MD4 of each 9500KiB
// chunk's MD4, or the plain MD4 for files of at most one chunk. Files whose
// size is an exact chunk multiple get a trailing empty-chunk digest, matching
// eMule's behavior.
type ed2kDigest struct {
	chunk      hash.Hash
	chunkLen   int
	chunkSums  []byte
	chunkCount int
}

func newED2K() *ed2kDigest {
	return &ed2kDigest{chunk: md4.New()}
}

func (d *ed2kDigest) Write(p []byte) (int, error) {
	written := len(p)
	for len(p) > 0 {
		room := ed2kChunkSize - d.chunkLen
		if room > len(p) {
			room = len(p)
		}
		d.chunk.Write(p[:room])
		d.chunkLen += room
		p = p[room:]
		if d.chunkLen == ed2kChunkSize {
			d.chunkSums = d.chunk.Sum(d.chunkSums)
			d.chunkCount++
			d.chunk.Reset()
			d.chunkLen = 0
		}
	}
	return written, nil
}

// Sum returns the final ED2K digest. Not resumable; call once.
func (d *ed2kDigest) Sum() []byte {
	if d.chunkCount == 0 {
		// Single-chunk file: the digest is the plain MD4.
		return d.chunk.Sum(nil)
	}
	// Flush the trailing (possibly empty) chunk, then hash the chunk sums.
	d.chunkSums = d.chunk.Sum(d.chunkSums)
	outer := md4.New()
	outer.Write(d.chunkSums)
	return outer.Sum(nil)
}

// ComputeED2K reads r to EOF and returns the lowercase hex ED2K digest.
func ComputeED2K(r io.Reader) (string, error) {
	d := newED2K()
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum()), nil
}
