package hashing

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"

	"crypto/md5"
	"crypto/sha1"

	"github.com/vmunix/animarr/internal/library"
)

// CoreProvider is the built-in fallback provider. It can produce every
// supported hash type and reads the file exactly once regardless of how many
// types are requested. The registry guarantees the canonical ED2K type is
// assigned to it when no other provider claims it.
type CoreProvider struct{}

// NewCoreProvider creates the built-in hash provider.
func NewCoreProvider() *CoreProvider { return &CoreProvider{} }

func (p *CoreProvider) Name() string { return "core" }

func (p *CoreProvider) HashTypes() []string {
	return []string{library.HashTypeED2K, library.HashTypeCRC32, library.HashTypeMD5, library.HashTypeSHA1}
}

func (p *CoreProvider) Hash(ctx context.Context, req Request) ([]library.HashDigest, error) {
	existing := make(map[string]library.HashDigest, len(req.Existing))
	for _, d := range req.Existing {
		existing[d.Type] = d
	}

	var out []library.HashDigest
	var compute []string
	for _, t := range req.Types {
		if d, ok := existing[t]; ok && d.Value != "" {
			// Reuse the caller's digest instead of re-reading the file.
			out = append(out, library.HashDigest{Type: d.Type, Value: d.Value, Metadata: d.Metadata})
			continue
		}
		compute = append(compute, t)
	}
	if len(compute) == 0 {
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", req.Path, err)
	}
	defer func() { _ = f.Close() }()

	var ed2k *ed2kDigest
	sums := make(map[string]hash.Hash)
	var writers []io.Writer
	for _, t := range compute {
		switch t {
		case library.HashTypeED2K:
			ed2k = newED2K()
			writers = append(writers, ed2k)
		case library.HashTypeCRC32:
			h := crc32.NewIEEE()
			sums[t] = h
			writers = append(writers, h)
		case library.HashTypeMD5:
			h := md5.New()
			sums[t] = h
			writers = append(writers, h)
		case library.HashTypeSHA1:
			h := sha1.New()
			sums[t] = h
			writers = append(writers, h)
		default:
			return nil, fmt.Errorf("unsupported hash type %q", t)
		}
	}

	if _, err := copyContext(ctx, io.MultiWriter(writers...), f); err != nil {
		return nil, fmt.Errorf("hash %s: %w", req.Path, err)
	}

	for _, t := range compute {
		var value string
		if t == library.HashTypeED2K {
			value = hex.EncodeToString(ed2k.Sum())
		} else {
			value = hex.EncodeToString(sums[t].Sum(nil))
		}
		out = append(out, library.HashDigest{Type: t, Value: value})
	}
	return out, nil
}

// copyContext copies r to w in blocks, honoring cancellation between blocks.
func copyContext(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, 1<<20)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
