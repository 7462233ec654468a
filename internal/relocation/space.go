package relocation

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// spaceMargin is extra headroom required beyond the file size, so a move
// never fills a volume to the last byte.
const spaceMargin = 64 << 20

// SpaceChecker reports free space on the volume holding a path.
type SpaceChecker interface {
	Free(path string) (int64, error)
}

// StatfsChecker queries the filesystem via statfs.
type StatfsChecker struct{}

func (StatfsChecker) Free(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(st.Bavail) * st.Bsize, nil
}
