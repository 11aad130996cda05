//go:build linux

package segment

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate extends f to size bytes using fallocate, without changing the
// file's logical write position.
func preallocate(f *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	return unix.Fallocate(int(f.Fd()), 0, 0, size)
}
