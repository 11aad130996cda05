//go:build !linux

package segment

import "os"

// preallocate has no portable equivalent of fallocate outside Linux; on
// other platforms it is a deliberate no-op rather than an error, consistent
// with the engine's "best-effort, never fails segment creation" contract.
func preallocate(f *os.File, size int64) error {
	_ = f
	_ = size
	return nil
}
