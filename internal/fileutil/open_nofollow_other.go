//go:build !unix

package fileutil

import "os"

// OpenNoFollow opens a file read-only. Symlinks are followed on platforms
// without O_NOFOLLOW.
func OpenNoFollow(path string) (*os.File, error) {
	return os.Open(path)
}
