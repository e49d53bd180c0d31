//go:build !linux

package ulp

import "errors"

// OpenFile is not available on non-Linux platforms.
func OpenFile(path string) (Memory, error) {
	return nil, errors.New("ulp: retained memory file not supported on this platform (requires Linux)")
}
