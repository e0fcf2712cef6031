package container

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sanitization errors
var (
	ErrTooSmall       = errors.New("too small file size for container")
	ErrTooLarge       = errors.New("too large file size for container")
	ErrLengthMismatch = errors.New("logical length is larger than file size")
	ErrShortRead      = errors.New("stream ended before logical length")
)

// ConstructionError reports a container that could not be built from its
// source: unreadable file, bad declared size or size/capacity mismatch.
type ConstructionError struct {
	Path string
	Err  error
}

func (e *ConstructionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("construct container: %v", e.Err)
	}
	return fmt.Sprintf("construct container %s: %v", e.Path, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// MappingError reports a failed memory-map request. On Linux this is usually
// ENOMEM caused by vm.max_map_count being exhausted.
type MappingError struct {
	Path string
	Size int
	Err  error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("map container %s (%d bytes): %v", e.Path, e.Size, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }
