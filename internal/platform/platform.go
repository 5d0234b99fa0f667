// Package platform provides OS-specific checks on the destination directory
// of a generated header. The embedder runs them before writing so that a
// read-only or full build volume is reported as such instead of surfacing as
// a half-written temp file.
package platform

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

var (
	// ErrNotWritable is returned when the current user may not create files
	// in the destination directory.
	ErrNotWritable = errors.New("directory is not writable")

	// ErrInsufficientSpace is returned when the destination volume cannot
	// hold the generated header.
	ErrInsufficientSpace = errors.New("insufficient free space")

	// ErrUsageUnavailable is returned when the free space of the destination
	// volume cannot be read. It is not fatal: callers log it and write anyway.
	ErrUsageUnavailable = errors.New("disk usage unavailable")
)

// Preflight checks a destination directory before a header of size bytes is
// written into it.
type Preflight interface {
	// CheckDestination returns ErrNotWritable or ErrInsufficientSpace
	// (wrapped) when the write is known to fail, and ErrUsageUnavailable
	// when free space could not be determined.
	CheckDestination(dir string, size int64) error

	// Name returns the platform name (unix, windows).
	Name() string
}

// usageFunc is disk.Usage, swapped in tests.
type usageFunc func(path string) (*disk.UsageStat, error)

// checkFreeSpace fails when the volume holding dir reports fewer free bytes
// than size. A volume whose usage cannot be read yields ErrUsageUnavailable.
func checkFreeSpace(usage usageFunc, dir string, size int64) error {
	stat, err := usage(dir)
	if err != nil {
		return fmt.Errorf("%w for %s: %v", ErrUsageUnavailable, dir, err)
	}
	if stat == nil || stat.Total == 0 {
		return fmt.Errorf("%w for %s: volume reports no size", ErrUsageUnavailable, dir)
	}
	if size > 0 && stat.Free < uint64(size) {
		return fmt.Errorf("%w on %s: need %d bytes, %d free", ErrInsufficientSpace, dir, size, stat.Free)
	}
	return nil
}
