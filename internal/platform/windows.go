//go:build windows

package platform

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/disk"
)

// WindowsPlatform checks writability by creating a file in the directory;
// the read-only attribute is meaningless on Windows directories.
type WindowsPlatform struct {
	usage usageFunc
}

// New creates the platform preflight for the running OS.
func New() Preflight {
	return &WindowsPlatform{usage: disk.Usage}
}

// Name returns the platform identifier.
func (p *WindowsPlatform) Name() string { return "windows" }

// CheckDestination implements Preflight.
func (p *WindowsPlatform) CheckDestination(dir string, size int64) error {
	f, err := os.CreateTemp(dir, ".pagegen-write-check-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return checkFreeSpace(p.usage, dir, size)
}
