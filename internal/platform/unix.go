//go:build !windows

package platform

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

// UnixPlatform checks access with access(2) and free space with statfs.
type UnixPlatform struct {
	usage usageFunc
}

// New creates the platform preflight for the running OS.
func New() Preflight {
	return &UnixPlatform{usage: disk.Usage}
}

// Name returns the platform identifier.
func (p *UnixPlatform) Name() string { return "unix" }

// CheckDestination implements Preflight.
func (p *UnixPlatform) CheckDestination(dir string, size int64) error {
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, err)
	}
	return checkFreeSpace(p.usage, dir, size)
}
