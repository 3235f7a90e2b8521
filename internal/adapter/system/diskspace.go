package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/bnema/scenefetch/internal/port"
)

// DiskSpace reports free space through gopsutil.
type DiskSpace struct{}

func NewDiskSpace() *DiskSpace {
	return &DiskSpace{}
}

// FreeBytes measures the nearest existing ancestor of path, since session
// directories are checked before they are created.
func (d *DiskSpace) FreeBytes(ctx context.Context, path string) (uint64, error) {
	usage, err := d.Usage(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

func (d *DiskSpace) Usage(ctx context.Context, path string) (*disk.UsageStat, error) {
	dir, err := existingAncestor(path)
	if err != nil {
		return nil, err
	}
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("disk usage %s: %w", dir, err)
	}
	return usage, nil
}

func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		abs = parent
	}
}

var _ port.SpaceChecker = (*DiskSpace)(nil)
