package device

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// Mount is one entry of the host mount table.
type Mount struct {
	Source     string
	MountPoint string
}

// MountLister lists mounted filesystems.
type MountLister interface {
	Mounts(ctx context.Context) ([]Mount, error)
}

// SystemMounts implements MountLister using gopsutil.
// lsblk only reports one mount point per partition on older util-linux
// releases, so the host mount table is merged in as well.
type SystemMounts struct{}

// NewSystemMounts creates a mount lister for the running host.
func NewSystemMounts() *SystemMounts {
	return &SystemMounts{}
}

// Mounts returns every mounted filesystem, including pseudo filesystems.
func (SystemMounts) Mounts(ctx context.Context) ([]Mount, error) {
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list mounted partitions: %w", err)
	}

	mounts := make([]Mount, 0, len(parts))
	for _, p := range parts {
		mounts = append(mounts, Mount{Source: p.Device, MountPoint: p.Mountpoint})
	}
	return mounts, nil
}

// StaticMounts is a fixed mount table, used when the host table is not wanted.
type StaticMounts []Mount

// Mounts returns the fixed table.
func (s StaticMounts) Mounts(context.Context) ([]Mount, error) {
	return s, nil
}
