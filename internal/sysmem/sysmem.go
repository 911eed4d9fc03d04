// Package sysmem reports host memory as seen through procfs.
package sysmem

import (
	"errors"
	"fmt"

	"github.com/prometheus/procfs"
)

// Snapshot is the host's physical memory at one point in time.
type Snapshot struct {
	TotalMB     int
	AvailableMB int
}

// UsedMB is memory not available to new processes.
func (s Snapshot) UsedMB() int { return s.TotalMB - s.AvailableMB }

// UsedPercent is UsedMB as a share of TotalMB, rounded to one decimal.
func (s Snapshot) UsedPercent() float64 {
	if s.TotalMB <= 0 {
		return 0
	}
	return float64(s.UsedMB()*1000/s.TotalMB) / 10
}

// Host reads the snapshot from the default /proc mount. It fails on systems
// without procfs.
func Host() (Snapshot, error) {
	return Read(procfs.DefaultMountPoint)
}

// Read parses meminfo under procRoot. Kernels without MemAvailable fall back
// to MemFree plus Buffers and Cached.
func Read(procRoot string) (Snapshot, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open procfs: %w", err)
	}
	mi, err := fs.Meminfo()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read meminfo: %w", err)
	}
	if mi.MemTotalBytes == nil {
		return Snapshot{}, errors.New("meminfo has no MemTotal")
	}
	var avail uint64
	if mi.MemAvailableBytes != nil {
		avail = *mi.MemAvailableBytes
	} else {
		for _, v := range []*uint64{mi.MemFreeBytes, mi.BuffersBytes, mi.CachedBytes} {
			if v != nil {
				avail += *v
			}
		}
	}
	return Snapshot{TotalMB: int(*mi.MemTotalBytes >> 20), AvailableMB: int(avail >> 20)}, nil
}
