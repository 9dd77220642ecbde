package backend

import (
	"context"
	"runtime"
	"sort"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/tomek7667/devconsole/internal/domain"
	"go.uber.org/zap"
)

type diskMeta struct {
	DriveType string
	Model     string
}

var ignoredFSTypes = map[string]struct{}{
	"autofs":     {},
	"cgroup":     {},
	"cgroup2":    {},
	"configfs":   {},
	"debugfs":    {},
	"devfs":      {},
	"devpts":     {},
	"devtmpfs":   {},
	"fusectl":    {},
	"hugetlbfs":  {},
	"mqueue":     {},
	"proc":       {},
	"pstore":     {},
	"overlay":    {},
	"squashfs":   {},
	"securityfs": {},
	"sysfs":      {},
	"tmpfs":      {},
	"tracefs":    {},
}

// blockMeta maps mountpoints to drive labels. ghw may be unavailable in
// containers; volumes are still reported without labels then.
func blockMeta() (map[string]diskMeta, error) {
	info, err := ghw.Block()
	if err != nil {
		return nil, err
	}
	meta := make(map[string]diskMeta)
	for _, d := range info.Disks {
		model := normalizeSpaces(strings.TrimSpace(d.Vendor + " " + d.Model))
		driveType := diskTypeLabel(d.DriveType.String(), d.StorageController.String())
		for _, p := range d.Partitions {
			if p == nil || p.MountPoint == "" {
				continue
			}
			meta[p.MountPoint] = diskMeta{DriveType: driveType, Model: model}
		}
	}
	return meta, nil
}

func selectMountpoints(parts []disk.PartitionStat) []string {
	selected := make(map[string]struct{})

	switch runtime.GOOS {
	case "linux":
		selected["/"] = struct{}{}
		for _, p := range parts {
			mp := strings.TrimSpace(p.Mountpoint)
			if mp == "" || mp == "/" {
				continue
			}
			if _, ignore := ignoredFSTypes[p.Fstype]; ignore {
				continue
			}
			if mp == "/mnt" || strings.HasPrefix(mp, "/mnt/") || strings.HasPrefix(mp, "/media/") || strings.HasPrefix(mp, "/run/media/") {
				selected[mp] = struct{}{}
				continue
			}
			dev := strings.TrimSpace(p.Device)
			if strings.HasPrefix(dev, "/dev/") && !strings.Contains(dev, "loop") {
				selected[mp] = struct{}{}
			}
		}
	case "windows":
		for _, p := range parts {
			mp := p.Mountpoint
			if len(mp) >= 2 && mp[1] == ':' {
				selected[mp] = struct{}{}
			}
		}
	default:
		selected["/"] = struct{}{}
	}

	if len(selected) == 0 {
		for _, p := range parts {
			if p.Mountpoint != "" {
				selected[p.Mountpoint] = struct{}{}
				break
			}
		}
	}

	out := make([]string, 0, len(selected))
	for mp := range selected {
		out = append(out, mp)
	}
	sort.Strings(out)
	return out
}

func (l *Local) scanVolumes(ctx context.Context, _ Args) (any, error) {
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	partsByMount := make(map[string]disk.PartitionStat, len(parts))
	for _, p := range parts {
		if _, ok := partsByMount[p.Mountpoint]; !ok && p.Mountpoint != "" {
			partsByMount[p.Mountpoint] = p
		}
	}

	meta, metaErr := blockMeta()
	if metaErr != nil {
		l.log.Debug("block metadata unavailable", zap.Error(metaErr))
	}

	mountpoints := selectMountpoints(parts)
	out := make([]domain.Volume, 0, len(mountpoints))
	for _, mp := range mountpoints {
		usage, err := disk.UsageWithContext(ctx, mp)
		if err != nil || usage == nil {
			continue
		}
		v := domain.Volume{
			Mountpoint:  mp,
			TotalBytes:  usage.Total,
			UsedBytes:   usage.Used,
			UsedPercent: usage.UsedPercent,
			Filesystem:  strings.TrimSpace(usage.Fstype),
		}
		if p, ok := partsByMount[mp]; ok {
			v.Device = strings.TrimSpace(p.Device)
			if fs := strings.TrimSpace(p.Fstype); fs != "" {
				v.Filesystem = fs
			}
		}
		if m, ok := meta[mp]; ok {
			v.DriveType = m.DriveType
			v.Model = m.Model
		}
		out = append(out, v)
	}
	return out, nil
}

func diskTypeLabel(driveType, controller string) string {
	controller = strings.TrimSpace(controller)
	if strings.EqualFold(controller, "nvme") {
		return "NVMe"
	}
	driveType = strings.TrimSpace(driveType)
	if driveType == "" || strings.EqualFold(driveType, "unknown") {
		if controller != "" && !strings.EqualFold(controller, "unknown") {
			return strings.ToUpper(controller)
		}
		return ""
	}
	return strings.ToUpper(driveType)
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
