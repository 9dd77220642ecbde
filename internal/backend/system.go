package backend

import (
	"context"
	"net"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/tomek7667/devconsole/internal/domain"
	"go.uber.org/zap"
)

const cpuSampleWindow = 200 * time.Millisecond

// scanSystem reports a best-effort host summary; individual lookups that fail
// leave their fields zero.
func (l *Local) scanSystem(ctx context.Context, _ Args) (any, error) {
	info := domain.SystemInfo{OS: runtime.GOOS, LogicalCores: runtime.NumCPU()}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Platform = strings.TrimSpace(h.Platform + " " + h.PlatformVersion)
		info.UptimeSeconds = h.Uptime
	} else {
		l.log.Debug("host info unavailable", zap.Error(err))
	}

	if ip, err := preferredHostIP(); err == nil {
		info.HostIP = ip
	}

	if ci, err := cpu.InfoWithContext(ctx); err == nil && len(ci) > 0 {
		info.CPUModel = strings.TrimSpace(ci[0].ModelName)
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.LogicalCores = n
	}
	if pct, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false); err == nil && len(pct) > 0 {
		info.CPUPercent = pct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	info.MemTotalBytes = vm.Total
	info.MemUsedBytes = vm.Used
	info.MemPercent = vm.UsedPercent
	return info, nil
}

func preferredHostIP() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch a := addr.(type) {
			case *net.IPNet:
				ip = a.IP
			case *net.IPAddr:
				ip = a.IP
			default:
				continue
			}
			ip = ip.To4()
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		if ip.IsPrivate() {
			return ip.String(), nil
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String(), nil
	}
	return "", nil
}
