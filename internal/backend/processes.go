package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/tomek7667/devconsole/internal/domain"
)

// Process names treated as developer tooling by scan_processes.
var devProcessNames = []string{
	"node", "npm", "npx", "pnpm", "yarn", "bun", "deno",
	"python", "python3", "pip", "uv", "uvicorn", "gunicorn",
	"cargo", "rustc", "rust-analyzer",
	"go", "gopls", "dlv",
	"java", "gradle", "mvn", "kotlin",
	"ruby", "rails", "php",
	"docker", "dockerd", "containerd", "podman",
	"postgres", "mysqld", "redis-server", "mongod",
	"code", "vite", "webpack", "esbuild", "tsc", "tsserver",
}

func isDevProcess(name string) bool {
	n := strings.ToLower(strings.TrimSuffix(name, ".exe"))
	for _, d := range devProcessNames {
		if n == d || strings.HasPrefix(n, d+"-") || strings.HasPrefix(n, d+".") {
			return true
		}
	}
	return false
}

// scanProcesses lists developer processes, or every process with all=true.
// Processes that vanish or deny access mid-scan are skipped.
func (l *Local) scanProcesses(ctx context.Context, args Args) (any, error) {
	all := args.Bool("all")
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Process, 0, len(procs))
	for _, p := range procs {
		if p == nil {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if !all && !isDevProcess(name) {
			continue
		}
		dp := domain.Process{PID: p.Pid, Name: name}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			dp.CPUUsage = pct
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			dp.MemoryMB = float64(mi.RSS) / (1024 * 1024)
		}
		if st, err := p.StatusWithContext(ctx); err == nil {
			dp.Status = strings.Join(st, ",")
		}
		out = append(out, dp)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func protocolName(c psnet.ConnectionStat) string {
	proto := "tcp"
	if c.Type == syscall.SOCK_DGRAM {
		proto = "udp"
	}
	if c.Family == syscall.AF_INET6 {
		proto += "6"
	}
	return proto
}

// scanPorts lists listening TCP sockets and bound UDP sockets.
func (l *Local) scanPorts(ctx context.Context, _ Args) (any, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, err
	}

	names := make(map[int32]string)
	seen := make(map[string]struct{})
	out := make([]domain.Port, 0)
	for _, c := range conns {
		if c.Laddr.Port == 0 {
			continue
		}
		proto := protocolName(c)
		state := c.Status
		if strings.HasPrefix(proto, "tcp") {
			if state != "LISTEN" {
				continue
			}
		} else {
			if c.Raddr.Port != 0 {
				continue
			}
			state = "BOUND"
		}
		key := fmt.Sprintf("%s/%d/%d", proto, c.Laddr.Port, c.Pid)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		port := domain.Port{Port: c.Laddr.Port, Protocol: proto, PID: c.Pid, State: state}
		if c.Pid > 0 {
			name, ok := names[c.Pid]
			if !ok {
				if p, err := process.NewProcessWithContext(ctx, c.Pid); err == nil {
					name, _ = p.NameWithContext(ctx)
				}
				names[c.Pid] = name
			}
			port.ProcessName = name
		}
		out = append(out, port)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Port != out[j].Port {
			return out[i].Port < out[j].Port
		}
		return out[i].Protocol < out[j].Protocol
	})
	return out, nil
}

var errProtectedProcess = errors.New("refusing to terminate a protected process")

func (l *Local) terminateProcess(ctx context.Context, args Args) (any, error) {
	pid, err := args.Int("pid")
	if err != nil {
		return nil, err
	}
	if pid <= 1 || pid == int64(os.Getpid()) {
		return nil, fmt.Errorf("%w: pid %d", errProtectedProcess, pid)
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}
	name, _ := p.NameWithContext(ctx)
	if err := p.KillWithContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to terminate %d: %w", pid, err)
	}
	if name == "" {
		return fmt.Sprintf("terminated process %d", pid), nil
	}
	return fmt.Sprintf("terminated %s (%d)", name, pid), nil
}
