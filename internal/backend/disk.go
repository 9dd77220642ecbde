package backend

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tomek7667/devconsole/internal/domain"
	"golang.org/x/sync/errgroup"
)

const walkConcurrency = 8

type location struct {
	name string
	rel  string
}

// Top-level disk-usage categories, relative to the home directory.
var diskCategories = []location{
	{"Caches", ".cache"},
	{"npm", ".npm"},
	{"Cargo", ".cargo"},
	{"Rustup", ".rustup"},
	{"Go", "go"},
	{"Gradle", ".gradle"},
	{"Maven", ".m2"},
	{"Local", ".local"},
	{"Config", ".config"},
	{"Downloads", "Downloads"},
	{"Documents", "Documents"},
	{"Projects", "Projects"},
	{"Desktop", "Desktop"},
}

// Package-manager caches reported by scan_caches.
var cacheLocations = []location{
	{"npm", ".npm/_cacache"},
	{"yarn", ".cache/yarn"},
	{"pnpm", ".local/share/pnpm/store"},
	{"pip", ".cache/pip"},
	{"cargo registry", ".cargo/registry"},
	{"cargo git", ".cargo/git"},
	{"go build", ".cache/go-build"},
	{"go modules", "go/pkg/mod"},
	{"gradle", ".gradle/caches"},
	{"maven", ".m2/repository"},
}

// dirUsage sums the sizes of all regular files under root without following
// symlinks. Unreadable subtrees are skipped.
func dirUsage(ctx context.Context, root string) (size, count int64, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		count++
		return nil
	})
	return size, count, err
}

func (l *Local) usageRows(ctx context.Context, locs []location) ([]domain.DiskUsage, error) {
	rows := make([]domain.DiskUsage, len(locs))
	present := make([]bool, len(locs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(walkConcurrency)
	for i, loc := range locs {
		i, loc := i, loc
		path := filepath.Join(l.opts.Home, loc.rel)
		g.Go(func() error {
			if _, err := os.Stat(path); err != nil {
				return nil
			}
			size, count, err := dirUsage(gctx, path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			rows[i] = domain.DiskUsage{Category: loc.name, Path: path, SizeBytes: size, ItemCount: count}
			present[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.DiskUsage, 0, len(rows))
	for i, r := range rows {
		if present[i] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *Local) scanDiskUsage(ctx context.Context, _ Args) (any, error) {
	return l.usageRows(ctx, diskCategories)
}

func (l *Local) diskUsageAtPath(ctx context.Context, args Args) (any, error) {
	dir, err := absPath(args, "path")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	rows := make([]domain.DiskUsage, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(walkConcurrency)
	for i, e := range entries {
		i := i
		path := filepath.Join(dir, e.Name())
		rows[i] = domain.DiskUsage{Category: e.Name(), Path: path}
		if e.Type()&fs.ModeSymlink != 0 {
			continue
		}
		if !e.IsDir() {
			if info, err := e.Info(); err == nil {
				rows[i].SizeBytes = info.Size()
				rows[i].ItemCount = 1
			}
			continue
		}
		g.Go(func() error {
			size, count, err := dirUsage(gctx, path)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			rows[i].SizeBytes = size
			rows[i].ItemCount = count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (l *Local) scanCaches(ctx context.Context, _ Args) (any, error) {
	out := make([]domain.CacheInfo, len(cacheLocations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(walkConcurrency)
	for i, loc := range cacheLocations {
		i := i
		path := filepath.Join(l.opts.Home, loc.rel)
		out[i] = domain.CacheInfo{Name: loc.name, Path: path}
		g.Go(func() error {
			if _, err := os.Stat(path); err != nil {
				return nil
			}
			size, _, err := dirUsage(gctx, path)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			out[i].Exists = true
			out[i].SizeBytes = size
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}
