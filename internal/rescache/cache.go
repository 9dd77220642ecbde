package rescache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/domain"
	"github.com/tomek7667/devconsole/internal/metrics"
	"go.uber.org/zap"
)

type Kind string

const (
	KindTools     Kind = "tools"
	KindPorts     Kind = "ports"
	KindProcesses Kind = "processes"
	KindCaches    Kind = "caches"
)

// DefaultTTL applies to every kind without an override.
const DefaultTTL = 5 * time.Minute

var ErrUnknownKind = errors.New("unknown resource kind")

var kinds = []Kind{KindTools, KindPorts, KindProcesses, KindCaches}

func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Snapshot is a kind-erased view of an entry.
type Snapshot struct {
	Kind      Kind       `json:"kind"`
	Items     any        `json:"items"`
	Count     int        `json:"count"`
	LastFetch *time.Time `json:"lastFetch,omitempty"`
}

type Status struct {
	Kind      Kind          `json:"kind"`
	Count     int           `json:"count"`
	LastFetch *time.Time    `json:"lastFetch,omitempty"`
	TTL       time.Duration `json:"-"`
	TTLSecs   float64       `json:"ttlSeconds"`
	Stale     bool          `json:"stale"`
}

type anyCell interface {
	Kind() Kind
	IsStale(ttl time.Duration) bool
	Invalidate()
	snapshot() Snapshot
	refreshSnapshot(ctx context.Context) (Snapshot, error)
}

type Options struct {
	DefaultTTL time.Duration
	TTL        map[Kind]time.Duration
	Now        Clock
	Logger     *zap.Logger
}

// Cache holds one cell per resource kind, all fed by the same backend.
type Cache struct {
	Tools     *Cell[domain.Tool]
	Ports     *Cell[domain.Port]
	Processes *Cell[domain.Process]
	Caches    *Cell[domain.CacheInfo]

	cells      map[Kind]anyCell
	defaultTTL time.Duration
	ttl        map[Kind]time.Duration
	log        *zap.Logger
}

func fetcher[T any](inv backend.Invoker, cmd backend.Command) FetchFunc[T] {
	return func(ctx context.Context) ([]T, error) {
		return backend.Call[[]T](ctx, inv, cmd, nil)
	}
}

func New(inv backend.Invoker, opts Options) *Cache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Cache{
		Tools:      NewCell(KindTools, fetcher[domain.Tool](inv, backend.CmdScanTools), opts.Now),
		Ports:      NewCell(KindPorts, fetcher[domain.Port](inv, backend.CmdScanPorts), opts.Now),
		Processes:  NewCell(KindProcesses, fetcher[domain.Process](inv, backend.CmdScanProcesses), opts.Now),
		Caches:     NewCell(KindCaches, fetcher[domain.CacheInfo](inv, backend.CmdScanCaches), opts.Now),
		defaultTTL: opts.DefaultTTL,
		ttl:        make(map[Kind]time.Duration, len(opts.TTL)),
		log:        opts.Logger,
	}
	for k, d := range opts.TTL {
		if d > 0 {
			c.ttl[k] = d
		}
	}
	c.cells = map[Kind]anyCell{
		KindTools:     c.Tools,
		KindPorts:     c.Ports,
		KindProcesses: c.Processes,
		KindCaches:    c.Caches,
	}
	return c
}

func (c *Cache) cell(kind Kind) (anyCell, error) {
	cl, ok := c.cells[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return cl, nil
}

// TTL returns the configured TTL of kind.
func (c *Cache) TTL(kind Kind) time.Duration {
	if d, ok := c.ttl[kind]; ok {
		return d
	}
	return c.defaultTTL
}

func (c *Cache) Get(kind Kind) (Snapshot, error) {
	cl, err := c.cell(kind)
	if err != nil {
		return Snapshot{}, err
	}
	return cl.snapshot(), nil
}

// IsStale reports whether kind is older than ttl. A ttl of zero or less
// makes every entry stale.
func (c *Cache) IsStale(kind Kind, ttl time.Duration) (bool, error) {
	cl, err := c.cell(kind)
	if err != nil {
		return false, err
	}
	return cl.IsStale(ttl), nil
}

// IsStaleDefault is IsStale under the TTL configured for kind.
func (c *Cache) IsStaleDefault(kind Kind) (bool, error) {
	return c.IsStale(kind, c.TTL(kind))
}

func (c *Cache) Invalidate(kind Kind) error {
	cl, err := c.cell(kind)
	if err != nil {
		return err
	}
	cl.Invalidate()
	c.log.Debug("cache invalidated", zap.String("kind", string(kind)))
	return nil
}

func (c *Cache) Refresh(ctx context.Context, kind Kind) (Snapshot, error) {
	cl, err := c.cell(kind)
	if err != nil {
		return Snapshot{}, err
	}
	start := time.Now()
	snap, err := cl.refreshSnapshot(ctx)
	metrics.RecordCacheRefresh(string(kind), snap.Count, err)
	if err != nil {
		c.log.Warn("cache refresh failed", zap.String("kind", string(kind)), zap.Error(err))
		return snap, err
	}
	c.log.Debug("cache refreshed",
		zap.String("kind", string(kind)),
		zap.Int("items", snap.Count),
		zap.Duration("elapsed", time.Since(start)))
	return snap, nil
}

// RefreshIfStale refreshes kind only when its entry is stale under the
// configured TTL. refreshed reports whether a fetch happened.
func (c *Cache) RefreshIfStale(ctx context.Context, kind Kind) (snap Snapshot, refreshed bool, err error) {
	stale, err := c.IsStaleDefault(kind)
	if err != nil {
		return Snapshot{}, false, err
	}
	if !stale {
		snap, err = c.Get(kind)
		return snap, false, err
	}
	metrics.RecordStaleRead(string(kind))
	snap, err = c.Refresh(ctx, kind)
	return snap, true, err
}

func (c *Cache) Status(kind Kind) (Status, error) {
	cl, err := c.cell(kind)
	if err != nil {
		return Status{}, err
	}
	snap := cl.snapshot()
	ttl := c.TTL(kind)
	return Status{
		Kind:      kind,
		Count:     snap.Count,
		LastFetch: snap.LastFetch,
		TTL:       ttl,
		TTLSecs:   ttl.Seconds(),
		Stale:     cl.IsStale(ttl),
	}, nil
}

func (c *Cache) StatusAll() []Status {
	out := make([]Status, 0, len(kinds))
	for _, k := range kinds {
		st, _ := c.Status(k)
		out = append(out, st)
	}
	return out
}

// AutoRefresh refreshes every stale kind each interval until ctx is done.
// Kinds already being loaded are skipped.
func (c *Cache) AutoRefresh(ctx context.Context, interval time.Duration, loading *Loading) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		var wg sync.WaitGroup
		for _, k := range kinds {
			k := k
			if stale, _ := c.IsStaleDefault(k); !stale {
				continue
			}
			if !loading.Begin(k) {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer loading.End(k)
				_, _ = c.Refresh(ctx, k)
			}()
		}
		wg.Wait()
	}
}
