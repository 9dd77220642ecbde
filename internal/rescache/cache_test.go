package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeInvoker struct {
	mu      sync.Mutex
	results map[backend.Command]any
	errs    map[backend.Command]error
	calls   map[backend.Command]int
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		results: map[backend.Command]any{},
		errs:    map[backend.Command]error{},
		calls:   map[backend.Command]int{},
	}
}

func (f *fakeInvoker) set(cmd backend.Command, v any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[cmd] = v
	f.errs[cmd] = err
}

func (f *fakeInvoker) count(cmd backend.Command) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[cmd]
}

func (f *fakeInvoker) Invoke(_ context.Context, cmd backend.Command, _ backend.Args) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[cmd]++
	if err := f.errs[cmd]; err != nil {
		return nil, &backend.CommandError{Command: cmd, Err: err}
	}
	return json.Marshal(f.results[cmd])
}

func threePorts() []domain.Port {
	return []domain.Port{
		{Port: 3000, Protocol: "tcp", State: "LISTEN"},
		{Port: 5432, Protocol: "tcp", State: "LISTEN"},
		{Port: 8080, Protocol: "tcp6", State: "LISTEN"},
	}
}

func TestNeverFetchedIsStale(t *testing.T) {
	c := New(newFakeInvoker(), Options{})
	for _, k := range Kinds() {
		for _, ttl := range []time.Duration{time.Nanosecond, time.Hour, 24 * 365 * time.Hour} {
			stale, err := c.IsStale(k, ttl)
			require.NoError(t, err)
			assert.True(t, stale, "%s ttl=%s", k, ttl)
		}
		snap, err := c.Get(k)
		require.NoError(t, err)
		assert.Nil(t, snap.LastFetch)
		assert.Zero(t, snap.Count)
	}
}

func TestRefreshThenAdvance(t *testing.T) {
	clock := newFakeClock()
	inv := newFakeInvoker()
	inv.set(backend.CmdScanPorts, threePorts(), nil)
	c := New(inv, Options{Now: clock.Now})

	snap, err := c.Refresh(context.Background(), KindPorts)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Count)
	require.NotNil(t, snap.LastFetch)
	assert.Equal(t, clock.Now(), *snap.LastFetch)

	ttl := 30 * time.Second
	for _, d := range []time.Duration{time.Nanosecond, time.Second, ttl} {
		stale, err := c.IsStale(KindPorts, d)
		require.NoError(t, err)
		assert.False(t, stale, "ttl=%s", d)
	}

	clock.Advance(ttl - time.Nanosecond)
	stale, _ := c.IsStale(KindPorts, ttl)
	assert.False(t, stale)

	clock.Advance(time.Nanosecond)
	stale, _ = c.IsStale(KindPorts, ttl)
	assert.True(t, stale, "age equal to ttl is stale")
}

func TestZeroTTLIsAlwaysStale(t *testing.T) {
	clock := newFakeClock()
	inv := newFakeInvoker()
	inv.set(backend.CmdScanPorts, threePorts(), nil)
	c := New(inv, Options{Now: clock.Now, TTL: map[Kind]time.Duration{KindPorts: time.Minute}})
	_, err := c.Refresh(context.Background(), KindPorts)
	require.NoError(t, err)

	stale, err := c.IsStale(KindPorts, 0)
	require.NoError(t, err)
	assert.True(t, stale, "age 0 >= ttl 0")

	stale, err = c.IsStaleDefault(KindPorts)
	require.NoError(t, err)
	assert.False(t, stale)

	clock.Advance(time.Minute)
	stale, _ = c.IsStaleDefault(KindPorts)
	assert.True(t, stale)
}

func TestFailedRefreshKeepsEntry(t *testing.T) {
	clock := newFakeClock()
	inv := newFakeInvoker()
	inv.set(backend.CmdScanPorts, threePorts(), nil)
	c := New(inv, Options{Now: clock.Now})

	_, err := c.Refresh(context.Background(), KindPorts)
	require.NoError(t, err)
	before := c.Ports.Get()

	clock.Advance(time.Minute)
	boom := errors.New("permission denied")
	inv.set(backend.CmdScanPorts, nil, boom)
	_, err = c.Refresh(context.Background(), KindPorts)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	after := c.Ports.Get()
	assert.Equal(t, threePorts(), after.Items)
	assert.Equal(t, before.LastFetch, after.LastFetch)
}

func TestInvalidateKeepsItems(t *testing.T) {
	inv := newFakeInvoker()
	inv.set(backend.CmdScanPorts, threePorts(), nil)
	c := New(inv, Options{})

	_, err := c.Refresh(context.Background(), KindPorts)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(KindPorts))

	for _, ttl := range []time.Duration{time.Nanosecond, time.Hour, 1 << 62} {
		stale, _ := c.IsStale(KindPorts, ttl)
		assert.True(t, stale)
	}
	assert.Equal(t, threePorts(), c.Ports.Get().Items)
	assert.False(t, c.Ports.Get().Fetched())
}

func TestKindsAreIndependent(t *testing.T) {
	inv := newFakeInvoker()
	inv.set(backend.CmdScanPorts, threePorts(), nil)
	inv.set(backend.CmdScanTools, []domain.Tool{{Name: "tsc", Source: domain.SourceNpm}}, nil)
	c := New(inv, Options{})

	_, err := c.Refresh(context.Background(), KindPorts)
	require.NoError(t, err)
	stale, _ := c.IsStale(KindTools, time.Hour)
	assert.True(t, stale)
	assert.Zero(t, inv.count(backend.CmdScanTools))

	_, err = c.Refresh(context.Background(), KindTools)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(KindTools))
	stale, _ = c.IsStale(KindPorts, time.Hour)
	assert.False(t, stale)
}

func TestGetNeverFetches(t *testing.T) {
	inv := newFakeInvoker()
	c := New(inv, Options{})
	for _, k := range Kinds() {
		_, err := c.Get(k)
		require.NoError(t, err)
	}
	for _, cmd := range backend.Commands() {
		assert.Zero(t, inv.count(cmd))
	}
}

func TestRefreshIfStale(t *testing.T) {
	clock := newFakeClock()
	inv := newFakeInvoker()
	inv.set(backend.CmdScanProcesses, []domain.Process{{PID: 42, Name: "node"}}, nil)
	c := New(inv, Options{Now: clock.Now, TTL: map[Kind]time.Duration{KindProcesses: 10 * time.Second}})

	_, refreshed, err := c.RefreshIfStale(context.Background(), KindProcesses)
	require.NoError(t, err)
	assert.True(t, refreshed)

	clock.Advance(5 * time.Second)
	snap, refreshed, err := c.RefreshIfStale(context.Background(), KindProcesses)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, []domain.Process{{PID: 42, Name: "node"}}, snap.Items)

	clock.Advance(5 * time.Second)
	_, refreshed, err = c.RefreshIfStale(context.Background(), KindProcesses)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 2, inv.count(backend.CmdScanProcesses))
}

func TestTTLDefaults(t *testing.T) {
	c := New(newFakeInvoker(), Options{TTL: map[Kind]time.Duration{KindPorts: time.Second, KindTools: 0}})
	assert.Equal(t, time.Second, c.TTL(KindPorts))
	assert.Equal(t, DefaultTTL, c.TTL(KindTools))
	assert.Equal(t, 5*time.Minute, c.TTL(KindCaches))
}

func TestUnknownKind(t *testing.T) {
	c := New(newFakeInvoker(), Options{})
	_, err := c.Get(Kind("volumes"))
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = c.Refresh(context.Background(), Kind("volumes"))
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.ErrorIs(t, c.Invalidate(Kind("volumes")), ErrUnknownKind)
	_, err = ParseKind("volumes")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestStatus(t *testing.T) {
	clock := newFakeClock()
	inv := newFakeInvoker()
	inv.set(backend.CmdScanCaches, []domain.CacheInfo{{Name: "npm"}, {Name: "pip"}}, nil)
	c := New(inv, Options{Now: clock.Now})
	_, err := c.Refresh(context.Background(), KindCaches)
	require.NoError(t, err)

	all := c.StatusAll()
	require.Len(t, all, 4)
	for _, st := range all {
		if st.Kind == KindCaches {
			assert.Equal(t, 2, st.Count)
			assert.False(t, st.Stale)
			assert.Equal(t, DefaultTTL.Seconds(), st.TTLSecs)
		} else {
			assert.True(t, st.Stale)
		}
	}
}

func TestConcurrentReadsDuringRefresh(t *testing.T) {
	inv := newFakeInvoker()
	inv.set(backend.CmdScanPorts, threePorts(), nil)
	c := New(inv, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = c.Refresh(context.Background(), KindPorts)
		}()
		go func() {
			defer wg.Done()
			e := c.Ports.Get()
			if e.Fetched() {
				assert.Len(t, e.Items, 3)
			}
		}()
	}
	wg.Wait()
}

func TestLoading(t *testing.T) {
	l := NewLoading()
	assert.True(t, l.Begin(KindPorts))
	assert.False(t, l.Begin(KindPorts))
	assert.True(t, l.Active(KindPorts))
	assert.True(t, l.Begin(KindTools))
	l.End(KindPorts)
	assert.False(t, l.Active(KindPorts))
	assert.True(t, l.Begin(KindPorts))
}

func TestAutoRefresh(t *testing.T) {
	inv := newFakeInvoker()
	inv.set(backend.CmdScanPorts, threePorts(), nil)
	inv.set(backend.CmdScanTools, []domain.Tool{}, nil)
	inv.set(backend.CmdScanProcesses, []domain.Process{}, nil)
	inv.set(backend.CmdScanCaches, []domain.CacheInfo{}, nil)
	c := New(inv, Options{})

	loading := NewLoading()
	require.True(t, loading.Begin(KindTools))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.AutoRefresh(ctx, 10*time.Millisecond, loading)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return c.Ports.Get().Fetched() && c.Caches.Get().Fetched() && c.Processes.Get().Fetched()
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Zero(t, inv.count(backend.CmdScanTools))
	assert.Equal(t, 1, inv.count(backend.CmdScanPorts))
}
