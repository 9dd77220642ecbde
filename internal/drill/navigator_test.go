package drill

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/domain"
)

// scriptedFetcher returns listings keyed by id and counts every fetch.
// The root listing uses the empty id.
type scriptedFetcher struct {
	listings map[string][]Row
	fail     map[string]error
	calls    []string
}

func (f *scriptedFetcher) Root(ctx context.Context) ([]Row, error) {
	return f.At(ctx, "")
}

func (f *scriptedFetcher) At(_ context.Context, id string) ([]Row, error) {
	f.calls = append(f.calls, id)
	if err := f.fail[id]; err != nil {
		return nil, err
	}
	return f.listings[id], nil
}

func newScripted() *scriptedFetcher {
	return &scriptedFetcher{
		listings: map[string][]Row{
			"":           {{Category: "Cache", ID: "/cache", SizeBytes: 300}, {Category: "Docs", ID: "/docs", SizeBytes: 10}},
			"/cache":     {{Category: "npm", ID: "/cache/npm", SizeBytes: 200}, {Category: "pip", ID: "/cache/pip", SizeBytes: 100}},
			"/cache/npm": {{Category: "_cacache", ID: "/cache/npm/_cacache", SizeBytes: 200}},
		},
		fail: map[string]error{},
	}
}

func TestNavigator_DescendAndJumpRefetches(t *testing.T) {
	f := newScripted()
	n := New(f)
	ctx := context.Background()

	require.NoError(t, n.Reset(ctx))
	assert.True(t, n.AtRoot())

	require.NoError(t, n.Descend(ctx, "Cache", "/cache"))
	require.NoError(t, n.Descend(ctx, "npm", "/cache/npm"))
	assert.Equal(t, 2, n.Depth())
	assert.Equal(t, "Root > Cache > npm", n.Trail("Root", " > "))

	// The listing for /cache changes on disk between visits.
	f.listings["/cache"] = []Row{{Category: "npm", ID: "/cache/npm", SizeBytes: 50}}

	require.NoError(t, n.JumpTo(ctx, 0))
	assert.Equal(t, []Frame{{Label: "Cache", ID: "/cache"}}, n.Frames())
	assert.Equal(t, []Row{{Category: "npm", ID: "/cache/npm", SizeBytes: 50}}, n.Listing())
	assert.Equal(t, []string{"", "/cache", "/cache/npm", "/cache"}, f.calls)
}

func TestNavigator_DescendFailureRollsBack(t *testing.T) {
	f := newScripted()
	n := New(f)
	ctx := context.Background()
	require.NoError(t, n.Reset(ctx))
	require.NoError(t, n.Descend(ctx, "Cache", "/cache"))
	frames, listing := n.Frames(), n.Listing()

	boom := errors.New("permission denied")
	f.fail["/cache/pip"] = boom
	err := n.Descend(ctx, "pip", "/cache/pip")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, frames, n.Frames())
	assert.Equal(t, listing, n.Listing())
}

func TestNavigator_JumpFailureKeepsState(t *testing.T) {
	f := newScripted()
	n := New(f)
	ctx := context.Background()
	require.NoError(t, n.Descend(ctx, "Cache", "/cache"))
	require.NoError(t, n.Descend(ctx, "npm", "/cache/npm"))

	f.fail["/cache"] = errors.New("gone")
	require.Error(t, n.JumpTo(ctx, 0))
	assert.Equal(t, 2, n.Depth())
	assert.Equal(t, f.listings["/cache/npm"], n.Listing())
}

func TestNavigator_ResetFailureStaysAtRoot(t *testing.T) {
	f := newScripted()
	n := New(f)
	ctx := context.Background()
	require.NoError(t, n.Descend(ctx, "Cache", "/cache"))

	f.fail[""] = errors.New("backend down")
	require.Error(t, n.Reset(ctx))
	assert.True(t, n.AtRoot())
	assert.Empty(t, n.Listing())
}

func TestNavigator_JumpToMinusOneIsReset(t *testing.T) {
	f := newScripted()
	n := New(f)
	ctx := context.Background()
	require.NoError(t, n.Descend(ctx, "Cache", "/cache"))
	require.NoError(t, n.JumpTo(ctx, -1))
	assert.True(t, n.AtRoot())
	assert.Equal(t, f.listings[""], n.Listing())
	assert.Equal(t, "", f.calls[len(f.calls)-1])
}

func TestNavigator_JumpOutOfRange(t *testing.T) {
	n := New(newScripted())
	ctx := context.Background()
	require.NoError(t, n.Descend(ctx, "Cache", "/cache"))
	assert.ErrorIs(t, n.JumpTo(ctx, 1), ErrIndexOutOfRange)
	assert.ErrorIs(t, n.JumpTo(ctx, -2), ErrIndexOutOfRange)
	assert.Equal(t, 1, n.Depth())
}

func TestNavigator_Ascend(t *testing.T) {
	f := newScripted()
	n := New(f)
	ctx := context.Background()
	require.NoError(t, n.Descend(ctx, "Cache", "/cache"))
	require.NoError(t, n.Descend(ctx, "npm", "/cache/npm"))

	require.NoError(t, n.Ascend(ctx))
	assert.Equal(t, []string{"Root", "Cache"}, n.Breadcrumb("Root"))
	require.NoError(t, n.Ascend(ctx))
	assert.True(t, n.AtRoot())
	require.NoError(t, n.Ascend(ctx))
	assert.True(t, n.AtRoot())
}

func TestNavigator_FramesAreSnapshots(t *testing.T) {
	n := New(newScripted())
	ctx := context.Background()
	require.NoError(t, n.Descend(ctx, "Cache", "/cache"))
	held := n.Frames()
	require.NoError(t, n.Descend(ctx, "npm", "/cache/npm"))
	require.NoError(t, n.JumpTo(ctx, 0))
	require.NoError(t, n.Descend(ctx, "pip", "/cache/pip"))

	assert.Equal(t, []Frame{{Label: "Cache", ID: "/cache"}}, held)
	_ = append(held, Frame{Label: "x"})
	assert.Equal(t, "pip", n.Frames()[1].Label)
}

func TestNavigator_PassesThroughOrder(t *testing.T) {
	f := newScripted()
	f.listings["/docs"] = []Row{{Category: "small", SizeBytes: 1}, {Category: "big", SizeBytes: 99}}
	n := New(f)
	require.NoError(t, n.Descend(context.Background(), "Docs", "/docs"))
	assert.Equal(t, "small", n.Listing()[0].Category)

	sorted := SortedBySize(n.Listing())
	assert.Equal(t, "big", sorted[0].Category)
	assert.Equal(t, "small", n.Listing()[0].Category)
}

type diskInvoker struct {
	calls []backend.Args
}

func (d *diskInvoker) Invoke(_ context.Context, cmd backend.Command, args backend.Args) (json.RawMessage, error) {
	d.calls = append(d.calls, args)
	switch cmd {
	case backend.CmdScanDiskUsage:
		return json.Marshal([]domain.DiskUsage{{Category: "Caches", Path: "/home/u/.cache", SizeBytes: 10, ItemCount: 2}})
	case backend.CmdDiskUsageAtPath:
		return json.Marshal([]domain.DiskUsage{{Category: "pip", Path: "/home/u/.cache/pip", SizeBytes: 7, ItemCount: 1}})
	}
	return nil, &backend.CommandError{Command: cmd, Err: backend.ErrUnknownCommand}
}

func TestBackendFetcher(t *testing.T) {
	inv := &diskInvoker{}
	n := New(BackendFetcher{Invoker: inv})
	ctx := context.Background()

	require.NoError(t, n.Reset(ctx))
	assert.Equal(t, []Row{{Category: "Caches", ID: "/home/u/.cache", SizeBytes: 10, ItemCount: 2}}, n.Listing())

	require.NoError(t, n.Descend(ctx, "Caches", "/home/u/.cache"))
	assert.Equal(t, "/home/u/.cache/pip", n.Listing()[0].ID)
	assert.Equal(t, backend.Args{"path": "/home/u/.cache"}, inv.calls[1])
}
