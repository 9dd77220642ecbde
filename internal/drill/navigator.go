// Package drill tracks the path of descents through hierarchical
// disk-usage listings.
//
// A Navigator holds a stack of frames and the listing currently displayed.
// The stack is empty exactly when the root listing is shown. Each transition
// replaces the stack with a new slice, so frames obtained earlier are never
// modified. Navigators are not safe for overlapping operations; callers
// must wait for one transition to finish before starting the next.
package drill

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tomek7667/devconsole/internal/metrics"
)

type Frame struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

type Row struct {
	Category  string `json:"category"`
	ID        string `json:"id"`
	SizeBytes int64  `json:"sizeBytes"`
	ItemCount int64  `json:"itemCount"`
}

// Fetcher produces listings. Root returns the top-level listing and At the
// listing for one identifier.
type Fetcher interface {
	Root(ctx context.Context) ([]Row, error)
	At(ctx context.Context, id string) ([]Row, error)
}

var ErrIndexOutOfRange = errors.New("breadcrumb index out of range")

type Navigator struct {
	fetch   Fetcher
	frames  []Frame
	listing []Row
}

func New(f Fetcher) *Navigator {
	return &Navigator{fetch: f}
}

// Descend pushes a frame and shows the listing for id. If the fetch fails
// the navigator stays where it was.
func (n *Navigator) Descend(ctx context.Context, label, id string) (err error) {
	defer func() { metrics.RecordNavigation("descend", err) }()
	rows, err := n.fetch.At(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", id, err)
	}
	next := make([]Frame, len(n.frames), len(n.frames)+1)
	copy(next, n.frames)
	n.frames = append(next, Frame{Label: label, ID: id})
	n.listing = rows
	return nil
}

// Reset clears the stack and shows the root listing. On failure the
// navigator is at the root with no listing.
func (n *Navigator) Reset(ctx context.Context) (err error) {
	defer func() { metrics.RecordNavigation("reset", err) }()
	n.frames = nil
	rows, err := n.fetch.Root(ctx)
	if err != nil {
		n.listing = nil
		return fmt.Errorf("failed to list root: %w", err)
	}
	n.listing = rows
	return nil
}

// JumpTo truncates the stack to index+1 frames and refetches the listing of
// the new top frame. Index -1 is the root. On failure the previous state is
// kept.
func (n *Navigator) JumpTo(ctx context.Context, index int) (err error) {
	if index == -1 {
		return n.Reset(ctx)
	}
	defer func() { metrics.RecordNavigation("jump", err) }()
	if index < -1 || index >= len(n.frames) {
		return fmt.Errorf("%w: %d (depth %d)", ErrIndexOutOfRange, index, len(n.frames))
	}
	top := n.frames[index]
	rows, err := n.fetch.At(ctx, top.ID)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", top.ID, err)
	}
	next := make([]Frame, index+1)
	copy(next, n.frames[:index+1])
	n.frames = next
	n.listing = rows
	return nil
}

// Ascend moves one level up. At the root it refetches the root listing.
func (n *Navigator) Ascend(ctx context.Context) error {
	if len(n.frames) <= 1 {
		return n.Reset(ctx)
	}
	return n.JumpTo(ctx, len(n.frames)-2)
}

// Frames returns the current stack, root first.
func (n *Navigator) Frames() []Frame {
	return n.frames[:len(n.frames):len(n.frames)]
}

// Listing returns the displayed rows in fetch order.
func (n *Navigator) Listing() []Row {
	return n.listing[:len(n.listing):len(n.listing)]
}

func (n *Navigator) Depth() int {
	return len(n.frames)
}

func (n *Navigator) AtRoot() bool {
	return len(n.frames) == 0
}

// Breadcrumb returns the labels from the root to the current frame.
func (n *Navigator) Breadcrumb(rootLabel string) []string {
	out := make([]string, 0, len(n.frames)+1)
	out = append(out, rootLabel)
	for _, f := range n.frames {
		out = append(out, f.Label)
	}
	return out
}

func (n *Navigator) Trail(rootLabel, sep string) string {
	return strings.Join(n.Breadcrumb(rootLabel), sep)
}

// SortedBySize returns a copy of rows, largest first, ties by category.
func SortedBySize(rows []Row) []Row {
	out := append([]Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SizeBytes != out[j].SizeBytes {
			return out[i].SizeBytes > out[j].SizeBytes
		}
		return out[i].Category < out[j].Category
	})
	return out
}
