// Package rescache holds the last-fetched snapshot of each resource
// collection along with its fetch time, and answers TTL staleness queries.
//
// Each collection lives in its own Cell. A cell's entry is immutable and is
// swapped as a whole, so readers never observe a partial update. Cells do not
// coalesce concurrent refreshes; callers serialize them per kind with a
// Loading flag.
package rescache

import (
	"context"
	"sync/atomic"
	"time"
)

// Entry is one snapshot of a collection. A zero LastFetch means the entry
// does not reflect a completed fetch. Items must not be modified.
type Entry[T any] struct {
	Items     []T
	LastFetch time.Time
}

func (e Entry[T]) Fetched() bool {
	return !e.LastFetch.IsZero()
}

// FetchFunc performs one fetch of a collection.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Clock returns the current time.
type Clock func() time.Time

type Cell[T any] struct {
	kind  Kind
	fetch FetchFunc[T]
	now   Clock
	cur   atomic.Pointer[Entry[T]]
}

func NewCell[T any](kind Kind, fetch FetchFunc[T], now Clock) *Cell[T] {
	if now == nil {
		now = time.Now
	}
	c := &Cell[T]{kind: kind, fetch: fetch, now: now}
	c.cur.Store(&Entry[T]{})
	return c
}

func (c *Cell[T]) Kind() Kind {
	return c.kind
}

// Get returns the current entry. It never blocks and never fetches.
func (c *Cell[T]) Get() Entry[T] {
	return *c.cur.Load()
}

// IsStale reports whether the entry was never fetched or is at least ttl old.
func (c *Cell[T]) IsStale(ttl time.Duration) bool {
	e := c.cur.Load()
	if !e.Fetched() {
		return true
	}
	return c.now().Sub(e.LastFetch) >= ttl
}

// Refresh fetches once. On success the entry is replaced; on failure it is
// left untouched and the error is returned.
func (c *Cell[T]) Refresh(ctx context.Context) (Entry[T], error) {
	items, err := c.fetch(ctx)
	if err != nil {
		return c.Get(), err
	}
	if items == nil {
		items = []T{}
	}
	next := &Entry[T]{Items: items, LastFetch: c.now()}
	c.cur.Store(next)
	return *next, nil
}

// Invalidate clears the fetch time and keeps the items.
func (c *Cell[T]) Invalidate() {
	for {
		old := c.cur.Load()
		if !old.Fetched() {
			return
		}
		if c.cur.CompareAndSwap(old, &Entry[T]{Items: old.Items}) {
			return
		}
	}
}

func (c *Cell[T]) snapshot() Snapshot {
	e := c.Get()
	s := Snapshot{Kind: c.kind, Count: len(e.Items)}
	if e.Items == nil {
		s.Items = []T{}
	} else {
		s.Items = e.Items
	}
	if e.Fetched() {
		t := e.LastFetch
		s.LastFetch = &t
	}
	return s
}

func (c *Cell[T]) refreshSnapshot(ctx context.Context) (Snapshot, error) {
	_, err := c.Refresh(ctx)
	return c.snapshot(), err
}
