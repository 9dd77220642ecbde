package rescache

import "sync"

// Loading is the per-kind in-flight flag callers use to avoid issuing
// overlapping refreshes of the same kind.
type Loading struct {
	mu    sync.Mutex
	flags map[Kind]bool
}

func NewLoading() *Loading {
	return &Loading{flags: make(map[Kind]bool)}
}

// Begin sets the flag for kind and reports whether it was clear.
func (l *Loading) Begin(kind Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.flags[kind] {
		return false
	}
	l.flags[kind] = true
	return true
}

func (l *Loading) End(kind Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.flags, kind)
}

func (l *Loading) Active(kind Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flags[kind]
}
