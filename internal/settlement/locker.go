package settlement

import "sync"

// locker hands out one mutex per quote id so unrelated quotes settle
// concurrently. Entries are refcounted and dropped once nobody holds or
// waits on them.
type locker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLocker() *locker {
	return &locker{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the per-key lock is held and returns its unlock func.
func (l *locker) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
