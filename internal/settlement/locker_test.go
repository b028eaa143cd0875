package settlement

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockerSerializesPerKey(t *testing.T) {
	l := newLocker()

	const goroutines = 16
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock := l.Lock("q1")
			defer unlock()

			// Data race here if two holders get in at once.
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
}

func TestLockerIndependentKeys(t *testing.T) {
	l := newLocker()

	unlockA := l.Lock("a")
	defer unlockA()

	// Must not block while "a" is held.
	unlockB := l.Lock("b")
	unlockB()
}

func TestLockerDropsIdleEntries(t *testing.T) {
	l := newLocker()

	unlock := l.Lock("q1")
	unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.entries)
}
