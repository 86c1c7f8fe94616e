package chat

import (
	"io"
	"sync"
	"time"
)

// Tracker keeps the set of live connections of one transport so shutdown can
// wait for handlers and force-close whatever outlives the grace period.
type Tracker struct {
	mu    sync.Mutex
	conns map[io.Closer]struct{}
	wg    sync.WaitGroup
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{conns: make(map[io.Closer]struct{})}
}

// Track registers c. The returned release must be called exactly once when
// the handler owning c has returned.
func (t *Tracker) Track(c io.Closer) (release func()) {
	t.mu.Lock()
	t.conns[c] = struct{}{}
	t.mu.Unlock()
	t.wg.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.conns, c)
			t.mu.Unlock()
			t.wg.Done()
		})
	}
}

// Len returns the number of tracked connections.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// CloseAll closes every tracked connection and returns how many it closed.
func (t *Tracker) CloseAll() int {
	t.mu.Lock()
	conns := make([]io.Closer, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}

// Drain waits up to grace for all handlers to release their connections,
// then force-closes the rest and waits up to grace once more. It returns the
// number of connections that had to be force-closed.
func (t *Tracker) Drain(grace time.Duration) int {
	if t.wait(grace) {
		return 0
	}
	forced := t.CloseAll()
	t.wait(grace)
	return forced
}

func (t *Tracker) wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
