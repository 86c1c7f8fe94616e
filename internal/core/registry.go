package core

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-lite/internal/metrics"
)

// RosterFunc receives the membership after every change. It runs while the
// registry lock is held and must not call back into the registry.
type RosterFunc func(users []string, sessions []*Session)

// Registry is the authoritative set of online sessions keyed by username.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	onChange RosterFunc
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// TryRegister creates a session for username bound to client. welcome, when
// non-nil, is queued to the new client before the roster broadcast so the
// joiner always sees it first. Both happen under the write lock.
func (r *Registry) TryRegister(username string, client *Client, welcome *Event) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[username]; exists {
		return nil, ErrUsernameTaken
	}

	sess := &Session{
		Username: username,
		JoinedAt: r.now(),
		client:   client,
	}
	r.sessions[username] = sess
	metrics.SessionsOnline.Set(float64(len(r.sessions)))

	if welcome != nil {
		client.Deliver(welcome)
	}
	r.notifyLocked()
	return sess, nil
}

// Deregister removes username. Removing an absent username is a no-op and
// emits no roster. Returns true if a session was removed.
func (r *Registry) Deregister(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[username]; !exists {
		return false
	}
	delete(r.sessions, username)
	metrics.SessionsOnline.Set(float64(len(r.sessions)))

	r.notifyLocked()
	return true
}

// Snapshot returns the online usernames in ascending order.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usernamesLocked()
}

// Len returns the number of online sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// forEach calls fn for every session under the read lock, so no membership
// change can interleave with a fan-out.
func (r *Registry) forEach(fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sess := range r.sessions {
		fn(sess)
	}
}

func (r *Registry) setRosterFunc(fn RosterFunc) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Registry) notifyLocked() {
	if r.onChange == nil {
		return
	}
	r.onChange(r.usernamesLocked(), lo.Values(r.sessions))
}

func (r *Registry) usernamesLocked() []string {
	users := lo.Keys(r.sessions)
	slices.Sort(users)
	return users
}
