package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndSnapshot(t *testing.T) {
	reg := NewRegistry()
	NewBroadcaster(reg)

	alice := NewClient("a", "addr-a", 8)
	bob := NewClient("b", "addr-b", 8)

	_, err := reg.TryRegister("bob", bob, nil)
	require.NoError(t, err)
	sess, err := reg.TryRegister("alice", alice, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)
	assert.False(t, sess.JoinedAt.IsZero())
	assert.Same(t, alice, sess.Client())

	assert.Equal(t, []string{"alice", "bob"}, reg.Snapshot())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryRejectsDuplicateUsername(t *testing.T) {
	reg := NewRegistry()
	first := NewClient("1", "", 8)
	second := NewClient("2", "", 8)

	_, err := reg.TryRegister("alice", first, nil)
	require.NoError(t, err)

	_, err = reg.TryRegister("alice", second, nil)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.Equal(t, []string{"alice"}, reg.Snapshot())
	assert.Empty(t, drain(second), "rejected client must not receive anything from the registry")
}

func TestRegistryWelcomePrecedesRoster(t *testing.T) {
	reg := NewRegistry()
	NewBroadcaster(reg)

	alice := NewClient("a", "", 8)
	_, err := reg.TryRegister("alice", alice, &Event{Kind: EventAuthAccepted, User: "alice"})
	require.NoError(t, err)

	events := drain(alice)
	require.Len(t, events, 2)
	assert.Equal(t, EventAuthAccepted, events[0].Kind)
	assert.Equal(t, EventRoster, events[1].Kind)
	assert.Equal(t, []string{"alice"}, events[1].Users)
}

func TestRegistryDeregisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	NewBroadcaster(reg)

	alice := NewClient("a", "", 8)
	bob := NewClient("b", "", 8)
	_, _ = reg.TryRegister("alice", alice, nil)
	_, _ = reg.TryRegister("bob", bob, nil)
	drain(alice)

	assert.True(t, reg.Deregister("bob"))
	roster := mustEvent(t, alice, EventRoster)
	assert.Equal(t, []string{"alice"}, roster.Users)

	assert.False(t, reg.Deregister("bob"))
	assert.False(t, reg.Deregister("nobody"))
	assert.Empty(t, drain(alice), "no-op deregistration must not broadcast")
	assert.Equal(t, []string{"alice"}, reg.Snapshot())
}

func TestRegistryUsernameFreedAfterDeregister(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.TryRegister("alice", NewClient("1", "", 1), nil)
	require.NoError(t, err)
	reg.Deregister("alice")

	_, err = reg.TryRegister("alice", NewClient("2", "", 1), nil)
	assert.NoError(t, err)
}

func TestRegistryConcurrentUniqueness(t *testing.T) {
	reg := NewRegistry()
	NewBroadcaster(reg)

	const contenders = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClient(fmt.Sprintf("c%d", i), "", contenders+1)
			if _, err := reg.TryRegister("alice", c, nil); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, []string{"alice"}, reg.Snapshot())
}

func TestRegistryRosterMatchesOnlineSet(t *testing.T) {
	reg := NewRegistry()
	NewBroadcaster(reg)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user%02d", i)
			_, err := reg.TryRegister(name, NewClient(name, "", 64), nil)
			if err != nil {
				t.Errorf("register %s: %v", name, err)
				return
			}
			if i%2 == 0 {
				reg.Deregister(name)
			}
		}(i)
	}
	wg.Wait()

	var expected []string
	for i := 1; i < 20; i += 2 {
		expected = append(expected, fmt.Sprintf("user%02d", i))
	}
	assert.Equal(t, expected, reg.Snapshot())
}
