package chat

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeCounter struct {
	closed  atomic.Int32
	onClose func()
}

func (c *closeCounter) Close() error {
	c.closed.Add(1)
	if c.onClose != nil {
		c.onClose()
	}
	return nil
}

func TestTrackerDrainWaitsForRelease(t *testing.T) {
	tr := NewTracker()
	conn := &closeCounter{}
	release := tr.Track(conn)
	require.Equal(t, 1, tr.Len())

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
		release()
	}()

	assert.Zero(t, tr.Drain(time.Second))
	assert.Zero(t, tr.Len())
	assert.Zero(t, conn.closed.Load())
}

func TestTrackerDrainForcesStragglers(t *testing.T) {
	tr := NewTracker()
	conn := &closeCounter{}
	var release func()
	conn.onClose = func() { go release() }
	release = tr.Track(conn)

	assert.Equal(t, 1, tr.Drain(20*time.Millisecond))
	assert.EqualValues(t, 1, conn.closed.Load())
	assert.Zero(t, tr.Len())
}
