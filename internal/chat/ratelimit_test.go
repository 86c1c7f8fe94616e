package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	start := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(start.Add(time.Duration(i)*time.Second)))
	}
	assert.False(t, rl.allow(start.Add(10*time.Second)))
	assert.False(t, rl.allow(start.Add(59*time.Second)))

	assert.True(t, rl.allow(start.Add(time.Minute)))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0, time.Minute)
	assert.Nil(t, rl)
	for i := 0; i < 1000; i++ {
		assert.True(t, rl.allow(time.Now()))
	}
}
