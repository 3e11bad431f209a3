package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomRateLimiterSlidingWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRoomRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u"))
	assert.True(t, rl.Allow("u"))
	assert.False(t, rl.Allow("u"))
	assert.True(t, rl.Allow("other"))

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, rl.Allow("u"))
}
