package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pixelwar.app/pxw/internal/types"
)

func TestCountdownFiresOnce(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ended := types.GameSnapshot{StartTime: now.Add(-time.Hour), EndTime: now.Add(-time.Minute), IsActive: true}

	c := NewCountdown(5)
	c.Observe(ended, now)
	assert.True(t, c.Counting())
	assert.Equal(t, 5, c.Remaining())

	fires := 0
	for i := 0; i < 20; i++ {
		c.Observe(ended, now)
		if c.Tick() {
			fires++
			assert.Equal(t, 4, i)
		}
	}
	assert.Equal(t, 1, fires)
	assert.True(t, c.Fired())
	assert.False(t, c.Counting())
}

func TestCountdownInactiveGameStarts(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewCountdown(2)
	c.Observe(types.GameSnapshot{StartTime: now, EndTime: now.Add(time.Hour), IsActive: false}, now)
	assert.True(t, c.Counting())
	assert.False(t, c.Tick())
	assert.True(t, c.Tick())
}

func TestCountdownResetsOnRunningGame(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ended := types.GameSnapshot{StartTime: now.Add(-time.Hour), EndTime: now, IsActive: false}
	running := types.GameSnapshot{StartTime: now, EndTime: now.Add(time.Hour), IsActive: true}

	c := NewCountdown(1)
	c.Observe(ended, now)
	assert.True(t, c.Tick())

	c.Observe(running, now)
	assert.False(t, c.Fired())
	assert.False(t, c.Counting())
	assert.False(t, c.Tick())

	c.Observe(ended, now)
	assert.True(t, c.Tick())
}

func TestCountdownIdleDoesNotTick(t *testing.T) {
	c := NewCountdown(0)
	assert.False(t, c.Tick())
	assert.False(t, c.Counting())
}
