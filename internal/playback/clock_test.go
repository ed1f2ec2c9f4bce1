package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClockOrder(t *testing.T) {
	c := NewManualClock()
	var got []string

	c.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })
	c.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	c.AfterFunc(20*time.Millisecond, func() { got = append(got, "c") })
	stopped := c.AfterFunc(15*time.Millisecond, func() { got = append(got, "x") })

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	c.Advance(15 * time.Millisecond)
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, 15*time.Millisecond, c.Now())

	c.Advance(5 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, 4, c.Armed())
}

func TestManualClockChainedTimers(t *testing.T) {
	c := NewManualClock()
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 5 {
			c.AfterFunc(10*time.Millisecond, tick)
		}
	}
	c.AfterFunc(0, tick)

	elapsed := c.RunUntilIdle(100)
	assert.Equal(t, 5, count)
	assert.Equal(t, 40*time.Millisecond, elapsed)
}

func TestManualClockRunUntilIdleLimit(t *testing.T) {
	c := NewManualClock()
	var tick func()
	tick = func() { c.AfterFunc(time.Millisecond, tick) }
	c.AfterFunc(time.Millisecond, tick)

	c.RunUntilIdle(3)
	assert.Equal(t, 1, c.Pending())
}
