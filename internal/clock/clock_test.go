package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Clock(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)

	t.Run("Mock does not move on its own", func(t *testing.T) {
		c := NewMockClock(start)
		assert.Equal(t, start.Unix(), c.Now().Unix())
		assert.Equal(t, start.Unix(), c.Now().Unix())
	})
	t.Run("Add and Set move the mock", func(t *testing.T) {
		c := NewMockClock(start)
		c.Add(31 * time.Second)
		assert.Equal(t, int64(1_700_000_031), UnixSeconds(c))

		c.Set(start.Add(time.Hour))
		assert.Equal(t, start.Add(time.Hour).Unix(), UnixSeconds(c))
	})
	t.Run("System clock follows wall time", func(t *testing.T) {
		before := time.Now().Unix()
		now := UnixSeconds(NewSystemClock())
		assert.GreaterOrEqual(t, now, before)
		assert.LessOrEqual(t, now, time.Now().Unix())
	})
	t.Run("Panics before the epoch", func(t *testing.T) {
		c := NewMockClock(time.Unix(-10, 0))
		assert.Panics(t, func() { UnixSeconds(c) })
	})
}
