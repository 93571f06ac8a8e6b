// Package clock holds the time source used by ingestion and readiness. It is
// github.com/benbjohnson/clock so tests can drive time with a mock.
package clock

import (
	"time"

	"github.com/benbjohnson/clock"
)

type Clock = clock.Clock

type Mock = clock.Mock

func NewSystemClock() Clock {
	return clock.New()
}

// NewMockClock returns a mock clock set to start. It only moves on Add or Set.
func NewMockClock(start time.Time) *Mock {
	m := clock.NewMock()
	m.Set(start)
	return m
}

// UnixSeconds returns the seconds since the epoch for c.Now(). A clock set before the
// epoch means the host is broken, so this panics rather than returning a negative time.
func UnixSeconds(c Clock) int64 {
	now := c.Now()
	if now.Before(time.Unix(0, 0)) {
		panic("clock: current time is before the unix epoch")
	}
	return now.Unix()
}
