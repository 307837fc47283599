package resequence

import "time"

// Clock supplies the current time to the watermark.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

// MillisClock returns a FixedClock set to ms milliseconds after the epoch.
func MillisClock(ms int64) *FixedClock {
	return &FixedClock{T: time.UnixMilli(ms)}
}
