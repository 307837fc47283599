package resequence

import (
	"time"

	"github.com/ibs-source/resequencer/internal/event"
)

// Maturity is the bucket an event is routed to.
type Maturity int

const (
	// Immature events are too young to emit and go back to the input queue.
	Immature Maturity = iota
	// Mature events are old enough that no earlier event is expected to arrive.
	Mature
)

func (m Maturity) String() string {
	if m == Mature {
		return "mature"
	}
	return "immature"
}

// Watermark classifies events by age. An event is mature once strictly more
// than MinimumAge has passed since its timestamp. The decision depends only
// on the event timestamp and now, so it is monotonic in now.
type Watermark struct {
	MinimumAge time.Duration
}

// Classify returns the bucket for e at now.
func (w Watermark) Classify(e event.Event, now time.Time) Maturity {
	if now.UnixMilli()-e.Timestamp > w.MinimumAge.Milliseconds() {
		return Mature
	}
	return Immature
}
