package resequence

import "github.com/ibs-source/resequencer/internal/event"

// Deduplicator remembers the events seen in one batch. Lookups go through
// the hashed event.Key; events whose keys collide are told apart with
// event.Equal, so an event is only ever dropped for a true repeat.
type Deduplicator struct {
	seen map[event.Key][]event.Event
}

// NewDeduplicator creates an empty set sized for n events.
func NewDeduplicator(n int) *Deduplicator {
	return &Deduplicator{seen: make(map[event.Key][]event.Event, n)}
}

// Add records e and reports whether it was new.
func (d *Deduplicator) Add(e event.Event) bool {
	k := e.Key()
	for _, prior := range d.seen[k] {
		if prior.Equal(e) {
			return false
		}
	}
	d.seen[k] = append(d.seen[k], e)
	return true
}

// Len is the number of distinct events recorded.
func (d *Deduplicator) Len() int {
	n := 0
	for _, bucket := range d.seen {
		n += len(bucket)
	}
	return n
}

// Dedup returns events without repeats, keeping the first occurrence of each
// and the original relative order.
func Dedup(events []event.Event) []event.Event {
	d := NewDeduplicator(len(events))
	out := make([]event.Event, 0, len(events))
	for _, e := range events {
		if d.Add(e) {
			out = append(out, e)
		}
	}
	return out
}
