package event

import (
	"cmp"
	"slices"
)

// Compare orders events by timestamp, then sequence, then ack flag (ack
// first), then source id. It returns a negative number when a sorts before b.
func Compare(a, b Event) int {
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Sequence, b.Sequence); c != 0 {
		return c
	}
	if c := ackRank(b) - ackRank(a); c != 0 {
		return c
	}
	return cmp.Compare(a.SourceID, b.SourceID)
}

func ackRank(e Event) int {
	if e.Ack {
		return 1
	}
	return 0
}

// SortStable sorts events in place with Compare, keeping the relative order
// of events that compare equal.
func SortStable(events []Event) {
	slices.SortStableFunc(events, Compare)
}
