package resequence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ibs-source/resequencer/internal/event"
)

func TestDedup_KeepsFirstOccurrenceInOrder(t *testing.T) {
	a := event.Event{Timestamp: 1, Payload: []byte("a")}
	b := event.Event{Timestamp: 2, Payload: []byte("b")}
	aHinted := a
	aHinted.PartitionHint = "other"
	aHinted.Bounces = 3

	got := Dedup([]event.Event{b, a, b, aHinted, a})

	assert.Len(t, got, 2)
	assert.True(t, got[0].Equal(b))
	assert.True(t, got[1].Equal(a))
	assert.Empty(t, got[1].PartitionHint, "first occurrence is kept")
}

func TestDedup_Idempotent(t *testing.T) {
	events := []event.Event{
		{Timestamp: 1, Sequence: 1},
		{Timestamp: 1, Sequence: 1},
		{Timestamp: 1, Sequence: 2},
		{Timestamp: 1, Sequence: 1, Ack: true},
		{Timestamp: 1, Sequence: 1, SourceID: 9},
	}

	once := Dedup(events)
	twice := Dedup(once)

	assert.Len(t, once, 4)
	assert.Equal(t, once, twice)
}

func TestDedup_PayloadDistinguishes(t *testing.T) {
	events := []event.Event{
		{Timestamp: 5, Payload: []byte("x")},
		{Timestamp: 5, Payload: []byte("y")},
		{Timestamp: 5, Payload: nil},
		{Timestamp: 5, Payload: []byte{}},
	}

	// nil and empty payloads are equal
	assert.Len(t, Dedup(events), 3)
}

func TestDeduplicator_Add(t *testing.T) {
	d := NewDeduplicator(0)
	e := event.Event{Timestamp: 1, Payload: []byte("p")}

	assert.True(t, d.Add(e))
	assert.False(t, d.Add(e))
	assert.True(t, d.Add(event.Event{Timestamp: 2}))
	assert.Equal(t, 2, d.Len())
}

func TestDedup_Empty(t *testing.T) {
	assert.Empty(t, Dedup(nil))
}
