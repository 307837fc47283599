// Package event defines the resequenced event, its wire codec and its total order.
package event

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Event is the unit of work flowing through the unordered and ordered queues.
// Events are immutable once created; the router only ever copies them.
type Event struct {
	// PartitionHint drives downstream partition placement (ticker, device id...).
	PartitionHint string
	// Timestamp is the logical creation time in milliseconds since the epoch.
	Timestamp int64
	// Sequence is a producer-assigned tiebreaker.
	Sequence int64
	// Ack events sort before non-ack events with the same timestamp and sequence.
	Ack bool
	// SourceID identifies the originating machine.
	SourceID int64
	Payload  []byte
	// Bounces counts re-injections into the unordered queue. Not part of equality.
	Bounces int
}

// Key is a fixed-size hash key over the fields that define equality.
// Equal events always produce equal keys; the reverse only holds
// modulo payload hash collisions, so callers must confirm with Equal.
type Key struct {
	Timestamp   int64
	Sequence    int64
	Ack         bool
	SourceID    int64
	PayloadHash uint64
}

// Key returns the dedup key of e.
func (e Event) Key() Key {
	return Key{
		Timestamp:   e.Timestamp,
		Sequence:    e.Sequence,
		Ack:         e.Ack,
		SourceID:    e.SourceID,
		PayloadHash: xxhash.Sum64(e.Payload),
	}
}

// Equal reports whether e and o carry the same timestamp, sequence, ack flag,
// source id and payload. Two independently generated events with identical
// fields are indistinguishable.
func (e Event) Equal(o Event) bool {
	return e.Timestamp == o.Timestamp &&
		e.Sequence == o.Sequence &&
		e.Ack == o.Ack &&
		e.SourceID == o.SourceID &&
		bytes.Equal(e.Payload, o.Payload)
}

// PartitionKey returns the key used to place e on a downstream partition:
// the partition hint when set, the source id otherwise.
func (e Event) PartitionKey() string {
	if e.PartitionHint != "" {
		return e.PartitionHint
	}
	return strconv.FormatInt(e.SourceID, 10)
}

func (e Event) String() string {
	return fmt.Sprintf("ts=%d seq=%d ack=%t source=%d hint=%q bounces=%d payload=%dB",
		e.Timestamp, e.Sequence, e.Ack, e.SourceID, e.PartitionHint, e.Bounces, len(e.Payload))
}
