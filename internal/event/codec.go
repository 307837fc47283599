package event

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ibs-source/resequencer/pkg/jsonfast"
)

// Decode failure reasons.
const (
	ReasonEmpty            = "empty"
	ReasonMalformed        = "malformed"
	ReasonMissingTimestamp = "missing_timestamp"
)

// DecodeError reports a record that could not be turned into an Event.
// It is a per-record failure: the record is dropped and the batch continues.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode event: %s: %v", e.Reason, e.Err)
	}
	return "decode event: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// wireEvent mirrors the JSON layout produced by Encode. Timestamp is a pointer
// so a missing field can be told apart from a zero value.
type wireEvent struct {
	PartitionHint string `json:"partition_hint"`
	Timestamp     *int64 `json:"timestamp"`
	Sequence      int64  `json:"sequence"`
	Ack           bool   `json:"ack"`
	SourceID      int64  `json:"source_id"`
	Payload       []byte `json:"payload"`
	Bounces       int    `json:"bounces"`
}

var builders = sync.Pool{
	New: func() any { return jsonfast.New(512) },
}

// Encode serializes e as a field-named JSON object.
func Encode(e Event) []byte {
	b := builders.Get().(*jsonfast.Builder)
	defer builders.Put(b)
	b.Reset()
	b.BeginObject()
	b.AddStringField("partition_hint", e.PartitionHint)
	b.AddInt64Field("timestamp", e.Timestamp)
	b.AddInt64Field("sequence", e.Sequence)
	b.AddBoolField("ack", e.Ack)
	b.AddInt64Field("source_id", e.SourceID)
	b.AddBase64Field("payload", e.Payload)
	if e.Bounces > 0 {
		b.AddInt64Field("bounces", int64(e.Bounces))
	}
	b.EndObject()
	return b.Copy()
}

// Decode parses an encoded event. Unknown fields are ignored so newer
// producers can add fields without breaking older consumers.
func Decode(data []byte) (Event, error) {
	if len(data) == 0 {
		return Event{}, &DecodeError{Reason: ReasonEmpty}
	}

	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, &DecodeError{Reason: ReasonMalformed, Err: err}
	}
	if w.Timestamp == nil {
		return Event{}, &DecodeError{Reason: ReasonMissingTimestamp}
	}

	return Event{
		PartitionHint: w.PartitionHint,
		Timestamp:     *w.Timestamp,
		Sequence:      w.Sequence,
		Ack:           w.Ack,
		SourceID:      w.SourceID,
		Payload:       w.Payload,
		Bounces:       w.Bounces,
	}, nil
}
