// Package platform defines the queue platform contract the resequencer runs on:
// a set of named queues, each split into independently consumed partitions.
package platform

import (
	"context"
	"errors"

	"github.com/cespare/xxhash/v2"
)

// Checkpoint and poll failure classes. Implementations wrap the underlying
// cause so callers can match with errors.Is.
var (
	// ErrShutdown means the caller no longer owns the partition.
	ErrShutdown = errors.New("partition ownership lost")
	// ErrThrottled means the checkpoint store refused the request for now.
	ErrThrottled = errors.New("checkpoint store throttled")
	// ErrInvalidState means the checkpoint store is missing or corrupt.
	ErrInvalidState = errors.New("checkpoint store in invalid state")
	// ErrEndOfPartition means the partition is sealed and fully consumed.
	ErrEndOfPartition = errors.New("end of partition")
	// ErrQueueNotFound is returned by DescribeQueue for unknown queues.
	ErrQueueNotFound = errors.New("queue not found")
)

// DefaultMaxBatchPut is the per-call ceiling for PutBatch.
const DefaultMaxBatchPut = 500

// RawRecord is one undecoded record read from a partition.
type RawRecord struct {
	Data         []byte
	PartitionKey string
	// SequenceToken is the platform-assigned position of the record.
	SequenceToken string
}

// PutEntry is one record of a batched write.
type PutEntry struct {
	PartitionKey string
	Data         []byte
}

// PutResult is the per-entry outcome of a batched write. An empty ErrorCode
// means the entry was accepted.
type PutResult struct {
	SequenceToken string
	ErrorCode     string
	ErrorMessage  string
}

// Failed reports whether the entry was rejected.
func (r PutResult) Failed() bool {
	return r.ErrorCode != ""
}

// Cursor is the read progress of one partition.
type Cursor struct {
	Partition string
	// Position is the sequence token of the last record handled.
	Position string
	// Records is the number of records handled since the previous checkpoint.
	Records int
}

// QueueStatus describes a queue as reported by DescribeQueue.
type QueueStatus struct {
	Name       string
	Active     bool
	Partitions int
}

// Platform is the queue platform the resequencer runs on. Implementations
// must be safe for concurrent use by partition workers.
type Platform interface {
	// Partitions lists the partition identifiers of queue.
	Partitions(ctx context.Context, queue string) ([]string, error)
	// Poll returns up to max records from partition, oldest first. Records
	// handed out but not checkpointed are delivered again.
	Poll(ctx context.Context, partition string, max int) ([]RawRecord, error)
	// PutBatch writes entries to queue and reports a result per entry, in order.
	PutBatch(ctx context.Context, queue string, entries []PutEntry) ([]PutResult, error)
	// PutSingle writes one record. When orderingToken is set the record is
	// placed after the record that produced the token. Returns the new token.
	PutSingle(ctx context.Context, queue, partitionKey string, data []byte, orderingToken string) (string, error)
	// Checkpoint commits the cursor's position for its partition.
	Checkpoint(ctx context.Context, cursor Cursor) error
	// DescribeQueue reports whether queue exists and is active.
	DescribeQueue(ctx context.Context, queue string) (QueueStatus, error)
}

// EnsureActive fails unless every queue exists and is active.
func EnsureActive(ctx context.Context, p Platform, queues ...string) error {
	for _, q := range queues {
		status, err := p.DescribeQueue(ctx, q)
		if err != nil {
			return err
		}
		if !status.Active {
			return &InactiveQueueError{Queue: q}
		}
	}
	return nil
}

// InactiveQueueError is returned by EnsureActive for a queue that exists but
// is not ready.
type InactiveQueueError struct {
	Queue string
}

func (e *InactiveQueueError) Error() string {
	return "queue " + e.Queue + " is not active"
}

// PartitionIndex maps a partition key onto one of n partitions.
func PartitionIndex(partitionKey string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(partitionKey) % uint64(n)) // #nosec G115 - n is a small positive partition count
}
