// Package memqueue provides an in-process implementation of the queue platform.
// It backs local runs and tests, and supports fault injection on writes and
// checkpoints.
package memqueue

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ibs-source/resequencer/internal/platform"
)

// Queue is an in-memory platform holding any number of partitioned queues.
type Queue struct {
	mu         sync.Mutex
	queues     map[string]*queue
	partitions map[string]*partition
	journal    []string

	// FailEntry, when set, is consulted for every submitted PutBatch entry.
	// A non-empty return value rejects the entry with that error code.
	FailEntry func(queue string, entry platform.PutEntry) string
	// FailRequest, when set, can fail a whole PutBatch call.
	FailRequest func(queue string) error
	// FailCheckpoint, when set, can fail a checkpoint before it is applied.
	FailCheckpoint func(cursor platform.Cursor) error
}

type queue struct {
	name       string
	active     bool
	partitions []*partition
}

type partition struct {
	id        string
	records   []platform.RawRecord
	committed int
	sealed    bool
	revoked   bool
}

var _ platform.Platform = (*Queue)(nil)

// New creates an empty platform.
func New() *Queue {
	return &Queue{
		queues:     make(map[string]*queue),
		partitions: make(map[string]*partition),
	}
}

// CreateQueue adds an active queue with n partitions. Creating an existing
// queue is a no-op.
func (q *Queue) CreateQueue(name string, n int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queues[name]; ok {
		return
	}
	if n < 1 {
		n = 1
	}
	qu := &queue{name: name, active: true, partitions: make([]*partition, n)}
	for i := range qu.partitions {
		p := &partition{id: PartitionID(name, i)}
		qu.partitions[i] = p
		q.partitions[p.id] = p
	}
	q.queues[name] = qu
}

// PartitionID is the identifier of the i-th partition of queue.
func PartitionID(queue string, i int) string {
	return fmt.Sprintf("%s/%d", queue, i)
}

// SetActive flips the status DescribeQueue reports for name.
func (q *Queue) SetActive(name string, active bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if qu, ok := q.queues[name]; ok {
		qu.active = active
	}
}

// Seal marks a partition as closed: once every record is checkpointed, Poll
// reports platform.ErrEndOfPartition.
func (q *Queue) Seal(partitionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p, ok := q.partitions[partitionID]; ok {
		p.sealed = true
	}
}

// Revoke simulates the partition being reassigned to another worker.
func (q *Queue) Revoke(partitionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p, ok := q.partitions[partitionID]; ok {
		p.revoked = true
	}
}

// Partitions implements platform.Platform.
func (q *Queue) Partitions(_ context.Context, name string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	qu, ok := q.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", platform.ErrQueueNotFound, name)
	}
	ids := make([]string, len(qu.partitions))
	for i, p := range qu.partitions {
		ids[i] = p.id
	}
	return ids, nil
}

// Poll implements platform.Platform. Records after the last checkpoint are
// returned again on every poll until they are checkpointed.
func (q *Queue) Poll(_ context.Context, partitionID string, max int) ([]platform.RawRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.partitions[partitionID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown partition %s", platform.ErrInvalidState, partitionID)
	}
	if p.revoked {
		return nil, fmt.Errorf("%w: %s", platform.ErrShutdown, partitionID)
	}

	pending := p.records[p.committed:]
	if len(pending) == 0 && p.sealed {
		return nil, fmt.Errorf("%w: %s", platform.ErrEndOfPartition, partitionID)
	}
	if max > 0 && len(pending) > max {
		pending = pending[:max]
	}
	q.journal = append(q.journal, fmt.Sprintf("poll:%s:%d", partitionID, len(pending)))
	return append([]platform.RawRecord(nil), pending...), nil
}

// PutBatch implements platform.Platform.
func (q *Queue) PutBatch(_ context.Context, name string, entries []platform.PutEntry) ([]platform.PutResult, error) {
	if q.FailRequest != nil {
		if err := q.FailRequest(name); err != nil {
			return nil, err
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	qu, ok := q.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", platform.ErrQueueNotFound, name)
	}
	if len(entries) > platform.DefaultMaxBatchPut {
		return nil, fmt.Errorf("put batch of %d entries exceeds limit %d", len(entries), platform.DefaultMaxBatchPut)
	}

	q.journal = append(q.journal, fmt.Sprintf("put:%s:%d", name, len(entries)))
	results := make([]platform.PutResult, len(entries))
	for i, e := range entries {
		if q.FailEntry != nil {
			if code := q.FailEntry(name, e); code != "" {
				results[i] = platform.PutResult{ErrorCode: code, ErrorMessage: "injected failure"}
				continue
			}
		}
		results[i] = platform.PutResult{SequenceToken: qu.append(e.PartitionKey, e.Data)}
	}
	return results, nil
}

// PutSingle implements platform.Platform.
func (q *Queue) PutSingle(_ context.Context, name, partitionKey string, data []byte, orderingToken string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	qu, ok := q.queues[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", platform.ErrQueueNotFound, name)
	}
	if orderingToken != "" {
		p := qu.partitionFor(partitionKey)
		idx, err := tokenIndex(orderingToken)
		if err != nil || idx >= len(p.records) || p.records[idx].PartitionKey != partitionKey {
			return "", fmt.Errorf("invalid ordering token %q for key %q", orderingToken, partitionKey)
		}
	}
	q.journal = append(q.journal, fmt.Sprintf("put-single:%s", name))
	return qu.append(partitionKey, data), nil
}

// Checkpoint implements platform.Platform.
func (q *Queue) Checkpoint(_ context.Context, cursor platform.Cursor) error {
	if q.FailCheckpoint != nil {
		if err := q.FailCheckpoint(cursor); err != nil {
			return err
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.partitions[cursor.Partition]
	if !ok {
		return fmt.Errorf("%w: unknown partition %s", platform.ErrInvalidState, cursor.Partition)
	}
	if p.revoked {
		return fmt.Errorf("%w: %s", platform.ErrShutdown, cursor.Partition)
	}
	q.journal = append(q.journal, "checkpoint:"+cursor.Partition)
	if cursor.Position == "" {
		return nil
	}
	idx, err := tokenIndex(cursor.Position)
	if err != nil || idx >= len(p.records) {
		return fmt.Errorf("%w: bad position %q", platform.ErrInvalidState, cursor.Position)
	}
	if idx+1 > p.committed {
		p.committed = idx + 1
	}
	return nil
}

// DescribeQueue implements platform.Platform.
func (q *Queue) DescribeQueue(_ context.Context, name string) (platform.QueueStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	qu, ok := q.queues[name]
	if !ok {
		return platform.QueueStatus{}, fmt.Errorf("%w: %s", platform.ErrQueueNotFound, name)
	}
	return platform.QueueStatus{Name: name, Active: qu.active, Partitions: len(qu.partitions)}, nil
}

// Records returns every record written to queue, grouped by partition in
// partition order and append order within a partition.
func (q *Queue) Records(name string) []platform.RawRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	qu, ok := q.queues[name]
	if !ok {
		return nil
	}
	var out []platform.RawRecord
	for _, p := range qu.partitions {
		out = append(out, p.records...)
	}
	return out
}

// Journal returns the operations applied so far, oldest first.
func (q *Queue) Journal() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.journal...)
}

// Committed returns how many records of a partition have been checkpointed.
func (q *Queue) Committed(partitionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p, ok := q.partitions[partitionID]; ok {
		return p.committed
	}
	return 0
}

func (qu *queue) partitionFor(partitionKey string) *partition {
	return qu.partitions[platform.PartitionIndex(partitionKey, len(qu.partitions))]
}

// append stores a record and returns its token. Tokens are the zero-padded
// record index, so they sort in write order within a partition.
func (qu *queue) append(partitionKey string, data []byte) string {
	p := qu.partitionFor(partitionKey)
	token := fmt.Sprintf("%020d", len(p.records))
	p.records = append(p.records, platform.RawRecord{
		Data:          append([]byte(nil), data...),
		PartitionKey:  partitionKey,
		SequenceToken: token,
	})
	return token
}

func tokenIndex(token string) (int, error) {
	return strconv.Atoi(token)
}
