// Package publish writes sorted event buckets to a destination queue.
//
// Publisher is the batched path: it chunks a bucket, submits each chunk as
// one PutBatch request and re-submits only the entries the platform
// rejected. SequentialSender is the strict single-record path that chains
// ordering tokens per partition key.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/ibs-source/resequencer/internal/event"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/metrics"
	"github.com/ibs-source/resequencer/internal/platform"
)

// Options configures a Publisher.
type Options struct {
	// MaxBatchPutSize is the chunk size, capped at platform.DefaultMaxBatchPut.
	MaxBatchPutSize int
	Retry           RetryPolicy
	Logger          *log.Logger
	Metrics         *metrics.Metrics
}

// Publisher writes event buckets with PutBatch. It is safe for concurrent use.
type Publisher struct {
	platform platform.Platform
	chunk    int
	policy   RetryPolicy
	logger   *log.Logger
	metrics  *metrics.Metrics
}

// Outcome summarizes a Publish call.
type Outcome struct {
	// Accepted is the number of entries the platform accepted.
	Accepted int
	// Requests is the number of PutBatch calls issued, retries included.
	Requests int
	// Retried is the number of entry submissions beyond the first.
	Retried int
}

// IncompleteError is returned when the retry policy gives up with entries
// still unaccepted. Pending holds those events in their original order.
type IncompleteError struct {
	Queue   string
	Pending []event.Event
	Err     error
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("publish to %s incomplete: %d entries not accepted: %v", e.Queue, len(e.Pending), e.Err)
}

func (e *IncompleteError) Unwrap() error {
	return e.Err
}

// EntryError is the platform's rejection of a single entry.
type EntryError struct {
	PartitionKey string
	Code         string
	Message      string
}

func (e *EntryError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("entry %s rejected: %s", e.PartitionKey, e.Code)
	}
	return fmt.Sprintf("entry %s rejected: %s: %s", e.PartitionKey, e.Code, e.Message)
}

// New creates a Publisher writing through p.
func New(p platform.Platform, opts Options) *Publisher {
	chunk := opts.MaxBatchPutSize
	if chunk <= 0 || chunk > platform.DefaultMaxBatchPut {
		chunk = platform.DefaultMaxBatchPut
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &Publisher{
		platform: p,
		chunk:    chunk,
		policy:   opts.Retry,
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// Publish writes events to queue in chunks. With an unlimited policy it
// returns only once every entry is accepted, or when ctx is done. Entries
// accepted by an earlier request are never submitted again. Cancelling ctx
// does not interrupt a request in flight, it only prevents the next one.
func (p *Publisher) Publish(ctx context.Context, queue string, events []event.Event) (Outcome, error) {
	var out Outcome
	for start := 0; start < len(events); start += p.chunk {
		end := min(start+p.chunk, len(events))
		if err := p.publishChunk(ctx, queue, events[start:end], &out); err != nil {
			var inc *IncompleteError
			if errors.As(err, &inc) {
				// later chunks were never attempted
				inc.Pending = append(inc.Pending, events[end:]...)
			}
			return out, err
		}
	}
	return out, nil
}

func (p *Publisher) publishChunk(ctx context.Context, queue string, chunk []event.Event, out *Outcome) error {
	entries := make([]platform.PutEntry, len(chunk))
	for i, e := range chunk {
		entries[i] = platform.PutEntry{PartitionKey: e.PartitionKey(), Data: event.Encode(e)}
	}

	pending := make([]int, len(chunk))
	for i := range pending {
		pending[i] = i
	}
	var lastRejections error
	// a request already sent is allowed to finish; ctx only stops further attempts
	reqCtx := context.WithoutCancel(ctx)

	attempt := func() error {
		batch := make([]platform.PutEntry, len(pending))
		for i, idx := range pending {
			batch[i] = entries[idx]
		}
		if out.Requests > 0 {
			out.Retried += len(batch)
		}
		out.Requests++

		results, err := p.platform.PutBatch(reqCtx, queue, batch)
		if err != nil {
			p.metrics.RecordPut(queue, len(batch))
			return fmt.Errorf("put batch to %s: %w", queue, err)
		}
		if len(results) != len(batch) {
			p.metrics.RecordPut(queue, len(batch))
			return fmt.Errorf("put batch to %s: %d results for %d entries", queue, len(results), len(batch))
		}

		var failed []int
		var rejections *multierror.Error
		for i, r := range results {
			if !r.Failed() {
				out.Accepted++
				continue
			}
			failed = append(failed, pending[i])
			rejections = multierror.Append(rejections, &EntryError{
				PartitionKey: batch[i].PartitionKey,
				Code:         r.ErrorCode,
				Message:      r.ErrorMessage,
			})
		}
		p.metrics.RecordPut(queue, len(failed))
		pending = failed
		if len(failed) == 0 {
			return nil
		}
		lastRejections = rejections.ErrorOrNil()
		return lastRejections
	}

	onRetry := func(n uint, err error) {
		p.logger.WarnWithFields(logrus.Fields{
			"queue":   queue,
			"pending": len(pending),
			"attempt": n + 1,
		}, "Retrying put: %s", summarize(err))
	}

	err := p.policy.do(ctx, attempt, retryableWrite, onRetry)
	if len(pending) == 0 {
		return nil
	}
	if err == nil {
		err = lastRejections
	}
	left := make([]event.Event, len(pending))
	for i, idx := range pending {
		left[i] = chunk[idx]
	}
	return &IncompleteError{Queue: queue, Pending: left, Err: err}
}

// summarize keeps retry logs to one line when many entries fail at once.
func summarize(err error) string {
	var merr *multierror.Error
	if errors.As(err, &merr) && len(merr.Errors) > 1 {
		codes := make(map[string]int)
		for _, e := range merr.Errors {
			var ee *EntryError
			if errors.As(e, &ee) {
				codes[ee.Code]++
			}
		}
		parts := make([]string, 0, len(codes))
		for code, n := range codes {
			parts = append(parts, fmt.Sprintf("%s x%d", code, n))
		}
		return fmt.Sprintf("%d entries rejected (%s)", len(merr.Errors), strings.Join(parts, ", "))
	}
	return err.Error()
}
