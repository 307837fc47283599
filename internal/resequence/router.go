// Package resequence turns batches of out-of-order events into ordered output.
//
// Each batch is split by a watermark into mature and immature events. Both
// buckets are deduplicated and sorted; mature events go to the ordered queue
// and immature events go back to the unordered queue for a later pass. The
// partition is checkpointed only after both writes return.
package resequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibs-source/resequencer/internal/checkpoint"
	"github.com/ibs-source/resequencer/internal/event"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/metrics"
	"github.com/ibs-source/resequencer/internal/platform"
	"github.com/ibs-source/resequencer/internal/publish"
)

// Publisher writes a sorted bucket to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, events []event.Event) (publish.Outcome, error)
}

// Checkpointer commits partition progress.
type Checkpointer interface {
	Commit(ctx context.Context, cursor platform.Cursor) (checkpoint.Result, error)
	Skip(cursor platform.Cursor, why string) checkpoint.Result
}

// Mirror receives every batch of events written to the ordered queue.
// Mirror failures are logged and never fail the batch.
type Mirror interface {
	Mirror(ctx context.Context, events []event.Event) error
}

// Options configures a Router.
type Options struct {
	MinimumAge     time.Duration
	UnorderedQueue string
	OrderedQueue   string

	Clock        Clock
	Publisher    Publisher
	Checkpointer Checkpointer
	Mirror       Mirror
	Logger       *log.Logger
	Metrics      *metrics.Metrics
}

// Router runs the resequencing pipeline for one batch at a time. It keeps no
// state between batches, so one Router can serve every partition worker.
type Router struct {
	watermark    Watermark
	unordered    string
	ordered      string
	clock        Clock
	publisher    Publisher
	checkpointer Checkpointer
	mirror       Mirror
	logger       *log.Logger
	metrics      *metrics.Metrics
}

// NewRouter creates a Router. Publisher and Checkpointer are required.
func NewRouter(opts Options) *Router {
	r := &Router{
		watermark:    Watermark{MinimumAge: opts.MinimumAge},
		unordered:    opts.UnorderedQueue,
		ordered:      opts.OrderedQueue,
		clock:        opts.Clock,
		publisher:    opts.Publisher,
		checkpointer: opts.Checkpointer,
		mirror:       opts.Mirror,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
	if r.clock == nil {
		r.clock = SystemClock{}
	}
	if r.logger == nil {
		r.logger = log.NewDiscard()
	}
	return r
}

// ProcessBatch runs decode, classify, dedup, sort, publish and checkpoint for
// batch. Undecodable records are dropped. A publish that does not complete
// leaves the batch in StateFailed without a checkpoint and returns the
// publish error. An invalid checkpoint store is returned as an error
// wrapping checkpoint.ErrInvalidState.
func (r *Router) ProcessBatch(ctx context.Context, batch Batch) (BatchReport, error) {
	start := time.Now()
	report := BatchReport{Partition: batch.Partition, Records: len(batch.Records)}
	report.enter(StateReceived)
	logger := r.logger.With("partition", batch.Partition)

	defer func() {
		r.metrics.RecordBatch(report.State.String(), time.Since(start))
	}()

	events := r.decode(logger, batch.Records, &report)

	// classify against a single "now" so the whole batch sees one watermark
	now := r.clock.Now()
	var mature, immature []event.Event
	for _, e := range events {
		if r.watermark.Classify(e, now) == Mature {
			mature = append(mature, e)
		} else {
			immature = append(immature, e)
		}
	}
	report.enter(StateClassified)

	seen := NewDeduplicator(len(events))
	mature = keepNew(seen, mature)
	immature = keepNew(seen, immature)
	report.Duplicates = len(events) - len(mature) - len(immature)
	report.Mature, report.Immature = len(mature), len(immature)
	r.metrics.RecordDuplicates(report.Duplicates)
	r.metrics.RecordEvents(metrics.BucketMature, report.Mature)
	r.metrics.RecordEvents(metrics.BucketImmature, report.Immature)
	report.enter(StateDeduplicated)

	event.SortStable(mature)
	event.SortStable(immature)
	report.enter(StateSorted)

	for i := range immature {
		immature[i].Bounces++
	}
	for _, e := range mature {
		r.metrics.RecordBounces(e.Bounces)
	}

	if err := r.publishBuckets(ctx, logger, mature, immature); err != nil {
		report.enter(StateFailed)
		report.Err = err
		report.Checkpoint = r.checkpointer.Skip(batch.Cursor(), "publish incomplete")
		logger.ErrorWithFields(r.fields(&report), "Batch failed, leaving it for redelivery: %v", err)
		return report, err
	}
	report.enter(StatePublished)

	if ctx.Err() != nil {
		// the worker is stopping or lost its lease while publishing
		report.Checkpoint = r.checkpointer.Skip(batch.Cursor(), "worker stopping")
		logger.InfoWithFields(r.fields(&report), "Batch published, checkpoint left to redelivery")
		return report, nil
	}

	result, err := r.checkpointer.Commit(ctx, batch.Cursor())
	report.Checkpoint = result
	if err != nil {
		report.Err = err
		return report, err
	}
	if result == metrics.CheckpointCommitted {
		report.enter(StateCheckpointed)
	}
	logger.DebugWithFields(r.fields(&report), "Batch done")
	return report, nil
}

func (r *Router) decode(logger *log.Logger, records []platform.RawRecord, report *BatchReport) []event.Event {
	events := make([]event.Event, 0, len(records))
	for _, rec := range records {
		e, err := event.Decode(rec.Data)
		if err != nil {
			report.DecodeErrors++
			reason := event.ReasonMalformed
			var de *event.DecodeError
			if errors.As(err, &de) {
				reason = de.Reason
			}
			r.metrics.RecordDecodeError(reason)
			logger.Warn("Dropping record %s: %v", rec.SequenceToken, err)
			continue
		}
		events = append(events, e)
	}
	return events
}

// publishBuckets writes mature events to the ordered queue, then immature
// events back to the unordered queue. The second write is not attempted if
// the first one fails: the whole batch is redelivered either way.
func (r *Router) publishBuckets(ctx context.Context, logger *log.Logger, mature, immature []event.Event) error {
	if len(mature) > 0 {
		if _, err := r.publisher.Publish(ctx, r.ordered, mature); err != nil {
			return fmt.Errorf("publish mature events: %w", err)
		}
		if r.mirror != nil {
			if err := r.mirror.Mirror(ctx, mature); err != nil {
				logger.Warn("Mirroring %d ordered events failed: %v", len(mature), err)
			}
		}
	}
	if len(immature) > 0 {
		if _, err := r.publisher.Publish(ctx, r.unordered, immature); err != nil {
			return fmt.Errorf("re-queue immature events: %w", err)
		}
	}
	return nil
}

func (r *Router) fields(report *BatchReport) logrus.Fields {
	return logrus.Fields{
		"state":         report.State.String(),
		"records":       report.Records,
		"mature":        report.Mature,
		"immature":      report.Immature,
		"duplicates":    report.Duplicates,
		"decode_errors": report.DecodeErrors,
		"checkpoint":    string(report.Checkpoint),
	}
}

func keepNew(seen *Deduplicator, events []event.Event) []event.Event {
	out := events[:0]
	for _, e := range events {
		if seen.Add(e) {
			out = append(out, e)
		}
	}
	return out
}
