// Package worker drives partition processors: one worker per partition polls
// records and hands each batch to its Processor, one batch at a time.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ibs-source/resequencer/internal/checkpoint"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/metrics"
	"github.com/ibs-source/resequencer/internal/platform"
)

// Processor handles the records of one partition. The worker owns the loop
// and calls Initialize once, ProcessBatch for every poll, and Shutdown once.
type Processor interface {
	Initialize(ctx context.Context, partition string) error
	// ProcessBatch returns an error wrapping checkpoint.ErrInvalidState to
	// stop the worker; any other error is logged and the loop continues.
	ProcessBatch(ctx context.Context, records []platform.RawRecord) error
	Shutdown(ctx context.Context, reason checkpoint.ShutdownReason) error
}

// Factory creates the Processor for a partition.
type Factory func(partition string) Processor

// State is the lifecycle stage of a Worker.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StatePolling
	StateProcessing
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StatePolling:
		return "polling"
	case StateProcessing:
		return "processing"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures the polling loop.
type Options struct {
	MaxRecordsPerPoll int
	PollIdleDelay     time.Duration
	AlwaysPoll        bool
	// ErrorBackoff is the pause after a failed poll or batch.
	ErrorBackoff time.Duration
	Logger       *log.Logger
	Metrics      *metrics.Metrics
}

// Worker polls a single partition.
type Worker struct {
	partition string
	platform  platform.Platform
	processor Processor
	opts      Options
	log       *log.Logger
	state     atomic.Int32
	reason    atomic.Int32
}

// New creates a worker for partition.
func New(partition string, p platform.Platform, proc Processor, opts Options) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDiscard()
	}
	if opts.MaxRecordsPerPoll <= 0 {
		opts.MaxRecordsPerPoll = 10000
	}
	return &Worker{
		partition: partition,
		platform:  p,
		processor: proc,
		opts:      opts,
		log:       logger.With("partition", partition),
	}
}

// State returns the current lifecycle stage.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Reason returns why the worker stopped. It is safe to call while the worker
// runs and reports ReasonRequested until a reason is known.
func (w *Worker) Reason() checkpoint.ShutdownReason {
	return checkpoint.ShutdownReason(w.reason.Load())
}

func (w *Worker) enter(s State) {
	w.state.Store(int32(s))
}

// Run polls until ctx is done, the partition is reassigned or sealed, or the
// processor reports a fatal error.
func (w *Worker) Run(ctx context.Context) error {
	defer w.enter(StateStopped)

	w.enter(StateInitializing)
	if err := w.processor.Initialize(ctx, w.partition); err != nil {
		return fmt.Errorf("initialize partition %s: %w", w.partition, err)
	}
	w.log.Info("Worker started")

	reason, err := w.loop(ctx)
	w.reason.Store(int32(reason))

	w.enter(StateShuttingDown)
	// the final checkpoint must not be cut short by the cancellation that stopped us
	if serr := w.processor.Shutdown(context.WithoutCancel(ctx), reason); serr != nil && err == nil {
		err = fmt.Errorf("shutdown partition %s: %w", w.partition, serr)
	}
	w.log.Info("Worker stopped: %s", reason)
	return err
}

func (w *Worker) loop(ctx context.Context) (checkpoint.ShutdownReason, error) {
	for {
		if ctx.Err() != nil {
			return checkpoint.ReasonRequested, nil
		}

		w.enter(StatePolling)
		records, err := w.platform.Poll(ctx, w.partition, w.opts.MaxRecordsPerPoll)
		switch {
		case err == nil:
		case errors.Is(err, platform.ErrShutdown):
			w.log.Info("Partition reassigned: %v", err)
			return checkpoint.ReasonReassigned, nil
		case errors.Is(err, platform.ErrEndOfPartition):
			return checkpoint.ReasonEndOfPartition, nil
		case ctx.Err() != nil:
			return checkpoint.ReasonRequested, nil
		default:
			w.log.Error("Poll failed: %v", err)
			sleep(ctx, w.opts.ErrorBackoff)
			continue
		}
		w.opts.Metrics.RecordPolled(w.partition, len(records))

		if len(records) == 0 && !w.opts.AlwaysPoll {
			sleep(ctx, w.opts.PollIdleDelay)
			continue
		}

		w.enter(StateProcessing)
		if err := w.processor.ProcessBatch(ctx, records); err != nil {
			if errors.Is(err, checkpoint.ErrInvalidState) {
				w.log.Error("Stopping worker: %v", err)
				return checkpoint.ReasonRequested, err
			}
			w.log.Warn("Batch of %d records not completed: %v", len(records), err)
			sleep(ctx, w.opts.ErrorBackoff)
			continue
		}
		if len(records) == 0 {
			sleep(ctx, w.opts.PollIdleDelay)
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
