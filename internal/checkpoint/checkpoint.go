// Package checkpoint commits partition read progress and decides which
// checkpoint failures are benign, recoverable or fatal.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/metrics"
	"github.com/ibs-source/resequencer/internal/platform"
)

// Result is how a checkpoint request ended.
type Result = metrics.CheckpointOutcome

// ShutdownReason says why a partition worker is stopping.
type ShutdownReason int

const (
	// ReasonRequested is a graceful stop of the whole process.
	ReasonRequested ShutdownReason = iota
	// ReasonEndOfPartition means the partition is sealed and fully read.
	ReasonEndOfPartition
	// ReasonReassigned means another worker now owns the partition.
	ReasonReassigned
)

func (r ShutdownReason) String() string {
	switch r {
	case ReasonRequested:
		return "requested"
	case ReasonEndOfPartition:
		return "end_of_partition"
	case ReasonReassigned:
		return "reassigned"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// ErrInvalidState is returned by Commit when the checkpoint store is corrupt
// or missing. The worker owning the partition must stop.
var ErrInvalidState = errors.New("checkpoint rejected")

// Coordinator commits cursors through the platform. It holds no per-partition
// state and is safe for concurrent use.
type Coordinator struct {
	platform platform.Platform
	logger   *log.Logger
	metrics  *metrics.Metrics
}

// New creates a Coordinator.
func New(p platform.Platform, logger *log.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &Coordinator{platform: p, logger: logger, metrics: m}
}

// Commit checkpoints cursor. Ownership loss and throttling are logged and
// swallowed: the batch is redelivered and handled again. Only an invalid
// checkpoint store is returned as an error, wrapping ErrInvalidState.
func (c *Coordinator) Commit(ctx context.Context, cursor platform.Cursor) (Result, error) {
	fields := logrus.Fields{"partition": cursor.Partition, "position": cursor.Position}

	if cursor.Position == "" {
		// no record was ever read, so there is no position to store
		c.metrics.RecordCheckpoint(metrics.CheckpointNothingToCommit)
		c.logger.DebugWithFields(fields, "Nothing to checkpoint")
		return metrics.CheckpointNothingToCommit, nil
	}

	err := c.platform.Checkpoint(ctx, cursor)
	switch {
	case err == nil:
		c.metrics.RecordCheckpoint(metrics.CheckpointCommitted)
		c.logger.DebugWithFields(fields, "Checkpointed %d records", cursor.Records)
		return metrics.CheckpointCommitted, nil

	case errors.Is(err, platform.ErrShutdown):
		c.metrics.RecordCheckpoint(metrics.CheckpointSkippedShutdown)
		c.logger.InfoWithFields(fields, "Skipping checkpoint, partition no longer owned: %v", err)
		return metrics.CheckpointSkippedShutdown, nil

	case errors.Is(err, platform.ErrThrottled):
		c.metrics.RecordCheckpoint(metrics.CheckpointSkippedThrottled)
		c.logger.ErrorWithFields(fields, "Checkpoint throttled, batch will be redelivered: %v", err)
		return metrics.CheckpointSkippedThrottled, nil

	case errors.Is(err, platform.ErrInvalidState):
		c.metrics.RecordCheckpoint(metrics.CheckpointInvalidState)
		c.logger.ErrorWithFields(fields, "Checkpoint store in invalid state: %v", err)
		return metrics.CheckpointInvalidState, fmt.Errorf("%w: partition %s: %w", ErrInvalidState, cursor.Partition, err)

	default:
		c.metrics.RecordCheckpoint(metrics.CheckpointFailed)
		c.logger.ErrorWithFields(fields, "Checkpoint failed, batch will be redelivered: %v", err)
		return metrics.CheckpointFailed, nil
	}
}

// Skip records that a batch was not checkpointed on purpose.
func (c *Coordinator) Skip(cursor platform.Cursor, why string) Result {
	c.metrics.RecordCheckpoint(metrics.CheckpointNotAttempted)
	c.logger.WarnWithFields(logrus.Fields{"partition": cursor.Partition}, "Checkpoint skipped: %s", why)
	return metrics.CheckpointNotAttempted
}

// Shutdown handles the final checkpoint of a stopping worker. Only a worker
// that drained a sealed partition commits; a reassigned worker must not race
// the new owner, and a requested stop leaves the last batch for redelivery.
func (c *Coordinator) Shutdown(ctx context.Context, cursor platform.Cursor, reason ShutdownReason) (Result, error) {
	if reason != ReasonEndOfPartition {
		c.metrics.RecordCheckpoint(metrics.CheckpointNotAttempted)
		c.logger.InfoWithFields(logrus.Fields{
			"partition": cursor.Partition,
			"reason":    reason.String(),
		}, "Worker stopping without checkpoint")
		return metrics.CheckpointNotAttempted, nil
	}
	return c.Commit(ctx, cursor)
}
