package resequence

import (
	"context"

	"github.com/ibs-source/resequencer/internal/checkpoint"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/platform"
)

// ShutdownCheckpointer performs the final checkpoint of a stopping partition.
type ShutdownCheckpointer interface {
	Shutdown(ctx context.Context, cursor platform.Cursor, reason checkpoint.ShutdownReason) (checkpoint.Result, error)
}

// PartitionProcessor adapts a Router to the worker lifecycle of a single
// partition. It remembers the last handled cursor for the final checkpoint.
type PartitionProcessor struct {
	router      *Router
	checkpoints ShutdownCheckpointer
	logger      *log.Logger

	partition string
	last      platform.Cursor
	reports   int
}

// NewPartitionProcessor creates a processor sharing router with other partitions.
func NewPartitionProcessor(router *Router, checkpoints ShutdownCheckpointer) *PartitionProcessor {
	return &PartitionProcessor{router: router, checkpoints: checkpoints, logger: router.logger}
}

func (p *PartitionProcessor) Initialize(_ context.Context, partition string) error {
	p.partition = partition
	p.last = platform.Cursor{Partition: partition}
	p.logger.Debug("Resequencing partition %s", partition)
	return nil
}

func (p *PartitionProcessor) ProcessBatch(ctx context.Context, records []platform.RawRecord) error {
	batch := Batch{Partition: p.partition, Records: records}
	report, err := p.router.ProcessBatch(ctx, batch)
	p.reports++
	if report.State != StateFailed && len(records) > 0 {
		p.last = batch.Cursor()
	}
	return err
}

func (p *PartitionProcessor) Shutdown(ctx context.Context, reason checkpoint.ShutdownReason) error {
	_, err := p.checkpoints.Shutdown(ctx, p.last, reason)
	return err
}

// Batches is the number of batches handled so far.
func (p *PartitionProcessor) Batches() int {
	return p.reports
}
