// Package reader consumes the ordered queue: it logs every event, counts
// order inversions seen inside each batch and checkpoints.
package reader

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ibs-source/resequencer/internal/checkpoint"
	"github.com/ibs-source/resequencer/internal/event"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/metrics"
	"github.com/ibs-source/resequencer/internal/platform"
)

// Stats are the totals of a Reader, shared by all of its partitions.
type Stats struct {
	Events       atomic.Int64
	Inversions   atomic.Int64
	DecodeErrors atomic.Int64
}

// Checkpointer is the subset of checkpoint.Coordinator the reader uses.
type Checkpointer interface {
	Commit(ctx context.Context, cursor platform.Cursor) (checkpoint.Result, error)
	Shutdown(ctx context.Context, cursor platform.Cursor, reason checkpoint.ShutdownReason) (checkpoint.Result, error)
}

// Reader creates one Processor per partition of the ordered queue.
type Reader struct {
	checkpoints Checkpointer
	log         *log.Logger
	metrics     *metrics.Metrics
	stats       Stats
	// OnEvent, when set, receives every decoded event in delivery order.
	OnEvent func(partition string, e event.Event)
}

// New creates a Reader.
func New(checkpoints Checkpointer, logger *log.Logger, m *metrics.Metrics) *Reader {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &Reader{checkpoints: checkpoints, log: logger, metrics: m}
}

// Stats returns the running totals.
func (r *Reader) Stats() *Stats {
	return &r.stats
}

// Processor returns the processor for partition.
func (r *Reader) Processor(partition string) *Processor {
	return &Processor{reader: r, cursor: platform.Cursor{Partition: partition}}
}

// Processor reads one partition.
type Processor struct {
	reader *Reader
	log    *log.Logger
	cursor platform.Cursor
}

func (p *Processor) Initialize(_ context.Context, partition string) error {
	p.cursor = platform.Cursor{Partition: partition}
	p.log = p.reader.log.With("partition", partition)
	p.log.Info("Reading ordered partition")
	return nil
}

// ProcessBatch logs the events of records in order and checkpoints the batch.
// An inversion is a pair of consecutive events where the later one sorts
// before the earlier one.
func (p *Processor) ProcessBatch(ctx context.Context, records []platform.RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	var prev *event.Event
	inversions := 0
	for _, rec := range records {
		e, err := event.Decode(rec.Data)
		if err != nil {
			p.reader.stats.DecodeErrors.Add(1)
			var de *event.DecodeError
			reason := event.ReasonMalformed
			if errors.As(err, &de) {
				reason = de.Reason
			}
			p.reader.metrics.RecordDecodeError(reason)
			p.log.WarnWithFields(logrus.Fields{"partition_key": rec.PartitionKey}, "Skipping record: %v", err)
			continue
		}
		if prev != nil && event.Compare(*prev, e) > 0 {
			inversions++
			p.log.WarnWithFields(logrus.Fields{"previous": prev.String()}, "Out of order: %s", e)
		}
		p.log.Debug("ORDERED: %s", e)
		if p.reader.OnEvent != nil {
			p.reader.OnEvent(p.cursor.Partition, e)
		}
		prev = &e
		p.reader.stats.Events.Add(1)
	}
	p.reader.stats.Inversions.Add(int64(inversions))
	p.reader.metrics.RecordOrderInversions(inversions)

	p.cursor.Position = records[len(records)-1].SequenceToken
	p.cursor.Records = len(records)
	_, err := p.reader.checkpoints.Commit(ctx, p.cursor)
	return err
}

func (p *Processor) Shutdown(ctx context.Context, reason checkpoint.ShutdownReason) error {
	_, err := p.reader.checkpoints.Shutdown(ctx, p.cursor, reason)
	p.log.Info("Stopped reading: %s", reason)
	return err
}
