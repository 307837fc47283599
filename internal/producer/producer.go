package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ibs-source/resequencer/internal/config"
	"github.com/ibs-source/resequencer/internal/event"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/publish"
)

// Sender writes one event at a time, preserving per-key order.
type Sender interface {
	Send(ctx context.Context, queue string, e event.Event) (string, error)
}

// BatchPublisher writes a bucket of events.
type BatchPublisher interface {
	Publish(ctx context.Context, queue string, events []event.Event) (publish.Outcome, error)
}

// Source yields events until it returns false.
type Source func() (event.Event, bool)

// FromSlice returns a Source over events.
func FromSlice(events []event.Event) Source {
	i := 0
	return func() (event.Event, bool) {
		if i >= len(events) {
			return event.Event{}, false
		}
		i++
		return events[i-1], true
	}
}

// FromGenerator returns a Source yielding count generated events, or an
// unbounded stream when count is 0.
func FromGenerator(g *Generator, count int) Source {
	n := 0
	return func() (event.Event, bool) {
		if count > 0 && n >= count {
			return event.Event{}, false
		}
		n++
		return g.Next(), true
	}
}

// Result counts what a run wrote.
type Result struct {
	Sent   int
	Failed int
}

// Producer writes a Source into a queue.
type Producer struct {
	queue     string
	mode      string
	interval  time.Duration
	batchSize int
	single    Sender
	batch     BatchPublisher
	log       *log.Logger
}

// New creates a producer. single is used in config.ProducerModeSingle and
// batch in config.ProducerModeBatch.
func New(cfg *config.ProducerConfig, queue string, batchSize int, single Sender, batch BatchPublisher, logger *log.Logger) *Producer {
	if logger == nil {
		logger = log.NewDiscard()
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Producer{
		queue:     queue,
		mode:      cfg.Mode,
		interval:  cfg.Interval,
		batchSize: batchSize,
		single:    single,
		batch:     batch,
		log:       logger.With("queue", queue),
	}
}

// Run writes events from src until it is exhausted or ctx is done. Failed
// writes are counted and logged; the run continues.
func (p *Producer) Run(ctx context.Context, src Source) (Result, error) {
	var res Result
	var err error
	switch p.mode {
	case config.ProducerModeSingle:
		err = p.runSingle(ctx, src, &res)
	case config.ProducerModeBatch:
		err = p.runBatch(ctx, src, &res)
	default:
		return res, fmt.Errorf("unknown producer mode %q", p.mode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	p.log.Info("Producer finished: %d sent, %d failed", res.Sent, res.Failed)
	return res, err
}

func (p *Producer) runSingle(ctx context.Context, src Source, res *Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, ok := src()
		if !ok {
			return nil
		}
		if _, err := p.single.Send(ctx, p.queue, e); err != nil {
			res.Failed++
			p.log.Warn("Send of %s failed: %v", e, err)
		} else {
			res.Sent++
			p.log.Debug("Sent %s", e)
		}
		if err := wait(ctx, p.interval); err != nil {
			return err
		}
	}
}

func (p *Producer) runBatch(ctx context.Context, src Source, res *Result) error {
	batch := make([]event.Event, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		out, err := p.batch.Publish(ctx, p.queue, batch)
		res.Sent += out.Accepted
		res.Failed += len(batch) - out.Accepted
		if err != nil {
			p.log.Warn("Batch of %d events incomplete: %v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, ok := src()
		if !ok {
			flush()
			return nil
		}
		batch = append(batch, e)
		if len(batch) < p.batchSize {
			continue
		}
		flush()
		if err := wait(ctx, p.interval); err != nil {
			return err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
