package mqtt

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ibs-source/resequencer/internal/event"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/metrics"
)

// Publisher sends a keyed payload. Payloads sharing a key are delivered in
// the order they are published.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

var _ Publisher = (*Pool)(nil)

// Mirror republishes every event written to the ordered queue.
type Mirror struct {
	pub     Publisher
	log     *log.Logger
	metrics *metrics.Metrics
}

// NewMirror creates a mirror over pub.
func NewMirror(pub Publisher, logger *log.Logger, m *metrics.Metrics) *Mirror {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &Mirror{pub: pub, log: logger, metrics: m}
}

// Mirror publishes events in order, keyed by their partition key. Every
// event is attempted; failures are aggregated.
func (m *Mirror) Mirror(ctx context.Context, events []event.Event) error {
	var result *multierror.Error
	for _, e := range events {
		err := m.pub.Publish(ctx, e.PartitionKey(), event.Encode(e))
		m.metrics.RecordMirror(err == nil)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("mirror %s: %w", e, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	return result.ErrorOrNil()
}

// Close closes the underlying publisher.
func (m *Mirror) Close() error {
	return m.pub.Close()
}
