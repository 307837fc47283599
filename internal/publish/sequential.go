package publish

import (
	"context"
	"fmt"
	"sync"

	"github.com/ibs-source/resequencer/internal/event"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/platform"
)

// SequentialSender writes one record at a time and chains each write to the
// previous one for the same queue and partition key, so the platform keeps
// them in send order. Sends for different keys run concurrently; sends for
// the same key are serialized.
type SequentialSender struct {
	platform platform.Platform
	policy   RetryPolicy
	logger   *log.Logger

	mu     sync.Mutex
	chains map[chainKey]*chain
}

type chainKey struct {
	queue        string
	partitionKey string
}

type chain struct {
	mu    sync.Mutex
	token string
}

// NewSequentialSender creates a sender writing through p. Only throttling
// errors are retried under policy.
func NewSequentialSender(p platform.Platform, policy RetryPolicy, logger *log.Logger) *SequentialSender {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &SequentialSender{
		platform: p,
		policy:   policy,
		logger:   logger,
		chains:   make(map[chainKey]*chain),
	}
}

// Send writes e to queue after the previous successful Send for the same
// partition key and returns the new ordering token.
func (s *SequentialSender) Send(ctx context.Context, queue string, e event.Event) (string, error) {
	key := chainKey{queue: queue, partitionKey: e.PartitionKey()}
	c := s.chain(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	data := event.Encode(e)
	reqCtx := context.WithoutCancel(ctx)
	var token string
	err := s.policy.do(ctx, func() error {
		t, err := s.platform.PutSingle(reqCtx, queue, key.partitionKey, data, c.token)
		if err != nil {
			return err
		}
		token = t
		return nil
	}, retryableSingle, func(n uint, err error) {
		s.logger.Warn("Retrying single put to %s for key %s (attempt %d): %v", queue, key.partitionKey, n+1, err)
	})
	if err != nil {
		return "", fmt.Errorf("put single to %s: %w", queue, err)
	}
	c.token = token
	return token, nil
}

// Token returns the last ordering token issued for partitionKey on queue.
func (s *SequentialSender) Token(queue, partitionKey string) string {
	c := s.chain(chainKey{queue: queue, partitionKey: partitionKey})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (s *SequentialSender) chain(key chainKey) *chain {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chains[key]
	if !ok {
		c = &chain{}
		s.chains[key] = c
	}
	return c
}
