package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimIdle moves entries pending for other consumers on the partitions this
// consumer holds, once they have been idle for the configured claim time.
// They are then delivered again by Poll.
func (c *Client) ClaimIdle(ctx context.Context) error {
	total := 0
	for _, partition := range c.heldPartitions() {
		n, err := c.claim(ctx, partition, c.claimIdle)
		if err != nil {
			c.log.Warn("failed to claim idle entries of %s: %v", partition, err)
			continue
		}
		total += n
	}
	if total > 0 {
		c.log.Info("Claimed %d idle pending entries", total)
	}
	return nil
}

// claim takes over the entries of partition pending for other consumers and
// idle for at least minIdle.
func (c *Client) claim(ctx context.Context, partition string, minIdle time.Duration) (int, error) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: partition,
		Group:  c.group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  ackPageSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("xpending failed: %w", classify(err))
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		if p.Consumer != c.consumer {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	claimed, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   partition,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xclaim failed: %w", classify(err))
	}
	return len(claimed), nil
}

func (c *Client) heldPartitions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.held))
	for p := range c.held {
		out = append(out, p)
	}
	return out
}

// CleanupDeadConsumers removes consumers idle for longer than idleTimeout
// from the groups of the given queues. Consumers that still own pending
// entries are kept so their entries can be claimed.
func (c *Client) CleanupDeadConsumers(ctx context.Context, idleTimeout time.Duration, queues ...string) error {
	now := time.Now()
	totalRemovedCount := 0

	for _, queue := range queues {
		partitions, err := c.Partitions(ctx, queue)
		if err != nil {
			c.log.Warn("failed to list partitions of %s: %v", queue, err)
			continue
		}
		for _, stream := range partitions {
			removedCount, err := c.cleanupDeadConsumersForStream(ctx, stream, idleTimeout)
			if err != nil {
				c.log.Warn("failed to cleanup dead consumers for stream %s: %v", stream, err)
				continue
			}
			totalRemovedCount += removedCount
		}
	}

	if totalRemovedCount > 0 {
		c.log.Info("Cleaned up %d dead consumers at %s", totalRemovedCount, now.Format(time.RFC3339))
	}

	return nil
}

func (c *Client) cleanupDeadConsumersForStream(
	ctx context.Context, stream string, idleTimeout time.Duration,
) (int, error) {
	consumers, err := c.rdb.XInfoConsumers(ctx, stream, c.group).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get consumers info: %w", err)
	}

	var removedCount int

	for _, consumer := range consumers {
		if consumer.Name == c.consumer {
			continue
		}
		if consumer.Idle <= idleTimeout {
			c.log.Debug("Consumer %s on stream %s is active (idle for %s)", consumer.Name, stream, consumer.Idle)
			continue
		}
		if consumer.Pending > 0 {
			c.log.Debug("Keeping idle consumer %s on stream %s with %d pending entries", consumer.Name, stream, consumer.Pending)
			continue
		}

		c.log.Info("Removing dead consumer %s from stream %s (idle for %s)", consumer.Name, stream, consumer.Idle)
		if _, err := c.rdb.XGroupDelConsumer(ctx, stream, c.group, consumer.Name).Result(); err != nil {
			c.log.Error("Failed to delete consumer %s from stream %s: %v", consumer.Name, stream, err)
			continue
		}
		removedCount++
	}

	return removedCount, nil
}
