package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibs-source/resequencer/internal/platform"
)

// renewLease extends the lease only while it still belongs to ARGV[1].
var renewLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseLease deletes the lease only while it still belongs to ARGV[1].
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ackPageSize bounds a single XPENDING page during a checkpoint.
const ackPageSize = 1000

// holdLease renews or acquires the lease on partition. The first time a
// partition is acquired, the entries left pending by its previous owner are
// claimed so they are delivered again.
func (c *Client) holdLease(ctx context.Context, partition string) (bool, error) {
	key := leaseKey(partition)
	renewed, err := renewLease.Run(ctx, c.rdb, []string{key}, c.consumer, c.leaseTTL.Milliseconds()).Int()
	if err != nil {
		return false, classify(err)
	}
	if renewed == 1 {
		return true, nil
	}

	acquired, err := c.rdb.SetNX(ctx, key, c.consumer, c.leaseTTL).Result()
	if err != nil {
		return false, classify(err)
	}
	if !acquired {
		return false, nil
	}

	c.mu.Lock()
	first := !c.held[partition]
	c.held[partition] = true
	c.mu.Unlock()

	c.log.Info("Acquired lease on %s", partition)
	if first {
		if n, err := c.claim(ctx, partition, 0); err != nil {
			c.log.Warn("Failed to take over pending entries of %s: %v", partition, err)
		} else if n > 0 {
			c.log.Info("Took over %d pending entries of %s", n, partition)
		}
	}
	return true, nil
}

// leased reports whether this consumer has ever owned partition.
func (c *Client) leased(partition string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held[partition]
}

// Poll implements platform.Platform. Entries delivered earlier and not yet
// acknowledged are returned first; new entries are read once none remain.
// A partition leased by another consumer yields no records until its lease
// expires, or platform.ErrShutdown when this consumer owned it before.
func (c *Client) Poll(ctx context.Context, partition string, max int) ([]platform.RawRecord, error) {
	held, err := c.holdLease(ctx, partition)
	if err != nil {
		return nil, err
	}
	if !held {
		if c.leased(partition) {
			return nil, fmt.Errorf("%w: %s is leased by another consumer", platform.ErrShutdown, partition)
		}
		sleep(ctx, c.blockTimeout)
		return nil, nil
	}

	records, err := c.read(ctx, partition, "0", max, -1)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		return records, nil
	}
	records, err = c.read(ctx, partition, ">", max, c.blockTimeout)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		sealed, err := c.rdb.Exists(ctx, sealKey(partition)).Result()
		if err != nil {
			return nil, classify(err)
		}
		if sealed == 1 {
			return nil, fmt.Errorf("%w: %s", platform.ErrEndOfPartition, partition)
		}
	}
	return records, nil
}

func (c *Client) read(ctx context.Context, partition, id string, max int, block time.Duration) ([]platform.RawRecord, error) {
	result, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{partition, id},
		Count:    int64(max),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", partition, classify(err))
	}

	var records []platform.RawRecord
	for _, stream := range result {
		for _, msg := range stream.Messages {
			records = append(records, toRecord(msg))
		}
	}
	return records, nil
}

// toRecord converts a stream entry. Trimmed entries still pending come back
// without values and decode as empty records.
func toRecord(msg redis.XMessage) platform.RawRecord {
	r := platform.RawRecord{SequenceToken: msg.ID}
	if v, ok := msg.Values[fieldKey].(string); ok {
		r.PartitionKey = v
	}
	if v, ok := msg.Values[fieldData].(string); ok {
		r.Data = []byte(v)
	}
	return r
}

// Checkpoint implements platform.Platform. Every entry of the partition
// pending for this consumer up to the cursor position is acknowledged and
// the position is recorded in the checkpoint hash.
func (c *Client) Checkpoint(ctx context.Context, cursor platform.Cursor) error {
	if cursor.Position == "" {
		return nil
	}
	if _, _, ok := parseID(cursor.Position); !ok {
		return fmt.Errorf("%w: bad position %q", platform.ErrInvalidState, cursor.Position)
	}

	held, err := c.holdLease(ctx, cursor.Partition)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("%w: %s is leased by another consumer", platform.ErrShutdown, cursor.Partition)
	}

	for {
		pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream:   cursor.Partition,
			Group:    c.group,
			Start:    "-",
			End:      cursor.Position,
			Count:    ackPageSize,
			Consumer: c.consumer,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("xpending %s: %w", cursor.Partition, classify(err))
		}
		if len(pending) == 0 {
			break
		}
		ids := make([]string, len(pending))
		for i, p := range pending {
			ids[i] = p.ID
		}
		if err := c.rdb.XAck(ctx, cursor.Partition, c.group, ids...).Err(); err != nil {
			return fmt.Errorf("xack %s: %w", cursor.Partition, classify(err))
		}
		if len(pending) < ackPageSize {
			break
		}
	}

	if err := c.rdb.HSet(ctx, c.checkpointKey(), cursor.Partition, cursor.Position).Err(); err != nil {
		return fmt.Errorf("store checkpoint of %s: %w", cursor.Partition, classify(err))
	}
	return nil
}
