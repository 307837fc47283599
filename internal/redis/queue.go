package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ibs-source/resequencer/internal/platform"
)

// Stream entry fields.
const (
	fieldKey  = "key"
	fieldData = "data"
)

// CreateQueue creates queue with n partition streams and their consumer
// group. An existing queue keeps its partition count.
func (c *Client) CreateQueue(ctx context.Context, queue string, n int) error {
	if n < 1 {
		n = 1
	}
	created, err := c.rdb.HSetNX(ctx, metaKey(queue), "partitions", n).Result()
	if err != nil {
		return fmt.Errorf("create queue %s: %w", queue, err)
	}
	if created {
		if err := c.rdb.HSet(ctx, metaKey(queue), "active", "1").Err(); err != nil {
			return fmt.Errorf("create queue %s: %w", queue, err)
		}
		c.log.Info("Created queue '%s' with %d partitions", queue, n)
	}

	count, err := c.partitionCount(ctx, queue)
	if err != nil {
		return err
	}
	if count != n {
		c.log.Warn("Queue '%s' already exists with %d partitions, ignoring requested %d", queue, count, n)
	}
	for i := 0; i < count; i++ {
		if err := c.ensureGroup(ctx, streamKey(queue, i)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ensureGroup(ctx context.Context, stream string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, c.group, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			c.log.Debug("Consumer group '%s' already exists for stream '%s'", c.group, stream)
			return nil
		}
		return fmt.Errorf("failed to create consumer group for stream %s: %w", stream, err)
	}
	c.log.Debug("Created consumer group '%s' for stream '%s'", c.group, stream)
	return nil
}

// partitionCount reads the partition count of queue, cached after the first
// successful read.
func (c *Client) partitionCount(ctx context.Context, queue string) (int, error) {
	c.mu.Lock()
	n, ok := c.partitions[queue]
	c.mu.Unlock()
	if ok {
		return n, nil
	}

	raw, err := c.rdb.HGet(ctx, metaKey(queue), "partitions").Result()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %s", platform.ErrQueueNotFound, queue)
	}
	if err != nil {
		return 0, classify(err)
	}
	n, err = strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: queue %s has partition count %q", platform.ErrInvalidState, queue, raw)
	}

	c.mu.Lock()
	c.partitions[queue] = n
	c.mu.Unlock()
	return n, nil
}

// Partitions implements platform.Platform.
func (c *Client) Partitions(ctx context.Context, queue string) ([]string, error) {
	n, err := c.partitionCount(ctx, queue)
	if err != nil {
		return nil, err
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = streamKey(queue, i)
	}
	return ids, nil
}

// DescribeQueue implements platform.Platform. A queue is active when its
// metadata says so and every partition key holds a stream.
func (c *Client) DescribeQueue(ctx context.Context, queue string) (platform.QueueStatus, error) {
	meta, err := c.rdb.HGetAll(ctx, metaKey(queue)).Result()
	if err != nil {
		return platform.QueueStatus{}, classify(err)
	}
	if len(meta) == 0 {
		return platform.QueueStatus{}, fmt.Errorf("%w: %s", platform.ErrQueueNotFound, queue)
	}
	n, err := strconv.Atoi(meta["partitions"])
	if err != nil {
		return platform.QueueStatus{}, fmt.Errorf("%w: queue %s has partition count %q",
			platform.ErrInvalidState, queue, meta["partitions"])
	}

	status := platform.QueueStatus{Name: queue, Partitions: n, Active: meta["active"] == "1"}
	cmds := make([]*redis.StatusCmd, n)
	if _, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := range cmds {
			cmds[i] = pipe.Type(ctx, streamKey(queue, i))
		}
		return nil
	}); err != nil {
		return platform.QueueStatus{}, classify(err)
	}
	for i, cmd := range cmds {
		if cmd.Val() != "stream" {
			c.log.Warn("Partition %s of queue %s is a %q, not a stream", streamKey(queue, i), queue, cmd.Val())
			status.Active = false
		}
	}
	return status, nil
}

// SetActive flips the status DescribeQueue reports for queue.
func (c *Client) SetActive(ctx context.Context, queue string, active bool) error {
	v := "0"
	if active {
		v = "1"
	}
	return c.rdb.HSet(ctx, metaKey(queue), "active", v).Err()
}

// Seal closes a partition: once its entries are all acknowledged, Poll
// reports platform.ErrEndOfPartition.
func (c *Client) Seal(ctx context.Context, partition string) error {
	return c.rdb.Set(ctx, sealKey(partition), "1", 0).Err()
}

func (c *Client) xaddArgs(stream, partitionKey string, data []byte) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: []interface{}{fieldKey, partitionKey, fieldData, data},
	}
	if c.maxLen > 0 {
		args.MaxLen = c.maxLen
		args.Approx = true
	}
	return args
}

// PutBatch implements platform.Platform. Entries are written with one
// pipelined XADD each; a command error rejects only its entry.
func (c *Client) PutBatch(ctx context.Context, queue string, entries []platform.PutEntry) ([]platform.PutResult, error) {
	if len(entries) > platform.DefaultMaxBatchPut {
		return nil, fmt.Errorf("put batch of %d entries exceeds limit %d", len(entries), platform.DefaultMaxBatchPut)
	}
	n, err := c.partitionCount(ctx, queue)
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.StringCmd, len(entries))
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, e := range entries {
			stream := streamKey(queue, platform.PartitionIndex(e.PartitionKey, n))
			cmds[i] = pipe.XAdd(ctx, c.xaddArgs(stream, e.PartitionKey, e.Data))
		}
		return nil
	})
	if err != nil {
		var rerr redis.Error
		if !errors.As(err, &rerr) {
			// transport failure: nothing is known about individual entries
			return nil, classify(err)
		}
	}

	results := make([]platform.PutResult, len(entries))
	for i, cmd := range cmds {
		if cerr := cmd.Err(); cerr != nil {
			results[i] = platform.PutResult{ErrorCode: errorCode(cerr), ErrorMessage: cerr.Error()}
			continue
		}
		results[i] = platform.PutResult{SequenceToken: cmd.Val()}
	}
	return results, nil
}

// PutSingle implements platform.Platform. Stream IDs only grow, so a record
// accepted after the one that produced orderingToken is placed after it.
func (c *Client) PutSingle(ctx context.Context, queue, partitionKey string, data []byte, orderingToken string) (string, error) {
	n, err := c.partitionCount(ctx, queue)
	if err != nil {
		return "", err
	}
	if orderingToken != "" {
		if _, _, ok := parseID(orderingToken); !ok {
			return "", fmt.Errorf("invalid ordering token %q for key %q", orderingToken, partitionKey)
		}
	}
	stream := streamKey(queue, platform.PartitionIndex(partitionKey, n))
	id, err := c.rdb.XAdd(ctx, c.xaddArgs(stream, partitionKey, data)).Result()
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

// parseID splits a stream ID "<ms>-<seq>".
func parseID(id string) (ms, seq uint64, ok bool) {
	a, b, found := strings.Cut(id, "-")
	if !found {
		return 0, 0, false
	}
	ms, err := strconv.ParseUint(a, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	seq, err = strconv.ParseUint(b, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return ms, seq, true
}
