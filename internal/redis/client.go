// Package redis implements the queue platform on Redis Streams.
//
// A queue with N partitions is N streams named "<queue>:<i>" sharing one
// consumer group. Each partition is owned by a single consumer through a
// lease key; progress is acknowledged with XACK and the last committed
// position is kept in a checkpoint hash.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/ibs-source/resequencer/internal/config"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/platform"
)

// Client is a platform.Platform backed by Redis Streams.
type Client struct {
	rdb          *redis.Client
	group        string
	consumer     string
	blockTimeout time.Duration
	leaseTTL     time.Duration
	claimIdle    time.Duration
	maxLen       int64
	log          *log.Logger

	mu         sync.Mutex
	partitions map[string]int  // queue -> partition count
	held       map[string]bool // partitions this consumer has leased at least once
}

var _ platform.Platform = (*Client)(nil)

// NewClient connects to Redis and verifies the connection.
func NewClient(cfg *config.RedisConfig, logger *log.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		// Explicitly disable maintenance notifications
		// This prevents the client from sending extra commands to Redis
		// which can add unnecessary load.
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.NewDiscard()
	}
	block := cfg.BlockTimeout
	if block <= 0 {
		// go-redis sends BLOCK 0 (wait forever) for a zero duration
		block = -1
	}
	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = 10 * time.Second
	}
	return &Client{
		rdb:          rdb,
		group:        cfg.Group,
		consumer:     cfg.Consumer,
		blockTimeout: block,
		leaseTTL:     leaseTTL,
		claimIdle:    cfg.ClaimIdle,
		maxLen:       cfg.MaxLen,
		log:          logger.With("consumer", cfg.Consumer),
		partitions:   make(map[string]int),
		held:         make(map[string]bool),
	}, nil
}

// Close releases the leases held by this consumer and closes the connection.
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.mu.Lock()
	held := make([]string, 0, len(c.held))
	for p := range c.held {
		held = append(held, p)
	}
	c.mu.Unlock()

	for _, p := range held {
		if err := releaseLease.Run(ctx, c.rdb, []string{leaseKey(p)}, c.consumer).Err(); err != nil {
			c.log.Warn("Failed to release lease on %s: %v", p, err)
		}
	}
	return c.rdb.Close()
}

func streamKey(queue string, i int) string {
	return fmt.Sprintf("%s:%d", queue, i)
}

// queueOf returns the queue a partition stream belongs to.
func queueOf(partition string) string {
	if i := strings.LastIndexByte(partition, ':'); i > 0 {
		return partition[:i]
	}
	return partition
}

func metaKey(queue string) string      { return queue + ":meta" }
func leaseKey(partition string) string { return partition + ":lease" }
func sealKey(partition string) string  { return partition + ":sealed" }

func (c *Client) checkpointKey() string { return c.group + ":checkpoints" }

// classify maps Redis failures onto the platform error classes.
func classify(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "NOGROUP"), strings.HasPrefix(msg, "WRONGTYPE"):
		return fmt.Errorf("%w: %w", platform.ErrInvalidState, err)
	case strings.HasPrefix(msg, "BUSY "), strings.HasPrefix(msg, "LOADING"),
		strings.HasPrefix(msg, "TRYAGAIN"), strings.HasPrefix(msg, "MASTERDOWN"):
		return fmt.Errorf("%w: %w", platform.ErrThrottled, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", platform.ErrThrottled, err)
	}
	return err
}

// errorCode is the per-entry code reported for a rejected XADD: the Redis
// error prefix when there is one.
func errorCode(err error) string {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		code, _, _ := strings.Cut(rerr.Error(), " ")
		if code != "" && strings.ToUpper(code) == code {
			return code
		}
	}
	return "InternalFailure"
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
