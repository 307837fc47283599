package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/resequencer/internal/config"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/platform"
)

// TestIntegration_RoundTrip runs against the Redis at REDIS_ADDRESS
// (default localhost:6379) and is skipped when it is unreachable.
func TestIntegration_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
	}

	client, err := NewClient(&config.RedisConfig{
		Address:      addr,
		Group:        "resequencer-it",
		Consumer:     "it-" + uuid.NewString()[:8],
		BlockTimeout: 50 * time.Millisecond,
		LeaseTTL:     5 * time.Second,
		PingTimeout:  time.Second,
		DialTimeout:  time.Second,
		MaxLen:       1000,
	}, log.New())
	if err != nil {
		t.Skipf("Skipping Redis test: %v (Redis not available?)", err)
	}
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	queue := "it-" + uuid.NewString()
	defer func() {
		keys := []string{metaKey(queue), client.checkpointKey()}
		for i := 0; i < 2; i++ {
			p := streamKey(queue, i)
			keys = append(keys, p, leaseKey(p), sealKey(p))
		}
		client.rdb.Del(ctx, keys...)
	}()

	require.NoError(t, client.CreateQueue(ctx, queue, 2))
	require.NoError(t, platform.EnsureActive(ctx, client, queue))

	results, err := client.PutBatch(ctx, queue, []platform.PutEntry{
		{PartitionKey: "x", Data: []byte("1")},
		{PartitionKey: "y", Data: []byte("2")},
		{PartitionKey: "x", Data: []byte("3")},
	})
	require.NoError(t, err)
	for _, r := range results {
		require.False(t, r.Failed(), r.ErrorMessage)
	}

	partitions, err := client.Partitions(ctx, queue)
	require.NoError(t, err)
	total := 0
	for _, p := range partitions {
		require.NoError(t, client.Seal(ctx, p))
		for {
			records, err := client.Poll(ctx, p, 10)
			if err != nil {
				assert.ErrorIs(t, err, platform.ErrEndOfPartition)
				break
			}
			if len(records) == 0 {
				continue
			}
			total += len(records)
			require.NoError(t, client.Checkpoint(ctx, platform.Cursor{
				Partition: p,
				Position:  records[len(records)-1].SequenceToken,
			}))
		}
	}
	assert.Equal(t, 3, total)
}
