package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/resequencer/internal/event"
	"github.com/ibs-source/resequencer/internal/memqueue"
	"github.com/ibs-source/resequencer/internal/platform"
)

const outQueue = "ordered"

func testEvents(n int) []event.Event {
	events := make([]event.Event, n)
	for i := range events {
		events[i] = event.Event{
			Timestamp: int64(1000 + i),
			Sequence:  int64(i),
			SourceID:  int64(i % 7),
			Payload:   []byte(fmt.Sprintf("payload-%d", i)),
		}
	}
	return events
}

func newQueue(t *testing.T) *memqueue.Queue {
	t.Helper()
	q := memqueue.New()
	q.CreateQueue(outQueue, 3)
	return q
}

func TestPublish_RetriesOnlyFailedSubset(t *testing.T) {
	q := newQueue(t)
	events := testEvents(10)

	var mu sync.Mutex
	submissions := make(map[string]int)
	failOnce := map[int64]bool{2: true, 5: true, 9: true}
	q.FailEntry = func(_ string, e platform.PutEntry) string {
		mu.Lock()
		defer mu.Unlock()
		ev, err := event.Decode(e.Data)
		require.NoError(t, err)
		submissions[string(ev.Payload)]++
		if failOnce[ev.Sequence] && submissions[string(ev.Payload)] == 1 {
			return "Throttled"
		}
		return ""
	}

	out, err := New(q, Options{}).Publish(context.Background(), outQueue, events)
	require.NoError(t, err)

	assert.Equal(t, 10, out.Accepted)
	assert.Equal(t, 2, out.Requests)
	assert.Equal(t, 3, out.Retried)
	assert.Len(t, q.Records(outQueue), 10)
	for _, e := range events {
		want := 1
		if failOnce[e.Sequence] {
			want = 2
		}
		assert.Equal(t, want, submissions[string(e.Payload)], "submissions of %s", e.Payload)
	}
}

func TestPublish_Chunks(t *testing.T) {
	q := newQueue(t)

	out, err := New(q, Options{MaxBatchPutSize: 500}).Publish(context.Background(), outQueue, testEvents(1200))
	require.NoError(t, err)
	assert.Equal(t, 1200, out.Accepted)
	assert.Equal(t, 3, out.Requests)
	assert.Equal(t, []string{"put:ordered:500", "put:ordered:500", "put:ordered:200"}, q.Journal())
}

func TestPublish_ChunkSizeCappedAtPlatformLimit(t *testing.T) {
	q := newQueue(t)

	_, err := New(q, Options{MaxBatchPutSize: 10_000}).Publish(context.Background(), outQueue, testEvents(600))
	require.NoError(t, err)
	assert.Equal(t, []string{"put:ordered:500", "put:ordered:100"}, q.Journal())
}

func TestPublish_Empty(t *testing.T) {
	q := newQueue(t)

	out, err := New(q, Options{}).Publish(context.Background(), outQueue, nil)
	require.NoError(t, err)
	assert.Equal(t, Outcome{}, out)
	assert.Empty(t, q.Journal())
}

func TestPublish_PartitionKeys(t *testing.T) {
	q := newQueue(t)
	events := []event.Event{
		{Timestamp: 1, SourceID: 42},
		{Timestamp: 2, SourceID: 42, PartitionHint: "ticker-A"},
	}

	_, err := New(q, Options{}).Publish(context.Background(), outQueue, events)
	require.NoError(t, err)

	keys := make(map[string]bool)
	for _, r := range q.Records(outQueue) {
		keys[r.PartitionKey] = true
	}
	assert.Equal(t, map[string]bool{"42": true, "ticker-A": true}, keys)
}

func TestPublish_AttemptCapExhausted(t *testing.T) {
	q := newQueue(t)
	events := testEvents(5)
	q.FailEntry = func(_ string, e platform.PutEntry) string {
		ev, _ := event.Decode(e.Data)
		if ev.Sequence == 3 {
			return "InternalFailure"
		}
		return ""
	}

	p := New(q, Options{MaxBatchPutSize: 2, Retry: RetryPolicy{MaxAttempts: 3}})
	out, err := p.Publish(context.Background(), outQueue, events)

	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, outQueue, inc.Queue)
	// seq 3 is stuck in the second chunk; the third chunk (seq 4) never ran
	require.Len(t, inc.Pending, 2)
	assert.Equal(t, int64(3), inc.Pending[0].Sequence)
	assert.Equal(t, int64(4), inc.Pending[1].Sequence)
	assert.Equal(t, 3, out.Accepted)
	assert.Equal(t, 4, out.Requests, "one request for chunk one, three for chunk two")

	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "InternalFailure", entryErr.Code)
}

func TestPublish_RequestErrorsRetried(t *testing.T) {
	q := newQueue(t)
	calls := 0
	q.FailRequest = func(string) error {
		calls++
		if calls <= 2 {
			return errors.New("connection reset")
		}
		return nil
	}

	out, err := New(q, Options{}).Publish(context.Background(), outQueue, testEvents(4))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Requests)
	assert.Equal(t, 4, out.Accepted)
}

func TestPublish_UnknownQueueNotRetried(t *testing.T) {
	q := newQueue(t)

	_, err := New(q, Options{}).Publish(context.Background(), "missing", testEvents(2))

	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Len(t, inc.Pending, 2)
	assert.ErrorIs(t, err, platform.ErrQueueNotFound)
}

func TestPublish_UnlimitedStopsOnCancel(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	q.FailEntry = func(string, platform.PutEntry) string {
		calls++
		if calls == 3 {
			cancel()
		}
		return "Throttled"
	}

	_, err := New(q, Options{}).Publish(ctx, outQueue, testEvents(1))

	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Len(t, inc.Pending, 1)
	assert.Error(t, ctx.Err())
}
