package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	payloads []string
	err      error
	closed   bool
}

func (c *fakeConn) Publish(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.payloads = append(c.payloads, string(payload))
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return c.err
}

func TestPool_SameKeySameConnection(t *testing.T) {
	conns := []*fakeConn{{}, {}, {}, {}}
	asConns := make([]Conn, len(conns))
	for i, c := range conns {
		asConns[i] = c
	}
	p := NewPoolFromConns(asConns, nil)
	require.Equal(t, 4, p.Size())

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("dev-%d", i%7)
		require.NoError(t, p.Publish(ctx, key, []byte(fmt.Sprintf("%s:%02d", key, i))))
	}

	owner := make(map[string]int)
	for ci, c := range conns {
		last := make(map[string]string)
		for _, payload := range c.payloads {
			key := payload[:len(payload)-3]
			if prev, ok := owner[key]; ok {
				assert.Equal(t, prev, ci, "key %s moved between connections", key)
			}
			owner[key] = ci
			assert.Greater(t, payload, last[key], "per-key order kept")
			last[key] = payload
		}
	}
	assert.Len(t, owner, 7)
}

func TestPool_Close(t *testing.T) {
	bad := &fakeConn{err: errors.New("boom")}
	good := &fakeConn{}
	p := NewPoolFromConns([]Conn{good, bad}, nil)

	err := p.Close()
	require.Error(t, err)
	assert.True(t, good.closed)
	assert.True(t, bad.closed)
}
