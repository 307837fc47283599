package mqtt

import (
	"context"
	"fmt"
	"os"

	"github.com/ibs-source/resequencer/internal/config"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/platform"
)

// Conn is a single publishing connection.
type Conn interface {
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

var _ Conn = (*Client)(nil)

// Pool spreads publishes over several connections. Payloads with the same
// key always use the same connection, which keeps them in order.
type Pool struct {
	conns []Conn
	log   *log.Logger
}

// NewPool connects cfg.PoolSize clients.
func NewPool(cfg *config.MQTTConfig, logger *log.Logger) (*Pool, error) {
	poolSize := cfg.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}

	// Generate a unique base Client ID for this process instance
	// This prevents collisions when multiple instances run with the same config
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	baseClientID := fmt.Sprintf("%s-%s-%d", cfg.ClientID, hostname, os.Getpid())

	conns := make([]Conn, poolSize)
	for i := 0; i < poolSize; i++ {
		clientCfg := *cfg
		clientCfg.ClientID = fmt.Sprintf("%s-%d", baseClientID, i)

		client, err := NewClient(&clientCfg, logger)
		if err != nil {
			for j := 0; j < i; j++ {
				_ = conns[j].Close()
			}
			return nil, fmt.Errorf("failed to create client %d: %w", i, err)
		}
		conns[i] = client
	}

	return NewPoolFromConns(conns, logger), nil
}

// NewPoolFromConns builds a pool over already connected conns.
func NewPoolFromConns(conns []Conn, logger *log.Logger) *Pool {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &Pool{conns: conns, log: logger}
}

// Publish sends payload on the connection owning key.
func (p *Pool) Publish(ctx context.Context, key string, payload []byte) error {
	return p.conns[platform.PartitionIndex(key, len(p.conns))].Publish(ctx, payload)
}

// Size is the number of connections.
func (p *Pool) Size() int {
	return len(p.conns)
}

// Close closes all connections in the pool
func (p *Pool) Close() error {
	var lastErr error
	for i, conn := range p.conns {
		if err := conn.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close client %d: %w", i, err)
		}
	}
	return lastErr
}
