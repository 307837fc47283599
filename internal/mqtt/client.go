// Package mqtt mirrors the ordered output to an MQTT broker through a pool
// of connections.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ibs-source/resequencer/internal/config"
	"github.com/ibs-source/resequencer/internal/log"
)

const defaultPublishTimeout = 5 * time.Second

// ErrPublishTimeout is returned when the broker does not confirm a publish
// within the write timeout.
var ErrPublishTimeout = errors.New("mqtt publish timeout")

// Client is one MQTT connection publishing to a fixed topic.
type Client struct {
	conn       mqtt.Client
	topic      string
	qos        byte
	timeout    time.Duration
	disconnect uint
	log        *log.Logger
}

// NewClient connects to cfg.Broker and waits up to cfg.ConnectTimeout for
// the session to be established.
func NewClient(cfg *config.MQTTConfig, logger *log.Logger) (*Client, error) {
	opts, err := clientOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connection to %s timed out after %s", cfg.Broker, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Client{
		conn:       conn,
		topic:      cfg.PublishTopic,
		qos:        cfg.QoS,
		timeout:    timeout,
		disconnect: cfg.DisconnectTimeout,
		log:        logger.With("client_id", cfg.ClientID),
	}, nil
}

// clientOptions maps the mirror configuration onto paho options. Messages
// of one connection are delivered in publish order.
func clientOptions(cfg *config.MQTTConfig, logger *log.Logger) (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetWriteTimeout(cfg.WriteTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(cfg.MaxReconnectInterval).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetOrderMatters(true).
		SetMaxResumePubInFlight(1000)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if err != nil {
			logger.Error("MQTT connection %s lost: %v", cfg.ClientID, err)
		}
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("MQTT connection %s reconnecting", cfg.ClientID)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Debug("MQTT connection %s established", cfg.ClientID)
	})

	if cfg.TLSEnabled {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}
	return opts, nil
}

// newTLSConfig creates a TLS configuration from MQTT config
func newTLSConfig(cfg *config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkip, // #nosec G402 - configurable for testing environments
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA cert %s", cfg.CACert)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Publish sends payload to the mirror topic and waits for the broker to
// confirm it, the context to end, or the write timeout.
func (c *Client) Publish(ctx context.Context, payload []byte) error {
	token := c.conn.Publish(c.topic, c.qos, false, payload)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish to %s failed: %w", c.topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrPublishTimeout, c.timeout)
	}
}

// Close disconnects from the MQTT broker
func (c *Client) Close() error {
	if c.conn != nil && c.conn.IsConnected() {
		c.conn.Disconnect(c.disconnect)
		c.log.Debug("MQTT connection closed")
	}
	return nil
}
