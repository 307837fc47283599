// Package config provides configuration loading and validation from a YAML file,
// environment variables and command line flags.
package config

import "time"

// Platform names accepted by PipelineConfig.Platform.
const (
	PlatformRedis  = "redis"
	PlatformMemory = "memory"
)

// Producer modes accepted by ProducerConfig.Mode.
const (
	ProducerModeSingle = "single"
	ProducerModeBatch  = "batch"
)

// Config holds the complete configuration
type Config struct {
	Redis       RedisConfig       `yaml:"redis"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Resequencer ResequencerConfig `yaml:"resequencer"`
	Publish     PublishConfig     `yaml:"publish"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Producer    ProducerConfig    `yaml:"producer"`
	Log         LogConfig         `yaml:"log"`
}

// RedisConfig holds the Redis Streams platform configuration
type RedisConfig struct {
	Address             string        `yaml:"address"`
	Password            string        `yaml:"password"`
	DB                  int           `yaml:"db"`
	Group               string        `yaml:"group"`
	Consumer            string        `yaml:"consumer"` // generated when empty
	BlockTimeout        time.Duration `yaml:"block_timeout"`
	LeaseTTL            time.Duration `yaml:"lease_ttl"`
	ClaimIdle           time.Duration `yaml:"claim_idle"`
	ConsumerIdleTimeout time.Duration `yaml:"consumer_idle_timeout"`
	CleanupInterval     time.Duration `yaml:"cleanup_interval"`
	MaxLen              int64         `yaml:"max_len"` // approximate stream retention, 0 keeps everything
	DialTimeout         time.Duration `yaml:"dial_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	PingTimeout         time.Duration `yaml:"ping_timeout"`
}

// MQTTConfig holds the configuration of the optional ordered-output mirror
type MQTTConfig struct {
	Enabled              bool          `yaml:"enabled"`
	Broker               string        `yaml:"broker"`
	ClientID             string        `yaml:"client_id"`
	PublishTopic         string        `yaml:"publish_topic"`
	QoS                  byte          `yaml:"qos"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	PoolSize             int           `yaml:"pool_size"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
	DisconnectTimeout    uint          `yaml:"disconnect_timeout"` // Milliseconds for graceful disconnect
	// TLS Configuration
	TLSEnabled      bool   `yaml:"tls_enabled"`
	CACert          string `yaml:"ca_cert"`
	ClientCert      string `yaml:"client_cert"`
	ClientKey       string `yaml:"client_key"`
	InsecureSkip    bool   `yaml:"insecure_skip"`
	UseCertCNPrefix bool   `yaml:"use_cert_cn_prefix"` // If true, prefix topics with cert CN for ACL constraints
}

// ResequencerConfig holds the watermark and polling settings
type ResequencerConfig struct {
	MinimumAge        time.Duration `yaml:"minimum_age"`
	MaxRecordsPerPoll int           `yaml:"max_records_per_poll"`
	PollIdleDelay     time.Duration `yaml:"poll_idle_delay"`
	AlwaysPoll        bool          `yaml:"always_poll"`
	UnorderedQueue    string        `yaml:"unordered_queue"`
	OrderedQueue      string        `yaml:"ordered_queue"`
	Partitions        int           `yaml:"partitions"`
}

// PublishConfig holds the batch publisher settings
type PublishConfig struct {
	MaxBatchPutSize int           `yaml:"max_batch_put_size"`
	MaxAttempts     int           `yaml:"max_attempts"` // 0 retries until every entry is accepted
	Backoff         time.Duration `yaml:"backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff"`
}

// PipelineConfig holds process orchestration settings
type PipelineConfig struct {
	Platform        string        `yaml:"platform"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ErrorBackoff    time.Duration `yaml:"error_backoff"` // Backoff on recoverable errors
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Address string `yaml:"address"` // empty disables the endpoint
}

// ProducerConfig holds the test producer settings
type ProducerConfig struct {
	Mode            string        `yaml:"mode"`
	Count           int           `yaml:"count"`
	Interval        time.Duration `yaml:"interval"`
	InputFile       string        `yaml:"input_file"`
	TimestampWindow time.Duration `yaml:"timestamp_window"`
	Sources         int           `yaml:"sources"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}
