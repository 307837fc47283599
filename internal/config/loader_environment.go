package config

import (
	"os"
	"strconv"
	"time"
)

// loadRedisFromEnv loads Redis configuration from environment variables
func loadRedisFromEnv(cfg *RedisConfig) {
	loadRedisStrings(cfg)
	loadRedisInts(cfg)
	loadRedisTimeouts(cfg)
}

func loadRedisStrings(cfg *RedisConfig) {
	if v := getEnvString("REDIS_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := getEnvString("REDIS_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := getEnvString("REDIS_GROUP"); v != "" {
		cfg.Group = v
	}
	if v := getEnvString("REDIS_CONSUMER"); v != "" {
		cfg.Consumer = v
	}
}

func loadRedisInts(cfg *RedisConfig) {
	if v := getEnvInt("REDIS_DB"); v != 0 {
		cfg.DB = v
	}
	if v := getEnvInt("REDIS_MAX_LEN"); v != 0 {
		cfg.MaxLen = int64(v)
	}
}

func loadRedisTimeouts(cfg *RedisConfig) {
	if v := getEnvDuration("REDIS_BLOCK_TIMEOUT"); v != 0 {
		cfg.BlockTimeout = v
	}
	if v := getEnvDuration("REDIS_LEASE_TTL"); v != 0 {
		cfg.LeaseTTL = v
	}
	if v := getEnvDuration("REDIS_CLAIM_IDLE"); v != 0 {
		cfg.ClaimIdle = v
	}
	if v := getEnvDuration("REDIS_CONSUMER_IDLE_TIMEOUT"); v != 0 {
		cfg.ConsumerIdleTimeout = v
	}
	if v := getEnvDuration("REDIS_CLEANUP_INTERVAL"); v != 0 {
		cfg.CleanupInterval = v
	}
	if v := getEnvDuration("REDIS_DIAL_TIMEOUT"); v != 0 {
		cfg.DialTimeout = v
	}
	if v := getEnvDuration("REDIS_READ_TIMEOUT"); v != 0 {
		cfg.ReadTimeout = v
	}
	if v := getEnvDuration("REDIS_WRITE_TIMEOUT"); v != 0 {
		cfg.WriteTimeout = v
	}
	if v := getEnvDuration("REDIS_PING_TIMEOUT"); v != 0 {
		cfg.PingTimeout = v
	}
}

// loadMQTTFromEnv loads MQTT configuration from environment variables
func loadMQTTFromEnv(cfg *MQTTConfig) {
	loadMQTTStrings(cfg)
	loadMQTTInts(cfg)
	loadMQTTTimeouts(cfg)
	loadMQTTTLS(cfg)
	loadMQTTBools(cfg)
}

func loadMQTTStrings(cfg *MQTTConfig) {
	if v := getEnvString("MQTT_BROKER"); v != "" {
		cfg.Broker = v
	}
	if v := getEnvString("MQTT_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := getEnvString("MQTT_PUBLISH_TOPIC"); v != "" {
		cfg.PublishTopic = v
	}
}

func loadMQTTInts(cfg *MQTTConfig) {
	if v := getEnvInt("MQTT_QOS"); v != 0 && v >= 0 && v <= 2 {
		cfg.QoS = byte(v) // #nosec G115 - validated range 0-2
	}
	if v := getEnvInt("MQTT_POOL_SIZE"); v != 0 {
		cfg.PoolSize = v
	}
	if v := getEnvInt("MQTT_DISCONNECT_TIMEOUT"); v > 0 {
		cfg.DisconnectTimeout = uint(v) // #nosec G115 - checked non-negative
	}
}

func loadMQTTTimeouts(cfg *MQTTConfig) {
	if v := getEnvDuration("MQTT_CONNECT_TIMEOUT"); v != 0 {
		cfg.ConnectTimeout = v
	}
	if v := getEnvDuration("MQTT_WRITE_TIMEOUT"); v != 0 {
		cfg.WriteTimeout = v
	}
	if v := getEnvDuration("MQTT_MAX_RECONNECT_INTERVAL"); v != 0 {
		cfg.MaxReconnectInterval = v
	}
}

func loadMQTTTLS(cfg *MQTTConfig) {
	if v := getEnvString("MQTT_CA_CERT"); v != "" {
		cfg.CACert = v
	}
	if v := getEnvString("MQTT_CLIENT_CERT"); v != "" {
		cfg.ClientCert = v
	}
	if v := getEnvString("MQTT_CLIENT_KEY"); v != "" {
		cfg.ClientKey = v
	}
}

func loadMQTTBools(cfg *MQTTConfig) {
	if v := getEnvBool("MQTT_ENABLED"); v {
		cfg.Enabled = v
	}
	if v := getEnvBool("MQTT_TLS_ENABLED"); v {
		cfg.TLSEnabled = v
	}
	if v := getEnvBool("MQTT_TLS_INSECURE_SKIP"); v {
		cfg.InsecureSkip = v
	}
	if v := getEnvBool("MQTT_USE_CERT_CN_PREFIX"); v {
		cfg.UseCertCNPrefix = v
	}
}

// loadResequencerFromEnv loads watermark and polling settings from environment variables
func loadResequencerFromEnv(cfg *ResequencerConfig) {
	if v := getEnvDuration("RESEQUENCER_MINIMUM_AGE"); v != 0 {
		cfg.MinimumAge = v
	}
	if v := getEnvInt("RESEQUENCER_MAX_RECORDS_PER_POLL"); v != 0 {
		cfg.MaxRecordsPerPoll = v
	}
	if v := getEnvDuration("RESEQUENCER_POLL_IDLE_DELAY"); v != 0 {
		cfg.PollIdleDelay = v
	}
	if v := getEnvBool("RESEQUENCER_ALWAYS_POLL"); v {
		cfg.AlwaysPoll = v
	}
	if v := getEnvString("RESEQUENCER_UNORDERED_QUEUE"); v != "" {
		cfg.UnorderedQueue = v
	}
	if v := getEnvString("RESEQUENCER_ORDERED_QUEUE"); v != "" {
		cfg.OrderedQueue = v
	}
	if v := getEnvInt("RESEQUENCER_PARTITIONS"); v != 0 {
		cfg.Partitions = v
	}
}

// loadPublishFromEnv loads publisher settings from environment variables
func loadPublishFromEnv(cfg *PublishConfig) {
	if v := getEnvInt("PUBLISH_MAX_BATCH_PUT_SIZE"); v != 0 {
		cfg.MaxBatchPutSize = v
	}
	if v := getEnvInt("PUBLISH_MAX_ATTEMPTS"); v != 0 {
		cfg.MaxAttempts = v
	}
	if v := getEnvDuration("PUBLISH_BACKOFF"); v != 0 {
		cfg.Backoff = v
	}
	if v := getEnvDuration("PUBLISH_MAX_BACKOFF"); v != 0 {
		cfg.MaxBackoff = v
	}
}

// loadPipelineFromEnv loads Pipeline configuration from environment variables
func loadPipelineFromEnv(cfg *PipelineConfig) {
	if v := getEnvString("PIPELINE_PLATFORM"); v != "" {
		cfg.Platform = v
	}
	if v := getEnvDuration("PIPELINE_SHUTDOWN_TIMEOUT"); v != 0 {
		cfg.ShutdownTimeout = v
	}
	if v := getEnvDuration("PIPELINE_ERROR_BACKOFF"); v != 0 {
		cfg.ErrorBackoff = v
	}
}

func loadMetricsFromEnv(cfg *MetricsConfig) {
	if v := getEnvString("METRICS_ADDRESS"); v != "" {
		cfg.Address = v
	}
}

// loadProducerFromEnv loads producer settings from environment variables
func loadProducerFromEnv(cfg *ProducerConfig) {
	if v := getEnvString("PRODUCER_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := getEnvInt("PRODUCER_COUNT"); v != 0 {
		cfg.Count = v
	}
	if v := getEnvDuration("PRODUCER_INTERVAL"); v != 0 {
		cfg.Interval = v
	}
	if v := getEnvString("PRODUCER_INPUT_FILE"); v != "" {
		cfg.InputFile = v
	}
	if v := getEnvDuration("PRODUCER_TIMESTAMP_WINDOW"); v != 0 {
		cfg.TimestampWindow = v
	}
	if v := getEnvInt("PRODUCER_SOURCES"); v != 0 {
		cfg.Sources = v
	}
}

func loadLogFromEnv(cfg *LogConfig) {
	if v := getEnvString("LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
}

// Helper functions for reading environment variables

func getEnvString(key string) string {
	return os.Getenv(key)
}

func getEnvInt(key string) int {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return intValue
}

func getEnvDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return duration
}

func getEnvBool(key string) bool {
	value := os.Getenv(key)
	return value == "true"
}
