package config

import (
	"fmt"

	"github.com/ibs-source/resequencer/internal/platform"
)

// Validate checks configuration constraints
func Validate(cfg *Config) error {
	if err := validatePipeline(&cfg.Pipeline); err != nil {
		return err
	}
	if cfg.Pipeline.Platform == PlatformRedis {
		if err := validateRedis(&cfg.Redis); err != nil {
			return err
		}
	}
	if cfg.MQTT.Enabled {
		if err := validateMQTT(&cfg.MQTT); err != nil {
			return err
		}
	}
	if err := validateResequencer(&cfg.Resequencer); err != nil {
		return err
	}
	if err := validatePublish(&cfg.Publish); err != nil {
		return err
	}
	return validateProducer(&cfg.Producer)
}

// validateRedis validates Redis configuration
func validateRedis(cfg *RedisConfig) error {
	if cfg.Address == "" {
		return fmt.Errorf("redis address cannot be empty")
	}
	if cfg.Group == "" {
		return fmt.Errorf("redis group cannot be empty")
	}
	if cfg.Consumer == "" {
		return fmt.Errorf("redis consumer name cannot be empty")
	}
	if cfg.LeaseTTL <= 0 {
		return fmt.Errorf("redis lease ttl must be positive")
	}
	if cfg.MaxLen < 0 {
		return fmt.Errorf("redis max len cannot be negative")
	}
	return nil
}

// validateMQTT validates MQTT configuration
func validateMQTT(cfg *MQTTConfig) error {
	if cfg.Broker == "" {
		return fmt.Errorf("mqtt broker cannot be empty")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("mqtt client ID cannot be empty")
	}
	if cfg.PoolSize < 1 {
		return fmt.Errorf("mqtt pool size must be positive")
	}
	if cfg.PublishTopic == "" {
		return fmt.Errorf("mqtt publish topic cannot be empty")
	}
	if cfg.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	return nil
}

// validateResequencer validates the watermark and polling settings
func validateResequencer(cfg *ResequencerConfig) error {
	if cfg.MinimumAge < 0 {
		return fmt.Errorf("minimum age cannot be negative")
	}
	if cfg.MaxRecordsPerPoll < 1 {
		return fmt.Errorf("max records per poll must be positive")
	}
	if cfg.PollIdleDelay < 0 {
		return fmt.Errorf("poll idle delay cannot be negative")
	}
	if cfg.UnorderedQueue == "" || cfg.OrderedQueue == "" {
		return fmt.Errorf("queue names cannot be empty")
	}
	if cfg.UnorderedQueue == cfg.OrderedQueue {
		return fmt.Errorf("unordered and ordered queue must differ")
	}
	if cfg.Partitions < 1 {
		return fmt.Errorf("partitions must be positive")
	}
	return nil
}

// validatePublish validates the publisher settings
func validatePublish(cfg *PublishConfig) error {
	if cfg.MaxBatchPutSize < 1 || cfg.MaxBatchPutSize > platform.DefaultMaxBatchPut {
		return fmt.Errorf("max batch put size must be between 1 and %d", platform.DefaultMaxBatchPut)
	}
	if cfg.MaxAttempts < 0 {
		return fmt.Errorf("publish max attempts cannot be negative")
	}
	if cfg.Backoff < 0 || cfg.MaxBackoff < 0 {
		return fmt.Errorf("publish backoff cannot be negative")
	}
	if cfg.MaxBackoff != 0 && cfg.MaxBackoff < cfg.Backoff {
		return fmt.Errorf("publish max backoff must not be below backoff")
	}
	return nil
}

// validatePipeline validates Pipeline configuration
func validatePipeline(cfg *PipelineConfig) error {
	switch cfg.Platform {
	case PlatformRedis, PlatformMemory:
	default:
		return fmt.Errorf("unknown platform %q", cfg.Platform)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("pipeline shutdown timeout must be positive")
	}
	return nil
}

// validateProducer validates the producer settings
func validateProducer(cfg *ProducerConfig) error {
	switch cfg.Mode {
	case ProducerModeSingle, ProducerModeBatch:
	default:
		return fmt.Errorf("unknown producer mode %q", cfg.Mode)
	}
	if cfg.Count < 0 {
		return fmt.Errorf("producer count cannot be negative")
	}
	if cfg.Sources < 1 {
		return fmt.Errorf("producer sources must be positive")
	}
	if cfg.TimestampWindow < 0 {
		return fmt.Errorf("producer timestamp window cannot be negative")
	}
	return nil
}
