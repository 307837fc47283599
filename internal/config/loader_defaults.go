package config

import "time"

// defaultRedisConfig returns the default Redis configuration
func defaultRedisConfig() RedisConfig {
	return RedisConfig{
		Address:             "localhost:6379",
		Group:               "resequencer",
		Consumer:            "",
		BlockTimeout:        100 * time.Millisecond,
		LeaseTTL:            10 * time.Second,
		ClaimIdle:           30 * time.Second,
		ConsumerIdleTimeout: 5 * time.Minute,
		CleanupInterval:     1 * time.Minute,
		MaxLen:              1_000_000,
		DialTimeout:         10 * time.Second,
		ReadTimeout:         10 * time.Second,
		WriteTimeout:        5 * time.Second,
		PingTimeout:         5 * time.Second,
	}
}

// defaultMQTTConfig returns the default MQTT configuration
func defaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Enabled:              false,
		Broker:               "tcp://localhost:1883",
		ClientID:             "resequencer",
		PublishTopic:         "resequencer/ordered",
		QoS:                  0,
		ConnectTimeout:       10 * time.Second,
		WriteTimeout:         30 * time.Second,
		PoolSize:             4,
		MaxReconnectInterval: 10 * time.Second,
		DisconnectTimeout:    1000,
	}
}

// defaultResequencerConfig returns the default watermark and polling configuration
func defaultResequencerConfig() ResequencerConfig {
	return ResequencerConfig{
		MinimumAge:        2 * time.Second,
		MaxRecordsPerPoll: 10000,
		PollIdleDelay:     1 * time.Millisecond,
		AlwaysPoll:        false,
		UnorderedQueue:    "unordered-message-stream",
		OrderedQueue:      "ordered-message-stream",
		Partitions:        4,
	}
}

// defaultPublishConfig returns the default publisher configuration
func defaultPublishConfig() PublishConfig {
	return PublishConfig{
		MaxBatchPutSize: 500,
		MaxAttempts:     0,
		Backoff:         0,
		MaxBackoff:      0,
	}
}

// defaultPipelineConfig returns the default pipeline configuration
func defaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Platform:        PlatformRedis,
		ShutdownTimeout: 30 * time.Second,
		ErrorBackoff:    1 * time.Second,
	}
}

// defaultProducerConfig returns the default producer configuration
func defaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Mode:            ProducerModeSingle,
		Count:           1000,
		Interval:        10 * time.Millisecond,
		TimestampWindow: 5 * time.Second,
		Sources:         8,
	}
}

// defaultConfig returns a complete configuration with all default values
func defaultConfig() *Config {
	return &Config{
		Redis:       defaultRedisConfig(),
		MQTT:        defaultMQTTConfig(),
		Resequencer: defaultResequencerConfig(),
		Publish:     defaultPublishConfig(),
		Pipeline:    defaultPipelineConfig(),
		Producer:    defaultProducerConfig(),
		Log:         LogConfig{Level: "info"},
	}
}
