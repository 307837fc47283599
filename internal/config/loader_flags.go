package config

import (
	"flag"
	"time"
)

// Command line flags (have precedence over environment variables and the config file)
var (
	flagConfigFile *string

	// Redis flags
	flagRedisAddress         *string
	flagRedisGroup           *string
	flagRedisConsumer        *string
	flagRedisMaxLen          *int64
	flagRedisBlockTimeout    *time.Duration
	flagRedisLeaseTTL        *time.Duration
	flagRedisClaimIdle       *time.Duration
	flagRedisConsumerIdle    *time.Duration
	flagRedisCleanupInterval *time.Duration

	// MQTT flags
	flagMQTTEnabled         *bool
	flagMQTTBroker          *string
	flagMQTTClientID        *string
	flagMQTTPublishTopic    *string
	flagMQTTQoS             *int
	flagMQTTPoolSize        *int
	flagMQTTConnectTimeout  *time.Duration
	flagMQTTWriteTimeout    *time.Duration
	flagMQTTTLSEnabled      *bool
	flagMQTTCACert          *string
	flagMQTTClientCert      *string
	flagMQTTClientKey       *string
	flagMQTTTLSInsecureSkip *bool
	flagMQTTUseCertCNPrefix *bool

	// Resequencer flags
	flagMinimumAge        *time.Duration
	flagMaxRecordsPerPoll *int
	flagPollIdleDelay     *time.Duration
	flagAlwaysPoll        *bool
	flagUnorderedQueue    *string
	flagOrderedQueue      *string
	flagPartitions        *int

	// Publish flags
	flagMaxBatchPutSize *int
	flagMaxAttempts     *int
	flagBackoff         *time.Duration
	flagMaxBackoff      *time.Duration

	// Pipeline flags
	flagPipelinePlatform        *string
	flagPipelineShutdownTimeout *time.Duration
	flagPipelineErrorBackoff    *time.Duration

	flagMetricsAddress *string

	// Producer flags
	flagProducerMode            *string
	flagProducerCount           *int
	flagProducerInterval        *time.Duration
	flagProducerInputFile       *string
	flagProducerTimestampWindow *time.Duration
	flagProducerSources         *int

	flagLogLevel *string
)

func init() {
	registerFlags()
}

// registerFlags defines every flag on flag.CommandLine.
func registerFlags() {
	flagConfigFile = flag.String("config", "", "Path to a YAML config file")

	flagRedisAddress = flag.String("redis-address", "", "Redis address")
	flagRedisGroup = flag.String("redis-group", "", "Redis consumer group")
	flagRedisConsumer = flag.String("redis-consumer", "", "Redis consumer name (generated when empty)")
	flagRedisMaxLen = flag.Int64("redis-max-len", 0, "Approximate stream retention in entries")
	flagRedisBlockTimeout = flag.Duration("redis-block-timeout", 0, "Redis poll block timeout")
	flagRedisLeaseTTL = flag.Duration("redis-lease-ttl", 0, "Partition lease TTL")
	flagRedisClaimIdle = flag.Duration("redis-claim-idle", 0, "Redis claim idle time")
	flagRedisConsumerIdle = flag.Duration("redis-consumer-idle-timeout", 0, "Redis consumer idle timeout")
	flagRedisCleanupInterval = flag.Duration("redis-cleanup-interval", 0, "Redis cleanup interval")

	flagMQTTEnabled = flag.Bool("mqtt-enabled", false, "Mirror ordered events to MQTT")
	flagMQTTBroker = flag.String("mqtt-broker", "", "MQTT broker URL")
	flagMQTTClientID = flag.String("mqtt-client-id", "", "MQTT client ID")
	flagMQTTPublishTopic = flag.String("mqtt-publish-topic", "", "MQTT publish topic")
	flagMQTTQoS = flag.Int("mqtt-qos", -1, "MQTT QoS (0, 1, or 2)")
	flagMQTTPoolSize = flag.Int("mqtt-pool-size", 0, "MQTT connection pool size")
	flagMQTTConnectTimeout = flag.Duration("mqtt-connect-timeout", 0, "MQTT connect timeout")
	flagMQTTWriteTimeout = flag.Duration("mqtt-write-timeout", 0, "MQTT write timeout")
	flagMQTTTLSEnabled = flag.Bool("mqtt-tls-enabled", false, "Enable MQTT TLS")
	flagMQTTCACert = flag.String("mqtt-ca-cert", "", "MQTT CA certificate path")
	flagMQTTClientCert = flag.String("mqtt-client-cert", "", "MQTT client certificate path")
	flagMQTTClientKey = flag.String("mqtt-client-key", "", "MQTT client key path")
	flagMQTTTLSInsecureSkip = flag.Bool("mqtt-tls-insecure-skip", false, "Skip MQTT TLS verification")
	flagMQTTUseCertCNPrefix = flag.Bool("mqtt-use-cert-cn-prefix", false, "Prefix topics with client cert CN")

	flagMinimumAge = flag.Duration("minimum-age", 0, "Age an event must exceed to be emitted")
	flagMaxRecordsPerPoll = flag.Int("max-records-per-poll", 0, "Maximum records fetched per poll")
	flagPollIdleDelay = flag.Duration("poll-idle-delay", 0, "Sleep after an empty poll")
	flagAlwaysPoll = flag.Bool("always-poll", false, "Run the pipeline on empty polls")
	flagUnorderedQueue = flag.String("unordered-queue", "", "Input queue name")
	flagOrderedQueue = flag.String("ordered-queue", "", "Output queue name")
	flagPartitions = flag.Int("partitions", 0, "Partitions per queue")

	flagMaxBatchPutSize = flag.Int("max-batch-put-size", 0, "Maximum entries per put request")
	flagMaxAttempts = flag.Int("publish-max-attempts", -1, "Put attempts before giving up (0 = unlimited)")
	flagBackoff = flag.Duration("publish-backoff", 0, "Initial backoff between put attempts")
	flagMaxBackoff = flag.Duration("publish-max-backoff", 0, "Maximum backoff between put attempts")

	flagPipelinePlatform = flag.String("platform", "", "Queue platform (redis or memory)")
	flagPipelineShutdownTimeout = flag.Duration("pipeline-shutdown-timeout", 0, "Pipeline shutdown timeout")
	flagPipelineErrorBackoff = flag.Duration("pipeline-error-backoff", 0, "Pipeline error backoff")

	flagMetricsAddress = flag.String("metrics-address", "", "Prometheus listen address")

	flagProducerMode = flag.String("producer-mode", "", "Producer mode (single or batch)")
	flagProducerCount = flag.Int("producer-count", 0, "Events to generate")
	flagProducerInterval = flag.Duration("producer-interval", 0, "Delay between sends")
	flagProducerInputFile = flag.String("producer-input-file", "", "JSON lines file of events to send")
	flagProducerTimestampWindow = flag.Duration("producer-timestamp-window", 0, "Timestamp jitter window")
	flagProducerSources = flag.Int("producer-sources", 0, "Distinct source IDs")

	flagLogLevel = flag.String("log-level", "", "Log level")
}

// applyRedisFlags applies command line flags to Redis configuration
func applyRedisFlags(cfg *RedisConfig) {
	if *flagRedisAddress != "" {
		cfg.Address = *flagRedisAddress
	}
	if *flagRedisGroup != "" {
		cfg.Group = *flagRedisGroup
	}
	if *flagRedisConsumer != "" {
		cfg.Consumer = *flagRedisConsumer
	}
	if *flagRedisMaxLen != 0 {
		cfg.MaxLen = *flagRedisMaxLen
	}
	applyRedisFlagTimeouts(cfg)
}

func applyRedisFlagTimeouts(cfg *RedisConfig) {
	if *flagRedisBlockTimeout != 0 {
		cfg.BlockTimeout = *flagRedisBlockTimeout
	}
	if *flagRedisLeaseTTL != 0 {
		cfg.LeaseTTL = *flagRedisLeaseTTL
	}
	if *flagRedisClaimIdle != 0 {
		cfg.ClaimIdle = *flagRedisClaimIdle
	}
	if *flagRedisConsumerIdle != 0 {
		cfg.ConsumerIdleTimeout = *flagRedisConsumerIdle
	}
	if *flagRedisCleanupInterval != 0 {
		cfg.CleanupInterval = *flagRedisCleanupInterval
	}
}

// applyMQTTFlags applies command line flags to MQTT configuration
func applyMQTTFlags(cfg *MQTTConfig) {
	applyMQTTFlagStrings(cfg)
	applyMQTTFlagInts(cfg)
	applyMQTTFlagTLS(cfg)
	applyMQTTFlagBools(cfg)
}

func applyMQTTFlagStrings(cfg *MQTTConfig) {
	if *flagMQTTBroker != "" {
		cfg.Broker = *flagMQTTBroker
	}
	if *flagMQTTClientID != "" {
		cfg.ClientID = *flagMQTTClientID
	}
	if *flagMQTTPublishTopic != "" {
		cfg.PublishTopic = *flagMQTTPublishTopic
	}
}

func applyMQTTFlagInts(cfg *MQTTConfig) {
	if *flagMQTTQoS != -1 && *flagMQTTQoS >= 0 && *flagMQTTQoS <= 2 {
		cfg.QoS = byte(*flagMQTTQoS) // #nosec G115 - validated range 0-2
	}
	if *flagMQTTPoolSize != 0 {
		cfg.PoolSize = *flagMQTTPoolSize
	}
	if *flagMQTTConnectTimeout != 0 {
		cfg.ConnectTimeout = *flagMQTTConnectTimeout
	}
	if *flagMQTTWriteTimeout != 0 {
		cfg.WriteTimeout = *flagMQTTWriteTimeout
	}
}

func applyMQTTFlagTLS(cfg *MQTTConfig) {
	if *flagMQTTCACert != "" {
		cfg.CACert = *flagMQTTCACert
	}
	if *flagMQTTClientCert != "" {
		cfg.ClientCert = *flagMQTTClientCert
	}
	if *flagMQTTClientKey != "" {
		cfg.ClientKey = *flagMQTTClientKey
	}
}

func applyMQTTFlagBools(cfg *MQTTConfig) {
	// Handle bool flags - check if explicitly set
	if isFlagSet("mqtt-enabled") {
		cfg.Enabled = *flagMQTTEnabled
	}
	if isFlagSet("mqtt-tls-enabled") {
		cfg.TLSEnabled = *flagMQTTTLSEnabled
	}
	if isFlagSet("mqtt-tls-insecure-skip") {
		cfg.InsecureSkip = *flagMQTTTLSInsecureSkip
	}
	if isFlagSet("mqtt-use-cert-cn-prefix") {
		cfg.UseCertCNPrefix = *flagMQTTUseCertCNPrefix
	}
}

// applyResequencerFlags applies command line flags to the watermark and polling settings
func applyResequencerFlags(cfg *ResequencerConfig) {
	if *flagMinimumAge != 0 {
		cfg.MinimumAge = *flagMinimumAge
	}
	if *flagMaxRecordsPerPoll != 0 {
		cfg.MaxRecordsPerPoll = *flagMaxRecordsPerPoll
	}
	if *flagPollIdleDelay != 0 {
		cfg.PollIdleDelay = *flagPollIdleDelay
	}
	if isFlagSet("always-poll") {
		cfg.AlwaysPoll = *flagAlwaysPoll
	}
	if *flagUnorderedQueue != "" {
		cfg.UnorderedQueue = *flagUnorderedQueue
	}
	if *flagOrderedQueue != "" {
		cfg.OrderedQueue = *flagOrderedQueue
	}
	if *flagPartitions != 0 {
		cfg.Partitions = *flagPartitions
	}
}

// applyPublishFlags applies command line flags to the publisher settings
func applyPublishFlags(cfg *PublishConfig) {
	if *flagMaxBatchPutSize != 0 {
		cfg.MaxBatchPutSize = *flagMaxBatchPutSize
	}
	// 0 is meaningful here, so -1 marks "not set"
	if *flagMaxAttempts != -1 {
		cfg.MaxAttempts = *flagMaxAttempts
	}
	if *flagBackoff != 0 {
		cfg.Backoff = *flagBackoff
	}
	if *flagMaxBackoff != 0 {
		cfg.MaxBackoff = *flagMaxBackoff
	}
}

// applyPipelineFlags applies command line flags to Pipeline configuration
func applyPipelineFlags(cfg *PipelineConfig) {
	if *flagPipelinePlatform != "" {
		cfg.Platform = *flagPipelinePlatform
	}
	if *flagPipelineShutdownTimeout != 0 {
		cfg.ShutdownTimeout = *flagPipelineShutdownTimeout
	}
	if *flagPipelineErrorBackoff != 0 {
		cfg.ErrorBackoff = *flagPipelineErrorBackoff
	}
}

func applyMetricsFlags(cfg *MetricsConfig) {
	if *flagMetricsAddress != "" {
		cfg.Address = *flagMetricsAddress
	}
}

// applyProducerFlags applies command line flags to the producer settings
func applyProducerFlags(cfg *ProducerConfig) {
	if *flagProducerMode != "" {
		cfg.Mode = *flagProducerMode
	}
	if *flagProducerCount != 0 {
		cfg.Count = *flagProducerCount
	}
	if *flagProducerInterval != 0 {
		cfg.Interval = *flagProducerInterval
	}
	if *flagProducerInputFile != "" {
		cfg.InputFile = *flagProducerInputFile
	}
	if *flagProducerTimestampWindow != 0 {
		cfg.TimestampWindow = *flagProducerTimestampWindow
	}
	if *flagProducerSources != 0 {
		cfg.Sources = *flagProducerSources
	}
}

func applyLogFlags(cfg *LogConfig) {
	if *flagLogLevel != "" {
		cfg.Level = *flagLogLevel
	}
}

// isFlagSet checks if a flag was explicitly set on the command line
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
