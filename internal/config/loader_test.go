package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testRedisAddr = "localhost:6379"

func TestLoad_Defaults(t *testing.T) {
	clearTestEnv(t)
	resetTestFlags(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Redis.Address != testRedisAddr {
		t.Errorf("Redis.Address = %s; want %s", cfg.Redis.Address, testRedisAddr)
	}
	if cfg.Redis.Consumer == "" {
		t.Error("Redis.Consumer should be generated when empty")
	}
	if cfg.Resequencer.MinimumAge != 2*time.Second {
		t.Errorf("Resequencer.MinimumAge = %v; want 2s", cfg.Resequencer.MinimumAge)
	}
	if cfg.Resequencer.MaxRecordsPerPoll != 10000 {
		t.Errorf("Resequencer.MaxRecordsPerPoll = %d; want 10000", cfg.Resequencer.MaxRecordsPerPoll)
	}
	if cfg.Resequencer.PollIdleDelay != time.Millisecond {
		t.Errorf("Resequencer.PollIdleDelay = %v; want 1ms", cfg.Resequencer.PollIdleDelay)
	}
	if cfg.Resequencer.AlwaysPoll {
		t.Error("Resequencer.AlwaysPoll = true; want false")
	}
	if cfg.Resequencer.UnorderedQueue != "unordered-message-stream" {
		t.Errorf("Resequencer.UnorderedQueue = %s", cfg.Resequencer.UnorderedQueue)
	}
	if cfg.Resequencer.OrderedQueue != "ordered-message-stream" {
		t.Errorf("Resequencer.OrderedQueue = %s", cfg.Resequencer.OrderedQueue)
	}
	if cfg.Publish.MaxBatchPutSize != 500 {
		t.Errorf("Publish.MaxBatchPutSize = %d; want 500", cfg.Publish.MaxBatchPutSize)
	}
	if cfg.Publish.MaxAttempts != 0 {
		t.Errorf("Publish.MaxAttempts = %d; want 0 (unlimited)", cfg.Publish.MaxAttempts)
	}
	if cfg.Pipeline.Platform != PlatformRedis {
		t.Errorf("Pipeline.Platform = %s; want redis", cfg.Pipeline.Platform)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = true; want false")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearTestEnv(t)
	resetTestFlags(t)

	t.Setenv("REDIS_ADDRESS", "redis-env:6379")
	t.Setenv("RESEQUENCER_MINIMUM_AGE", "5s")
	t.Setenv("RESEQUENCER_ALWAYS_POLL", "true")
	t.Setenv("RESEQUENCER_PARTITIONS", "8")
	t.Setenv("PUBLISH_MAX_ATTEMPTS", "3")
	t.Setenv("PUBLISH_BACKOFF", "10ms")
	t.Setenv("PIPELINE_PLATFORM", "memory")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Redis.Address != "redis-env:6379" {
		t.Errorf("Redis.Address = %s; want redis-env:6379", cfg.Redis.Address)
	}
	if cfg.Resequencer.MinimumAge != 5*time.Second {
		t.Errorf("Resequencer.MinimumAge = %v; want 5s", cfg.Resequencer.MinimumAge)
	}
	if !cfg.Resequencer.AlwaysPoll {
		t.Error("Resequencer.AlwaysPoll = false; want true")
	}
	if cfg.Resequencer.Partitions != 8 {
		t.Errorf("Resequencer.Partitions = %d; want 8", cfg.Resequencer.Partitions)
	}
	if cfg.Publish.MaxAttempts != 3 {
		t.Errorf("Publish.MaxAttempts = %d; want 3", cfg.Publish.MaxAttempts)
	}
	if cfg.Publish.Backoff != 10*time.Millisecond {
		t.Errorf("Publish.Backoff = %v; want 10ms", cfg.Publish.Backoff)
	}
	if cfg.Pipeline.Platform != PlatformMemory {
		t.Errorf("Pipeline.Platform = %s; want memory", cfg.Pipeline.Platform)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s; want debug", cfg.Log.Level)
	}
}

func TestLoad_Precedence(t *testing.T) {
	clearTestEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
redis:
  address: redis-file:6379
resequencer:
  minimum_age: 3s
  ordered_queue: file-ordered
publish:
  max_attempts: 7
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RESEQUENCER_MINIMUM_AGE", "4s")
	t.Setenv("REDIS_ADDRESS", "redis-env:6379")

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{
		"test",
		"-redis-address=redis-flag:6379",
		"-publish-max-attempts=0",
	}
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	resetFlags()
	flag.Parse()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// file only
	if cfg.Resequencer.OrderedQueue != "file-ordered" {
		t.Errorf("OrderedQueue = %s; want file-ordered", cfg.Resequencer.OrderedQueue)
	}
	// env over file
	if cfg.Resequencer.MinimumAge != 4*time.Second {
		t.Errorf("MinimumAge = %v; want 4s", cfg.Resequencer.MinimumAge)
	}
	// flag over env
	if cfg.Redis.Address != "redis-flag:6379" {
		t.Errorf("Redis.Address = %s; want redis-flag:6379", cfg.Redis.Address)
	}
	// explicit zero flag over file
	if cfg.Publish.MaxAttempts != 0 {
		t.Errorf("Publish.MaxAttempts = %d; want 0", cfg.Publish.MaxAttempts)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	clearTestEnv(t)
	resetTestFlags(t)

	t.Setenv("RESEQUENCER_PARTITIONS", "-1")

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil; want validation error")
	}
}

func TestLoad_BadConfigFile(t *testing.T) {
	clearTestEnv(t)
	resetTestFlags(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "resequencer:\n  minimum_agee: 1s\n")
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil; want unknown field error")
	}
}

// Helper functions for tests

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func clearTestEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"CONFIG_FILE",
		"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_GROUP", "REDIS_CONSUMER", "REDIS_DB", "REDIS_MAX_LEN",
		"REDIS_BLOCK_TIMEOUT", "REDIS_LEASE_TTL", "REDIS_CLAIM_IDLE",
		"REDIS_CONSUMER_IDLE_TIMEOUT", "REDIS_CLEANUP_INTERVAL",
		"REDIS_DIAL_TIMEOUT", "REDIS_READ_TIMEOUT", "REDIS_WRITE_TIMEOUT", "REDIS_PING_TIMEOUT",
		"MQTT_ENABLED", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_PUBLISH_TOPIC",
		"MQTT_QOS", "MQTT_CONNECT_TIMEOUT", "MQTT_WRITE_TIMEOUT", "MQTT_POOL_SIZE",
		"MQTT_MAX_RECONNECT_INTERVAL", "MQTT_DISCONNECT_TIMEOUT",
		"MQTT_TLS_ENABLED", "MQTT_CA_CERT", "MQTT_CLIENT_CERT", "MQTT_CLIENT_KEY",
		"MQTT_TLS_INSECURE_SKIP", "MQTT_USE_CERT_CN_PREFIX",
		"RESEQUENCER_MINIMUM_AGE", "RESEQUENCER_MAX_RECORDS_PER_POLL", "RESEQUENCER_POLL_IDLE_DELAY",
		"RESEQUENCER_ALWAYS_POLL", "RESEQUENCER_UNORDERED_QUEUE", "RESEQUENCER_ORDERED_QUEUE",
		"RESEQUENCER_PARTITIONS",
		"PUBLISH_MAX_BATCH_PUT_SIZE", "PUBLISH_MAX_ATTEMPTS", "PUBLISH_BACKOFF", "PUBLISH_MAX_BACKOFF",
		"PIPELINE_PLATFORM", "PIPELINE_SHUTDOWN_TIMEOUT", "PIPELINE_ERROR_BACKOFF",
		"METRICS_ADDRESS",
		"PRODUCER_MODE", "PRODUCER_COUNT", "PRODUCER_INTERVAL", "PRODUCER_INPUT_FILE",
		"PRODUCER_TIMESTAMP_WINDOW", "PRODUCER_SOURCES",
		"LOG_LEVEL",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
		_ = os.Unsetenv(v)
	}
}

func resetTestFlags(t *testing.T) {
	t.Helper()
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })

	os.Args = []string{"test"}
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	resetFlags()
}
