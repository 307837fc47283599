package config

import (
	"flag"
	"os"
	"testing"
	"time"
)

// resetFlags re-registers every flag on a fresh flag.CommandLine.
func resetFlags() {
	registerFlags()
}

func parseTestArgs(t *testing.T, args ...string) {
	t.Helper()
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })

	os.Args = append([]string{"test"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	resetFlags()
	flag.Parse()
}

func TestApplyResequencerFlags(t *testing.T) {
	parseTestArgs(t,
		"-minimum-age=750ms",
		"-max-records-per-poll=20",
		"-poll-idle-delay=5ms",
		"-always-poll",
		"-unordered-queue=in",
		"-ordered-queue=out",
		"-partitions=2",
	)

	cfg := defaultResequencerConfig()
	applyResequencerFlags(&cfg)

	if cfg.MinimumAge != 750*time.Millisecond {
		t.Errorf("MinimumAge = %v; want 750ms", cfg.MinimumAge)
	}
	if cfg.MaxRecordsPerPoll != 20 {
		t.Errorf("MaxRecordsPerPoll = %d; want 20", cfg.MaxRecordsPerPoll)
	}
	if cfg.PollIdleDelay != 5*time.Millisecond {
		t.Errorf("PollIdleDelay = %v; want 5ms", cfg.PollIdleDelay)
	}
	if !cfg.AlwaysPoll {
		t.Error("AlwaysPoll = false; want true")
	}
	if cfg.UnorderedQueue != "in" || cfg.OrderedQueue != "out" {
		t.Errorf("queues = %s/%s; want in/out", cfg.UnorderedQueue, cfg.OrderedQueue)
	}
	if cfg.Partitions != 2 {
		t.Errorf("Partitions = %d; want 2", cfg.Partitions)
	}
}

func TestApplyPublishFlags_Unset(t *testing.T) {
	parseTestArgs(t)

	cfg := PublishConfig{MaxBatchPutSize: 100, MaxAttempts: 5}
	applyPublishFlags(&cfg)

	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d; want 5 when the flag is not given", cfg.MaxAttempts)
	}
	if cfg.MaxBatchPutSize != 100 {
		t.Errorf("MaxBatchPutSize = %d; want 100", cfg.MaxBatchPutSize)
	}
}

func TestApplyMQTTFlags(t *testing.T) {
	parseTestArgs(t,
		"-mqtt-enabled",
		"-mqtt-broker=tcp://flag-broker:1883",
		"-mqtt-publish-topic=flag/topic",
		"-mqtt-qos=2",
		"-mqtt-pool-size=3",
	)

	cfg := defaultMQTTConfig()
	applyMQTTFlags(&cfg)

	if !cfg.Enabled {
		t.Error("Enabled = false; want true")
	}
	if cfg.Broker != "tcp://flag-broker:1883" {
		t.Errorf("Broker = %s", cfg.Broker)
	}
	if cfg.PublishTopic != "flag/topic" {
		t.Errorf("PublishTopic = %s", cfg.PublishTopic)
	}
	if cfg.QoS != 2 {
		t.Errorf("QoS = %d; want 2", cfg.QoS)
	}
	if cfg.PoolSize != 3 {
		t.Errorf("PoolSize = %d; want 3", cfg.PoolSize)
	}
}

func TestApplyMQTTFlags_InvalidQoSIgnored(t *testing.T) {
	parseTestArgs(t, "-mqtt-qos=7")

	cfg := defaultMQTTConfig()
	applyMQTTFlags(&cfg)

	if cfg.QoS != 0 {
		t.Errorf("QoS = %d; want default 0", cfg.QoS)
	}
}

func TestApplyProducerFlags(t *testing.T) {
	parseTestArgs(t,
		"-producer-mode=batch",
		"-producer-count=50",
		"-producer-input-file=events.jsonl",
		"-producer-sources=3",
	)

	cfg := defaultProducerConfig()
	applyProducerFlags(&cfg)

	if cfg.Mode != ProducerModeBatch {
		t.Errorf("Mode = %s; want batch", cfg.Mode)
	}
	if cfg.Count != 50 {
		t.Errorf("Count = %d; want 50", cfg.Count)
	}
	if cfg.InputFile != "events.jsonl" {
		t.Errorf("InputFile = %s", cfg.InputFile)
	}
	if cfg.Sources != 3 {
		t.Errorf("Sources = %d; want 3", cfg.Sources)
	}
}

func TestIsFlagSet(t *testing.T) {
	parseTestArgs(t, "-always-poll=false")

	if !isFlagSet("always-poll") {
		t.Error("isFlagSet(always-poll) = false; want true")
	}
	if isFlagSet("mqtt-enabled") {
		t.Error("isFlagSet(mqtt-enabled) = true; want false")
	}
}
