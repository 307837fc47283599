// Package app wires the shared services of the resequencer binaries:
// configuration, logging, metrics and the queue platform.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ibs-source/resequencer/internal/config"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/memqueue"
	"github.com/ibs-source/resequencer/internal/metrics"
	"github.com/ibs-source/resequencer/internal/platform"
	"github.com/ibs-source/resequencer/internal/publish"
	"github.com/ibs-source/resequencer/internal/redis"
	"github.com/ibs-source/resequencer/internal/worker"
)

// Services are the dependencies every binary starts with.
type Services struct {
	Config   *config.Config
	Logger   *log.Logger
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Platform platform.Platform
	// Tasks are the platform's maintenance jobs, run next to the workers.
	Tasks []worker.Task

	closers []func() error
}

// Setup loads the configuration and starts the shared services for the
// binary called name.
func Setup(name string) (*Services, error) {
	logger := log.New()
	logger.Info("Starting %s", name)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)
	logConfig(cfg, logger)

	s := &Services{Config: cfg, Logger: logger}

	s.Registry = prometheus.NewRegistry()
	s.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.Metrics = metrics.New(s.Registry)
	stopMetrics := metrics.Serve(cfg.Metrics.Address, s.Registry, logger)
	s.closers = append(s.closers, func() error { stopMetrics(); return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p, tasks, closePlatform, err := NewPlatform(ctx, cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Platform, s.Tasks = p, tasks
	s.closers = append(s.closers, closePlatform)

	if err := platform.EnsureActive(ctx, p, cfg.Resequencer.UnorderedQueue, cfg.Resequencer.OrderedQueue); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("queue validation failed: %w", err)
	}
	return s, nil
}

func logConfig(cfg *config.Config, logger *log.Logger) {
	logger.Info("Configuration loaded successfully")
	logger.Info("Platform: %s, Unordered: %s, Ordered: %s, Partitions: %d",
		cfg.Pipeline.Platform, cfg.Resequencer.UnorderedQueue, cfg.Resequencer.OrderedQueue, cfg.Resequencer.Partitions)
	if cfg.Pipeline.Platform == config.PlatformRedis {
		logger.Info("Redis: %s, Group: %s, Consumer: %s", cfg.Redis.Address, cfg.Redis.Group, cfg.Redis.Consumer)
	}
	if cfg.MQTT.Enabled {
		logger.Info("MQTT mirror: %s, Publish: %s", cfg.MQTT.Broker, cfg.MQTT.PublishTopic)
	}
	logger.Info("Watermark: %s, MaxRecordsPerPoll: %d", cfg.Resequencer.MinimumAge, cfg.Resequencer.MaxRecordsPerPoll)
}

// NewPlatform creates the configured platform and makes sure both queues
// exist with the configured partition count.
func NewPlatform(ctx context.Context, cfg *config.Config, logger *log.Logger) (platform.Platform, []worker.Task, func() error, error) {
	queues := []string{cfg.Resequencer.UnorderedQueue, cfg.Resequencer.OrderedQueue}

	switch cfg.Pipeline.Platform {
	case config.PlatformMemory:
		q := memqueue.New()
		for _, name := range queues {
			q.CreateQueue(name, cfg.Resequencer.Partitions)
		}
		logger.Warn("Using the in-memory platform: data does not outlive the process")
		return q, nil, func() error { return nil }, nil

	case config.PlatformRedis:
		client, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Connected to Redis")
		for _, name := range queues {
			if err := client.CreateQueue(ctx, name, cfg.Resequencer.Partitions); err != nil {
				_ = client.Close()
				return nil, nil, nil, err
			}
		}
		tasks := []worker.Task{
			{Name: "claim", Interval: cfg.Redis.ClaimIdle, Run: client.ClaimIdle},
			{Name: "cleanup", Interval: cfg.Redis.CleanupInterval, Run: func(ctx context.Context) error {
				return client.CleanupDeadConsumers(ctx, cfg.Redis.ConsumerIdleTimeout, queues...)
			}},
		}
		return client, tasks, client.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown platform %q", cfg.Pipeline.Platform)
	}
}

// WorkerOptions maps the configuration onto the worker loop settings.
func (s *Services) WorkerOptions() worker.Options {
	return worker.Options{
		MaxRecordsPerPoll: s.Config.Resequencer.MaxRecordsPerPoll,
		PollIdleDelay:     s.Config.Resequencer.PollIdleDelay,
		AlwaysPoll:        s.Config.Resequencer.AlwaysPoll,
		ErrorBackoff:      s.Config.Pipeline.ErrorBackoff,
		Logger:            s.Logger,
		Metrics:           s.Metrics,
	}
}

// RetryPolicy maps the configuration onto the publisher retry policy.
func (s *Services) RetryPolicy() publish.RetryPolicy {
	return publish.RetryPolicy{
		MaxAttempts: s.Config.Publish.MaxAttempts,
		Backoff:     s.Config.Publish.Backoff,
		MaxBackoff:  s.Config.Publish.MaxBackoff,
	}
}

// Close stops the services in reverse start order.
func (s *Services) Close() error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.closers = nil
	return result.ErrorOrNil()
}

// Run runs fn until it returns or a termination signal arrives. After a
// signal, fn gets the configured shutdown timeout to return. The result is
// the process exit code.
func (s *Services) Run(fn func(ctx context.Context) error) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn(ctx)
	}()

	select {
	case sig := <-sigChan:
		s.Logger.Info("Received signal %v, initiating graceful shutdown", sig)
		cancel()
		return s.awaitShutdown(errChan)

	case err := <-errChan:
		if err != nil {
			s.Logger.Error("Stopped with error: %v", err)
			return 1
		}
		s.Logger.Info("Finished")
		return 0
	}
}

func (s *Services) awaitShutdown(errChan <-chan error) int {
	timer := time.NewTimer(s.Config.Pipeline.ShutdownTimeout)
	defer timer.Stop()

	select {
	case err := <-errChan:
		if err != nil {
			s.Logger.Error("Error during shutdown: %v", err)
			return 1
		}
		s.Logger.Info("Graceful shutdown completed")
		return 0
	case <-timer.C:
		s.Logger.Error("Shutdown timeout exceeded")
		return 1
	}
}
