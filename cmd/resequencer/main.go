// Package main starts the resequencer binary.
package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibs-source/resequencer/internal/app"
	"github.com/ibs-source/resequencer/internal/checkpoint"
	"github.com/ibs-source/resequencer/internal/config"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/mqtt"
	"github.com/ibs-source/resequencer/internal/producer"
	"github.com/ibs-source/resequencer/internal/publish"
	"github.com/ibs-source/resequencer/internal/reader"
	"github.com/ibs-source/resequencer/internal/resequence"
	"github.com/ibs-source/resequencer/internal/worker"
)

func run() int {
	svc, err := app.Setup("resequencer")
	if err != nil {
		log.New().Error("%v", err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			svc.Logger.Error("Error closing services: %v", err)
		}
	}()
	cfg := svc.Config

	var mirror resequence.Mirror
	if cfg.MQTT.Enabled {
		pool, err := mqtt.NewPool(&cfg.MQTT, svc.Logger)
		if err != nil {
			svc.Logger.Error("Failed to create MQTT pool: %v", err)
			return 1
		}
		m := mqtt.NewMirror(pool, svc.Logger, svc.Metrics)
		defer func() {
			if err := m.Close(); err != nil {
				svc.Logger.Error("Error closing MQTT pool: %v", err)
			}
		}()
		svc.Logger.Info("Connected to MQTT broker with %d connections", pool.Size())
		mirror = m
	}

	checkpoints := checkpoint.New(svc.Platform, svc.Logger, svc.Metrics)
	router := resequence.NewRouter(resequence.Options{
		MinimumAge:     cfg.Resequencer.MinimumAge,
		UnorderedQueue: cfg.Resequencer.UnorderedQueue,
		OrderedQueue:   cfg.Resequencer.OrderedQueue,
		Publisher: publish.New(svc.Platform, publish.Options{
			MaxBatchPutSize: cfg.Publish.MaxBatchPutSize,
			Retry:           svc.RetryPolicy(),
			Logger:          svc.Logger,
			Metrics:         svc.Metrics,
		}),
		Checkpointer: checkpoints,
		Mirror:       mirror,
		Logger:       svc.Logger,
		Metrics:      svc.Metrics,
	})
	factory := func(string) worker.Processor {
		return resequence.NewPartitionProcessor(router, checkpoints)
	}
	scheduler := worker.NewScheduler(svc.Platform, cfg.Resequencer.UnorderedQueue, factory, svc.WorkerOptions(), svc.Tasks...)

	return svc.Run(func(ctx context.Context) error {
		if cfg.Pipeline.Platform != config.PlatformMemory {
			return scheduler.Run(ctx)
		}
		return runLocal(ctx, svc, scheduler)
	})
}

// runLocal runs the whole pipeline in one process on the in-memory platform:
// a producer feeds the unordered queue and a reader drains the ordered one.
func runLocal(ctx context.Context, svc *app.Services, scheduler *worker.Scheduler) error {
	cfg := svc.Config
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	g.Go(func() error {
		gen := producer.NewGenerator(0, cfg.Producer.TimestampWindow, cfg.Producer.Sources, nil)
		p := producer.New(&cfg.Producer, cfg.Resequencer.UnorderedQueue, cfg.Publish.MaxBatchPutSize,
			publish.NewSequentialSender(svc.Platform, svc.RetryPolicy(), svc.Logger),
			publish.New(svc.Platform, publish.Options{Retry: svc.RetryPolicy(), Logger: svc.Logger, Metrics: svc.Metrics}),
			svc.Logger)
		_, err := p.Run(ctx, producer.FromGenerator(gen, cfg.Producer.Count))
		return err
	})

	r := reader.New(checkpoint.New(svc.Platform, svc.Logger, svc.Metrics), svc.Logger, svc.Metrics)
	g.Go(func() error {
		factory := func(p string) worker.Processor { return r.Processor(p) }
		return worker.NewScheduler(svc.Platform, cfg.Resequencer.OrderedQueue, factory, svc.WorkerOptions()).Run(ctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				stats := r.Stats()
				svc.Logger.Info("Ordered output: %d events, %d inversions", stats.Events.Load(), stats.Inversions.Load())
			}
		}
	})

	return g.Wait()
}

func main() {
	// Keep main minimal to ensure defers in run() execute correctly.
	os.Exit(run())
}
