// Package main starts the ordered queue reader.
package main

import (
	"context"
	"os"

	"github.com/ibs-source/resequencer/internal/app"
	"github.com/ibs-source/resequencer/internal/checkpoint"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/reader"
	"github.com/ibs-source/resequencer/internal/worker"
)

func run() int {
	svc, err := app.Setup("reader")
	if err != nil {
		log.New().Error("%v", err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			svc.Logger.Error("Error closing services: %v", err)
		}
	}()

	r := reader.New(checkpoint.New(svc.Platform, svc.Logger, svc.Metrics), svc.Logger, svc.Metrics)
	factory := func(p string) worker.Processor { return r.Processor(p) }
	scheduler := worker.NewScheduler(svc.Platform, svc.Config.Resequencer.OrderedQueue, factory, svc.WorkerOptions(), svc.Tasks...)

	code := svc.Run(func(ctx context.Context) error {
		return scheduler.Run(ctx)
	})
	stats := r.Stats()
	svc.Logger.Info("Read %d events, %d order inversions, %d undecodable records",
		stats.Events.Load(), stats.Inversions.Load(), stats.DecodeErrors.Load())
	return code
}

func main() {
	os.Exit(run())
}
