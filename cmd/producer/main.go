// Package main starts the test event producer.
package main

import (
	"context"
	"os"

	"github.com/ibs-source/resequencer/internal/app"
	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/producer"
	"github.com/ibs-source/resequencer/internal/publish"
)

func run() int {
	svc, err := app.Setup("producer")
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

	var src producer.Source
	if cfg.Producer.InputFile != "" {
		events, err := producer.LoadFile(cfg.Producer.InputFile)
		if err != nil {
			svc.Logger.Error("Failed to read input file: %v", err)
			return 1
		}
		svc.Logger.Info("Loaded %d events from %s", len(events), cfg.Producer.InputFile)
		src = producer.FromSlice(events)
	} else {
		gen := producer.NewGenerator(0, cfg.Producer.TimestampWindow, cfg.Producer.Sources, nil)
		src = producer.FromGenerator(gen, cfg.Producer.Count)
	}

	p := producer.New(&cfg.Producer, cfg.Resequencer.UnorderedQueue, cfg.Publish.MaxBatchPutSize,
		publish.NewSequentialSender(svc.Platform, svc.RetryPolicy(), svc.Logger),
		publish.New(svc.Platform, publish.Options{
			MaxBatchPutSize: cfg.Publish.MaxBatchPutSize,
			Retry:           svc.RetryPolicy(),
			Logger:          svc.Logger,
			Metrics:         svc.Metrics,
		}),
		svc.Logger)

	return svc.Run(func(ctx context.Context) error {
		_, err := p.Run(ctx, src)
		return err
	})
}

func main() {
	os.Exit(run())
}
