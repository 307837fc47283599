package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibs-source/resequencer/internal/log"
	"github.com/ibs-source/resequencer/internal/platform"
)

// Task is a periodic maintenance job run next to the workers.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs one Worker per partition of a queue, plus maintenance tasks.
type Scheduler struct {
	platform platform.Platform
	queue    string
	factory  Factory
	opts     Options
	tasks    []Task
	log      *log.Logger

	mu      sync.Mutex
	workers []*Worker
}

// NewScheduler creates a scheduler for every partition of queue.
func NewScheduler(p platform.Platform, queue string, factory Factory, opts Options, tasks ...Task) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &Scheduler{
		platform: p,
		queue:    queue,
		factory:  factory,
		opts:     opts,
		tasks:    tasks,
		log:      logger,
	}
}

// Run starts the workers and blocks until all of them have stopped. A worker
// that fails does not stop the others; its error is returned once they are
// all done. Maintenance tasks stop with the last worker.
func (s *Scheduler) Run(ctx context.Context) error {
	partitions, err := s.platform.Partitions(ctx, s.queue)
	if err != nil {
		return fmt.Errorf("list partitions of %s: %w", s.queue, err)
	}
	s.log.Info("Starting %d partition workers on %s", len(partitions), s.queue)

	taskCtx, stopTasks := context.WithCancel(ctx)
	var tasks sync.WaitGroup
	for _, t := range s.tasks {
		s.startTask(taskCtx, &tasks, t)
	}

	var g errgroup.Group
	for _, p := range partitions {
		w := New(p, s.platform, s.factory(p), s.opts)
		s.mu.Lock()
		s.workers = append(s.workers, w)
		s.mu.Unlock()

		g.Go(func() error {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("Worker for %s failed: %v", w.partition, err)
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	stopTasks()
	tasks.Wait()
	return err
}

// Workers returns the workers started so far.
func (s *Scheduler) Workers() []*Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Worker(nil), s.workers...)
}

// startTask runs t every Interval until ctx is done. Task errors are logged.
func (s *Scheduler) startTask(ctx context.Context, wg *sync.WaitGroup, t Task) {
	if t.Interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					s.log.Error("%s task failed: %v", t.Name, err)
				}
			}
		}
	}()
}
