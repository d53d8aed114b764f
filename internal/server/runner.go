// Package server drives a download run from start to drain.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/download"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/events"
)

// DefaultStopTimeout bounds how long an interrupted run waits for in-flight
// downloads.
const DefaultStopTimeout = 30 * time.Second

// minEventBuffer is the smallest subscription buffer a run uses.
const minEventBuffer = 1024

// Config for a Runner.
type Config struct {
	Workers     int
	StopTimeout time.Duration
}

// Runner starts the download queue, follows its events and returns once
// the run has drained or the context is cancelled.
//
// The bus drops events for a subscriber whose buffer is full, so Run sizes
// its subscription for every event the pending tasks can produce. Tasks
// submitted while a run is in progress are not accounted for.
type Runner struct {
	queue   *download.Queue
	bus     *events.Bus
	config  Config
	logger  *slog.Logger
	onEvent func(events.Event)
}

// NewRunner creates a new runner.
func NewRunner(queue *download.Queue, bus *events.Bus, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Runner{
		queue:  queue,
		bus:    bus,
		config: cfg,
		logger: logger.With("component", "runner"),
	}
}

// OnEvent registers fn to receive every queue event of the run, in order.
// It must be called before Run.
func (r *Runner) OnEvent(fn func(events.Event)) {
	r.onEvent = fn
}

// Run starts the queue and blocks until it drains. Cancelling ctx stops
// the run after in-flight downloads finish; pending tasks stay queued.
func (r *Runner) Run(ctx context.Context) (download.Snapshot, error) {
	var sub <-chan events.Event
	if r.bus != nil {
		sub = r.bus.SubscribeAll(eventBuffer(r.queue.Status().Pending))
		defer r.bus.Unsubscribe(sub)
	}

	// Downloads outlive cancellation; Stop lets them finish.
	if !r.queue.Start(context.WithoutCancel(ctx), r.config.Workers) {
		return r.queue.Status(), download.ErrRunning
	}

	drained := make(chan struct{})
	var g errgroup.Group

	g.Go(func() error {
		defer close(drained)
		err := r.queue.Wait(ctx)
		if err == nil {
			return nil
		}
		r.logger.Info("run interrupted, waiting for in-flight downloads", "timeout", r.config.StopTimeout)
		if stopErr := r.queue.Stop(r.config.StopTimeout); stopErr != nil {
			return errors.Join(err, stopErr)
		}
		return err
	})

	if sub != nil {
		g.Go(func() error {
			for {
				select {
				case e, ok := <-sub:
					if !ok {
						<-drained
						return nil
					}
					r.handle(e)
				case <-drained:
					r.drain(sub)
					return nil
				}
			}
		})
	}

	err := g.Wait()
	snap := r.queue.Status()
	r.logger.Info("run finished", "run_id", snap.RunID, "completed", snap.Completed, "failed", snap.Failed, "pending", snap.Pending)
	return snap, err
}

// eventBuffer fits a started and a finished event per task plus the final
// queue.completed.
func eventBuffer(pending int) int {
	return max(minEventBuffer, 2*pending+1)
}

// drain delivers events already buffered when the run ended.
func (r *Runner) drain(sub <-chan events.Event) {
	for {
		select {
		case e, ok := <-sub:
			if !ok {
				return
			}
			r.handle(e)
		default:
			return
		}
	}
}

func (r *Runner) handle(e events.Event) {
	switch ev := e.(type) {
	case *events.TaskFailed:
		r.logger.Warn("task failed", "bv", ev.EntityID(), "title", ev.Title, "reason", ev.Reason)
	case *events.TaskCompleted:
		r.logger.Debug("task completed", "bv", ev.EntityID(), "output", ev.OutputFile, "duration_ms", ev.DurationMS)
	case *events.QueueCompleted:
		r.logger.Debug("queue completed", "run_id", ev.EntityID(), "completed", ev.Completed, "failed", ev.Failed)
	}
	if r.onEvent != nil {
		r.onEvent(e)
	}
}
