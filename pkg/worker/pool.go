// Package worker implements the Pipeline Worker Pool: a bounded FIFO
// queue plus N persistent workers, each driving one task through
// Download -> Split -> Transcribe -> Merge.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eternnoir/mediascribe/pkg/logger"
	"github.com/eternnoir/mediascribe/pkg/metrics"
	"github.com/eternnoir/mediascribe/pkg/pipeline"
	"github.com/eternnoir/mediascribe/pkg/task"
)

const workerPollInterval = 1 * time.Second
const workerJoinTimeout = 2 * time.Second

// Stages bundles the four stage implementations a worker drives in order.
type Stages struct {
	Downloader  *pipeline.Downloader
	Splitter    *pipeline.Splitter
	Transcriber *pipeline.Transcriber
	Merger      *pipeline.Merger
}

// Pool is the bounded-queue worker pool.
type Pool struct {
	registry *task.Registry
	stages   Stages

	queue    chan *task.Task
	stopCh   chan struct{}
	wg       sync.WaitGroup
	shutdown bool
	mu       sync.Mutex
}

// NewPool constructs a Pool with maxQueueSize capacity and starts
// maxWorkers persistent workers.
func NewPool(registry *task.Registry, stages Stages, maxWorkers, maxQueueSize int) *Pool {
	p := &Pool{
		registry: registry,
		stages:   stages,
		queue:    make(chan *task.Task, maxQueueSize),
		stopCh:   make(chan struct{}),
	}

	for i := 0; i < maxWorkers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}

	return p
}

// Submit de-duplicates by URL under the registry lock, creates a Pending
// task, and pushes it to the queue. If the queue is full, the task is
// removed from the registry and nil is returned.
func (p *Pool) Submit(url string) *task.Task {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		metrics.TasksRejectedTotal.WithLabelValues("shutting_down").Inc()
		return nil
	}
	p.mu.Unlock()

	if p.registry.HasURL(url) {
		metrics.TasksRejectedTotal.WithLabelValues("duplicate_url").Inc()
		return nil
	}

	t := task.New(url)
	if err := p.registry.Add(t); err != nil {
		return nil
	}

	select {
	case p.queue <- t:
		metrics.TasksSubmittedTotal.Inc()
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return t
	default:
		p.registry.Remove(t)
		metrics.TasksRejectedTotal.WithLabelValues("queue_full").Inc()
		return nil
	}
}

// Resume re-enqueues t if it can_resume() and the Pending transition is
// legal; otherwise it refuses.
func (p *Pool) Resume(t *task.Task) bool {
	if !t.CanResume() {
		return false
	}
	if !t.TryTransition(task.StatusPending) {
		return false
	}

	select {
	case p.queue <- t:
		return true
	default:
		return false
	}
}

// Shutdown marks the pool shut down, so later Submits are refused, and
// signals the workers to stop. It waits up to workerJoinTimeout in total
// for all workers to return and logs a warning if they have not. A worker
// finishes the task it is running before returning, but the queue is not
// drained: tasks still waiting in it may never be picked up.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(workerJoinTimeout):
		logger.WithComponent("worker-pool").Warn().Msg("workers did not join within grace period; abandoning")
	}
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()
	log := logger.WithComponent("worker-pool").WithField("worker_id", fmt.Sprintf("%d", id))

	for {
		select {
		case <-p.stopCh:
			return
		case t := <-p.queue:
			metrics.ActiveWorkers.Inc()
			p.runPipeline(log, t)
			metrics.ActiveWorkers.Dec()
		case <-time.After(workerPollInterval):
			// 1s poll granularity so shutdown is observed even while idle.
		}
	}
}

func (p *Pool) runPipeline(log *logger.Logger, t *task.Task) {
	ctx := context.Background()

	if !p.advance(log, t, task.StatusDownloading, func() error { return p.stages.Downloader.Run(ctx, t) }) {
		return
	}
	if !p.advance(log, t, task.StatusSplitting, func() error { return p.stages.Splitter.Run(ctx, t) }) {
		return
	}
	if !p.advance(log, t, task.StatusTranscribing, func() error { return p.stages.Transcriber.Run(ctx, t) }) {
		return
	}
	if !p.advance(log, t, task.StatusMerging, func() error { return p.stages.Merger.Run(ctx, t) }) {
		return
	}

	if !t.TryTransition(task.StatusCompleted) {
		p.invariantViolation(t, "illegal transition to Completed")
		return
	}
	t.Atomic(func(tk *task.Task) {
		tk.MetaProcessing["processing_completed_at"] = time.Now().Format(time.RFC3339)
	})
	metrics.TaskStatusTotal.WithLabelValues(string(task.StatusCompleted)).Inc()
}

// advance transitions t to stage and runs fn. Any failure records the
// error (already appended by the stage itself) and transitions to Failed.
// An illegal transition is a programming error and also fails the task.
func (p *Pool) advance(log *logger.Logger, t *task.Task, stage task.Status, fn func() error) bool {
	if !t.TryTransition(stage) {
		p.invariantViolation(t, fmt.Sprintf("illegal transition to %s", stage))
		return false
	}

	start := time.Now()
	err := fn()
	metrics.ObserveStage(string(stage), start, err)

	if err != nil {
		log.Error().Err(err).Str("stage", string(stage)).Str("task_id", t.ID).Msg("stage failed")
		if !t.TryTransition(task.StatusFailed) {
			p.invariantViolation(t, "illegal transition to Failed")
		}
		metrics.TaskStatusTotal.WithLabelValues(string(task.StatusFailed)).Inc()
		return false
	}

	return true
}

func (p *Pool) invariantViolation(t *task.Task, message string) {
	t.AddError("internal", "internal invariant violation: "+message, "")
	_ = t.TryTransition(task.StatusFailed)
}
