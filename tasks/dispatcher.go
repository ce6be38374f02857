// Package tasks runs fire-and-forget work off the request path.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/phillip/event-manager-go/config"
	"github.com/phillip/event-manager-go/metrics"
)

// Func is a unit of background work. The context carries the per-task
// timeout and is never the request context.
type Func func(ctx context.Context) error

type job struct {
	name string
	fn   Func
}

// Dispatcher feeds a bounded queue to a fixed pool of workers. Tasks are not
// retried; their outcome is logged and counted.
type Dispatcher struct {
	queue   chan job
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
	group   errgroup.Group
}

func NewDispatcher(cfg config.TasksConfig, logger zerolog.Logger) *Dispatcher {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}

	d := &Dispatcher{
		queue:   make(chan job, size),
		timeout: cfg.Timeout,
		logger:  logger.With().Str("component", "tasks").Logger(),
	}
	for i := 0; i < workers; i++ {
		d.group.Go(d.work)
	}
	return d
}

// Submit enqueues fn without blocking. It reports false when the task was
// dropped because the queue is full or the dispatcher is shutting down.
func (d *Dispatcher) Submit(name string, fn Func) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(name, "dispatcher stopped")
		return false
	}

	d.pending.Add(1)
	select {
	case d.queue <- job{name: name, fn: fn}:
		metrics.TaskQueueDepth.Inc()
		return true
	default:
		d.pending.Done()
		d.drop(name, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(name, reason string) {
	metrics.TasksTotal.WithLabelValues(name, "dropped").Inc()
	d.logger.Warn().Str("task", name).Str("reason", reason).Msg("background task dropped")
}

// Wait blocks until every accepted task has finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Shutdown stops intake and waits for queued tasks to drain or ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("background tasks did not drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() error {
	for j := range d.queue {
		metrics.TaskQueueDepth.Dec()
		d.run(j)
	}
	return nil
}

func (d *Dispatcher) run(j job) {
	defer d.pending.Done()

	ctx := context.Background()
	cancel := context.CancelFunc(func() {})
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	defer cancel()

	start := time.Now()
	err := safeCall(ctx, j.fn)
	elapsed := time.Since(start)

	metrics.TaskDuration.WithLabelValues(j.name).Observe(elapsed.Seconds())
	metrics.TasksTotal.WithLabelValues(j.name, metrics.Outcome(err)).Inc()

	if err != nil {
		d.logger.Error().Err(err).Str("task", j.name).Dur("duration", elapsed).Msg("background task failed")
		return
	}
	d.logger.Debug().Str("task", j.name).Dur("duration", elapsed).Msg("background task finished")
}

var errPanic = errors.New("task panicked")

func safeCall(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return fn(ctx)
}
