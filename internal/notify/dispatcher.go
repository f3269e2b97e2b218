package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// task is a unit of outbound work executed by the worker pool.
type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Dispatcher runs outbound notification tasks on a fixed worker pool. Submit
// is fire-and-forget: the submitting request never blocks on delivery, a full
// queue drops the task with a log line, and failures are logged rather than
// surfaced. Delivery is at-least-attempted-once with no retry.
type Dispatcher struct {
	tasks   chan task
	workers int
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
	stopCh  chan struct{}
	once    sync.Once
}

// NewDispatcher creates a dispatcher with the given worker count and queue
// capacity.
func NewDispatcher(workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		tasks:   make(chan task, queueSize),
		workers: workers,
		timeout: 30 * time.Second,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the worker pool. Workers drain the queue until Stop is
// called or ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case t := <-d.tasks:
			d.run(t)
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := t.fn(ctx); err != nil {
		d.logger.Error("notification task failed",
			slog.String("task", t.name),
			slog.Any("error", err))
		return
	}

	d.logger.Info("notification task completed", slog.String("task", t.name))
}

// Submit enqueues a task without blocking. When the queue is full the task is
// dropped: delivery is best-effort and never holds up the triggering request.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context) error) {
	select {
	case d.tasks <- task{name: name, fn: fn}:
	default:
		d.logger.Warn("notification queue full, dropping task", slog.String("task", name))
	}
}

// Stop signals the workers to finish and waits for them.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}
