package notify

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"storefront-checkout/internal/metrics"
)

// Task is one best-effort unit of post-commit work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher runs tasks on a fixed worker pool fed by a bounded queue.
// Submit never blocks; a full queue drops the task.
type Dispatcher struct {
	queue   chan Task
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *log.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(workers, queueSize int, timeout time.Duration, m *metrics.Metrics, logger *log.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	d := &Dispatcher{
		queue:   make(chan Task, queueSize),
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Submit enqueues t and reports whether it was accepted.
func (d *Dispatcher) Submit(t Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Printf("notify: dropped task=%s reason=closed", t.Name)
		d.metrics.ObserveNotify(t.Name, metrics.NotifyStatusDropped)
		return false
	}
	select {
	case d.queue <- t:
		return true
	default:
		d.logger.Printf("notify: dropped task=%s reason=queue_full", t.Name)
		d.metrics.ObserveNotify(t.Name, metrics.NotifyStatusDropped)
		return false
	}
}

// Close stops intake and waits for queued tasks to finish or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("notify: task=%s panic=%v", t.Name, r)
			d.metrics.ObserveNotify(t.Name, metrics.NotifyStatusFailed)
		}
	}()

	err := t.Run(ctx)
	switch {
	case err == nil:
		d.metrics.ObserveNotify(t.Name, metrics.NotifyStatusOK)
	case errors.Is(err, ErrNotConfigured):
		d.logger.Printf("notify: skipped task=%s reason=%v", t.Name, err)
		d.metrics.ObserveNotify(t.Name, metrics.NotifyStatusSkipped)
	default:
		d.logger.Printf("notify: task=%s error=%v", t.Name, err)
		d.metrics.ObserveNotify(t.Name, metrics.NotifyStatusFailed)
	}
}
