// Package worker runs fire-and-forget side effects on a bounded pool so
// their latency and failures never reach the caller that scheduled them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("worker queue closed")

const defaultTaskTimeout = 30 * time.Second

var tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "godrive_background_tasks_total",
	Help: "Background tasks by name and outcome.",
}, []string{"task", "result"})

type task struct {
	name string
	run  func(ctx context.Context) error
}

// Queue is a bounded FIFO drained by a fixed number of workers.
type Queue struct {
	log     *zap.Logger
	tasks   chan task
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts workers goroutines reading from a queue of the given capacity.
func New(log *zap.Logger, workers, capacity int) *Queue {
	q := &Queue{
		log:     log.Named("worker"),
		tasks:   make(chan task, capacity),
		timeout: defaultTaskTimeout,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.loop()
	}
	return q
}

// Submit enqueues fn, blocking while the queue is full. ctx only bounds the wait
// for a free slot; the task itself runs detached from it.
func (q *Queue) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task{name: name, run: fn}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", name, ctx.Err())
	}
}

// Close stops accepting work and waits for queued tasks to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.execute(t)
	}
}

func (q *Queue) execute(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			tasksTotal.WithLabelValues(t.name, "panic").Inc()
			q.log.Error("background task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()

	if err := t.run(ctx); err != nil {
		tasksTotal.WithLabelValues(t.name, "error").Inc()
		q.log.Warn("background task failed", zap.String("task", t.name), zap.Error(err))
		return
	}
	tasksTotal.WithLabelValues(t.name, "ok").Inc()
}
