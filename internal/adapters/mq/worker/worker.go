// Package worker drains the in-memory event queue into the interaction store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/pkg/logger"
	"github.com/okian/adrec/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
	defaultWriteTimeout   = 5 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = model.Event

// EventWriter persists one event.
type EventWriter interface {
	InsertEvent(ctx context.Context, e model.Event) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker writes dequeued events to the store.
type InMemoryWorker struct {
	queue        Queue
	writer       EventWriter
	name         string
	writeTimeout time.Duration
	onPersisted  func()

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, writer EventWriter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:        queue,
		writer:       writer,
		name:         "worker",
		writeTimeout: defaultWriteTimeout,
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop. It returns when ctx ends, Shutdown is called,
// or the queue is closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	eventChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing event", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processEvent persists a single event. Failures are logged and dropped.
func (w *InMemoryWorker) processEvent(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	wctx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()
	if err := w.writer.InsertEvent(wctx, event); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "persist_error")
		metrics.RecordErrorByType("persist_error", "high")
		return fmt.Errorf("persist event for ad %d: %w", event.AdID, err)
	}

	metrics.RecordEventPersisted()
	if w.onPersisted != nil {
		w.onPersisted()
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown     chan struct{}
	shutdownOnce sync.Once

	processedCount    atomic.Int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates a new worker pool. workerCount < 1 selects runtime.NumCPU().
func NewPool(workerCount int, queue Queue, writer EventWriter) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             queue,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			writer,
			WithName("worker-"+strconv.Itoa(i)),
			withOnPersisted(pool.RecordProcessedMessage),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0.0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of events persisted since the last metrics tick.
func (p *Pool) Processed() int64 { return p.processedCount.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}

	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater periodically publishes worker throughput.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	now := time.Now()
	elapsed := now.Sub(p.lastProcessedTime).Seconds()
	count := p.processedCount.Swap(0)
	if elapsed > 0 {
		metrics.UpdateWorkerMessagesPerSecond(float64(count) / elapsed)
	}
	p.lastProcessedTime = now
}

// RecordProcessedMessage increments the processed message count.
func (p *Pool) RecordProcessedMessage() {
	p.processedCount.Add(1)
}

// Shutdown closes the queue, lets workers drain what is left, and waits
// for them up to the pool timeout or ctx, whichever ends first.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
