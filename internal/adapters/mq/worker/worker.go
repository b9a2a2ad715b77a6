// Package worker runs the enrichment workers that turn newly detected
// achievement ids into display-ready records.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/lingoquest/internal/domain/model"
	"github.com/okian/lingoquest/pkg/logger"
	"github.com/okian/lingoquest/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Fetcher loads the full detail record of an achievement.
type Fetcher interface {
	GetAchievement(ctx context.Context, id string) (model.Achievement, error)
}

// Sink receives enriched achievements, in completion order.
type Sink interface {
	// EnqueueWait blocks while the sink is full; false means the record
	// was not accepted.
	EnqueueWait(ctx context.Context, a model.Achievement) bool
}

// Jobs defines how workers receive achievement ids.
type Jobs interface {
	// Receive blocks for the next id; false means no more ids will arrive.
	Receive(ctx context.Context) (string, bool)
}

// Worker enriches achievement ids pulled from the job queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for enriching achievements.
type InMemoryWorker struct {
	jobs    Jobs
	fetcher Fetcher
	sink    Sink
	name    string

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	processed atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(jobs Jobs, fetcher Fetcher, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		jobs:     jobs,
		fetcher:  fetcher,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	// Pull one id at a time so an idle worker always takes the next id.
	recvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.shutdown:
			cancel()
		case <-recvCtx.Done():
		}
	}()

	for {
		id, ok := w.jobs.Receive(recvCtx)
		if !ok {
			return
		}
		// Failures are already logged and counted; the id is dropped.
		_ = w.EnrichAndQueue(recvCtx, id)
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

// EnrichAndQueue fetches the detail record of id and appends it to the sink.
//
// A full sink holds the worker back until the display drains it. A failed
// fetch, or a sink that is closed or purged first, drops the achievement:
// nothing is retried and nothing else is affected.
func (w *InMemoryWorker) EnrichAndQueue(ctx context.Context, id string) error {
	start := time.Now()
	a, err := w.fetcher.GetAchievement(ctx, id)
	metrics.RecordEnrichmentLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		w.failed.Add(1)
		metrics.RecordEnrichmentFailure()
		metrics.RecordErrorByComponent("worker", "fetch_failed")
		if errors.Is(err, context.Canceled) {
			w.logger.Debug(ctx, "enrichment cancelled", logger.String("achievement_id", id))
		} else {
			w.logger.Error(ctx, "achievement detail fetch failed, dropping",
				logger.String("achievement_id", id),
				logger.Error(err),
			)
		}
		return fmt.Errorf("%w: %s: %w", ErrEnrichment, id, err)
	}

	if !w.sink.EnqueueWait(ctx, a) {
		w.failed.Add(1)
		metrics.RecordEnrichmentDropped()
		metrics.RecordErrorByComponent("worker", "pending_rejected")
		w.logger.Warn(ctx, "pending queue refused achievement, dropping",
			logger.String("achievement_id", id),
		)
		return fmt.Errorf("%w: %s", ErrPendingRejected, id)
	}

	w.processed.Add(1)
	w.logger.Debug(ctx, "achievement queued for display",
		logger.String("achievement_id", id),
		logger.String("rarity", string(a.Rarity)),
	)
	return nil
}

// Processed returns how many achievements this worker queued for display.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed returns how many achievements this worker dropped.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	jobs    Jobs

	shutdownOnce sync.Once

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, jobs Jobs, fetcher Fetcher, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		jobs:    jobs,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{}, opts...)
		workerOpts = append(workerOpts, WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(jobs, fetcher, sink, workerOpts...)
	}

	metrics.UpdateWorkerActiveCount(workerCount)

	return pool
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int { return len(p.workers) }

// Run starts all workers and blocks until every one of them has returned.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *InMemoryWorker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	wg.Wait()
	metrics.UpdateWorkerActiveCount(0)
}

// Start starts all workers in the pool without waiting for them.
func (p *Pool) Start(ctx context.Context) {
	go p.Run(ctx)
}

// Stats returns the number of queued and dropped achievements across workers.
func (p *Pool) Stats() (processed, failed int64) {
	for _, w := range p.workers {
		processed += w.Processed()
		failed += w.Failed()
	}
	return processed, failed
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		// Close the job queue to stop new ids
		if closer, ok := p.jobs.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				p.logger.Error(ctx, "error closing job queue", logger.Error(err))
			}
		}
	})

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
