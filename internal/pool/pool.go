// Package pool implements the worker pool that sits between the frame
// producer (an origin) and the analyzer: the producer enqueues frames, a
// configurable number of worker goroutines dequeue, decode, and run every
// registered callback against each one.
package pool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/gopacket/layers"

	"github.com/iGTsan/flow-inspector/internal/decoder"
	"github.com/iGTsan/flow-inspector/internal/frame"
	"github.com/iGTsan/flow-inspector/internal/metrics"
)

// Callback observes a decoded frame. The default callback registered by the
// supervisor is the analyzer's Detect method; additional callbacks (for
// example, metrics-only consumers) may be registered before [Pool.Start].
type Callback func(f *frame.Frame, parsed decoder.ParsedFrame)

// DefaultQueueSize is used when Config.QueueSize is left at zero.
const DefaultQueueSize = 1024

// Config configures a [Pool].
type Config struct {
	Logger *slog.Logger

	// Workers is the number of worker goroutines. Must be at least 1.
	Workers int

	// QueueSize bounds the producer-to-worker channel. 0 means
	// [DefaultQueueSize].
	QueueSize int

	// LinkType is queried for every dequeued frame and its result passed to
	// decoder.Parse. It is a function rather than a
	// fixed value because an offline file reader only learns its real link
	// type after reading its own file header, which happens after the pool
	// is constructed but before any frame reaches a worker.
	LinkType func() layers.LinkType

	Metrics *metrics.Metrics
}

// Pool is the bounded producer/worker frame pipeline. The queue is a single
// channel shared by all workers: ordering across workers is not preserved,
// which is acceptable because every rule evaluation is self-contained (see
// internal/analyzer).
type Pool struct {
	logger   *slog.Logger
	linkType func() layers.LinkType
	metrics  *metrics.Metrics
	workers  int

	queue chan *frame.Frame
	wg    sync.WaitGroup

	mu        sync.Mutex
	callbacks []Callback
	started   bool
}

// New returns a Pool. Register callbacks with [Pool.AddCallback] before
// calling [Pool.Start]; Start takes a copy of the callback list, so callbacks
// added afterward are never invoked.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Pool{
		logger:   cfg.Logger,
		linkType: cfg.LinkType,
		metrics:  cfg.Metrics,
		workers:  workers,
		queue:    make(chan *frame.Frame, queueSize),
	}
}

// AddCallback registers cb to run for every decoded frame, in registration
// order. Must be called before [Pool.Start].
func (p *Pool) AddCallback(cb Callback) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.callbacks = append(p.callbacks, cb)
}

// Enqueue hands f to the pool. It blocks if the queue is full; callers that
// need drop-on-full semantics should select on a context or use
// [Pool.TryEnqueue].
func (p *Pool) Enqueue(ctx context.Context, f *frame.Frame) {
	select {
	case p.queue <- f:
	case <-ctx.Done():
	}

	if p.metrics != nil {
		p.metrics.QueueDepth.Set(float64(len(p.queue)))
	}
}

// TryEnqueue hands f to the pool without blocking. It reports whether the
// frame was accepted; a false result means the queue was full and the
// caller should count the frame as dropped.
func (p *Pool) TryEnqueue(f *frame.Frame) bool {
	select {
	case p.queue <- f:
		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(len(p.queue)))
		}

		return true
	default:
		if p.metrics != nil {
			p.metrics.PacketsDropped.Inc()
		}

		return false
	}
}

// Start launches the configured number of worker goroutines.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()

		return nil
	}
	p.started = true
	cbs := append([]Callback(nil), p.callbacks...)
	p.mu.Unlock()

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.runWorker(cbs)
	}

	return nil
}

func (p *Pool) runWorker(cbs []Callback) {
	defer p.wg.Done()

	for f := range p.queue {
		parsed, err := decoder.Parse(f.Bytes, p.linkType())
		if err != nil {
			p.logger.Warn("decoding frame", "error", err)

			continue
		}

		for _, cb := range cbs {
			cb(f, parsed)
		}
	}
}

// Shutdown closes the queue and blocks until every worker has drained it and
// exited. Workers process every frame already enqueued before returning;
// new Enqueue/TryEnqueue calls after Shutdown will panic, matching close-
// then-send-panics channel semantics, so the caller must stop its producer
// first.
func (p *Pool) Shutdown(_ context.Context) error {
	close(p.queue)
	p.wg.Wait()

	return nil
}
