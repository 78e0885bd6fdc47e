package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBatchSize is the maximum number of requests per dispatch.
	DefaultBatchSize = 32
	// DefaultDebounce is the window in which concurrent single-text requests
	// accumulate before the first dispatch.
	DefaultDebounce = 50 * time.Millisecond
	// DefaultDrainDelay is the pause before dispatching requests still queued
	// after a dispatch completes.
	DefaultDrainDelay = 100 * time.Millisecond
)

type embedResult struct {
	vector []float32
	err    error
}

// pendingRequest is a queued text awaiting batch dispatch. Its result channel
// is buffered and written exactly once.
type pendingRequest struct {
	text   string
	result chan embedResult
}

// Coalescer merges near-simultaneous single-text embedding requests into one
// multi-text provider call and fans the results back out. A single worker
// goroutine owns the pending queue; there is no shared mutable state.
type Coalescer struct {
	provider   Provider
	cache      *Cache
	retry      RetryPolicy
	batchSize  int
	debounce   time.Duration
	drainDelay time.Duration
	logger     *zap.Logger

	requests chan *pendingRequest
	done     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

// CoalescerConfig configures a Coalescer. Zero values use the defaults.
type CoalescerConfig struct {
	BatchSize  int
	Debounce   time.Duration
	DrainDelay time.Duration
	Retry      RetryPolicy
	Logger     *zap.Logger
}

// NewCoalescer creates a coalescer and starts its worker goroutine.
// Successful vectors are written to cache (may be nil) under the provider's
// cache key before requests are resolved.
func NewCoalescer(provider Provider, cache *Cache, cfg CoalescerConfig) *Coalescer {
	c := &Coalescer{
		provider:   provider,
		cache:      cache,
		retry:      cfg.Retry,
		batchSize:  cfg.BatchSize,
		debounce:   cfg.Debounce,
		drainDelay: cfg.DrainDelay,
		logger:     cfg.Logger,
		requests:   make(chan *pendingRequest, 1024),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}
	if c.drainDelay <= 0 {
		c.drainDelay = DefaultDrainDelay
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	go c.run()
	return c
}

// Embed queues text and blocks until the owning worker resolves or rejects it,
// or ctx is cancelled.
func (c *Coalescer) Embed(ctx context.Context, text string) ([]float32, error) {
	req := &pendingRequest{text: text, result: make(chan embedResult, 1)}
	select {
	case c.requests <- req:
	case <-c.done:
		return nil, ErrCoalescerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.result:
		return res.vector, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stopped:
		// The worker exited; it may still have resolved this request.
		select {
		case res := <-req.result:
			return res.vector, res.err
		default:
			return nil, ErrCoalescerClosed
		}
	}
}

// Close stops the worker. Requests still queued are rejected with
// ErrCoalescerClosed.
func (c *Coalescer) Close() {
	c.stopOnce.Do(func() { close(c.done) })
	<-c.stopped
}

// run is the worker loop: collect during the debounce window, dispatch up to
// batchSize from the head of the queue, then reschedule after drainDelay until
// the queue is empty.
func (c *Coalescer) run() {
	defer close(c.stopped)
	var (
		queue  []*pendingRequest
		timerC <-chan time.Time
	)
	for {
		select {
		case <-c.done:
			for _, req := range queue {
				req.result <- embedResult{err: ErrCoalescerClosed}
			}
			// Drain anything that raced with shutdown.
			for {
				select {
				case req := <-c.requests:
					req.result <- embedResult{err: ErrCoalescerClosed}
				default:
					return
				}
			}
		case req := <-c.requests:
			queue = append(queue, req)
			if timerC == nil {
				timerC = time.After(c.debounce)
			}
		case <-timerC:
			timerC = nil
			n := c.batchSize
			if n > len(queue) {
				n = len(queue)
			}
			batch := queue[:n:n]
			queue = queue[n:]
			c.dispatch(batch)
			if len(queue) > 0 {
				timerC = time.After(c.drainDelay)
			}
		}
	}
}

// dispatch submits one batch through the retry policy and resolves each
// request with the vector at its position. A failed batch rejects every
// member with the same error; no partial success is invented.
func (c *Coalescer) dispatch(batch []*pendingRequest) {
	if len(batch) == 0 {
		return
	}
	texts := make([]string, len(batch))
	for i, req := range batch {
		texts[i] = req.text
	}

	var vectors [][]float32
	err := c.retry.Do(context.Background(), func(ctx context.Context) error {
		vs, err := c.provider.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vs) != len(texts) {
			return fmt.Errorf("%w: %d vectors for %d texts", ErrBatchLengthMismatch, len(vs), len(texts))
		}
		vectors = vs
		return nil
	})
	if err != nil {
		c.logger.Warn("batch dispatch failed",
			zap.Int("batch_size", len(batch)),
			zap.String("provider", c.provider.Name()),
			zap.Error(err))
		for _, req := range batch {
			req.result <- embedResult{err: err}
		}
		return
	}

	for i, req := range batch {
		if c.cache != nil {
			c.cache.Set(CacheKey(c.provider.Name(), c.provider.Model(), req.text), vectors[i])
		}
		req.result <- embedResult{vector: vectors[i]}
	}
}
