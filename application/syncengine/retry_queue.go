package syncengine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/core/aggregates"
)

// RetryQueue holds local writes that failed and replays them on an interval.
// Failed deltas are merged into one pending delta, later writes winning per key, so a
// replay never overwrites a newer successful write.
type RetryQueue struct {
	engine *Engine
	logger *zap.Logger

	interval   time.Duration
	maxRetries int

	mu       sync.Mutex
	pending  aggregates.Delta
	opts     Options
	attempts int

	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewRetryQueue creates a retry queue replaying through engine
func NewRetryQueue(engine *Engine, interval time.Duration, maxRetries int, logger *zap.Logger) *RetryQueue {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &RetryQueue{
		engine:     engine,
		logger:     logger,
		interval:   interval,
		maxRetries: maxRetries,
		pending:    aggregates.NewDelta(),
	}
}

// Start begins replaying pending writes
func (q *RetryQueue) Start(ctx context.Context) {
	q.stopChan = make(chan struct{})
	q.stoppedChan = make(chan struct{})
	q.logger.Info("Starting retry queue",
		zap.Duration("interval", q.interval),
		zap.Int("maxRetries", q.maxRetries),
	)
	go q.processLoop(ctx)
}

// Stop stops the replay loop. Pending writes are kept.
func (q *RetryQueue) Stop() {
	if q.stopChan == nil {
		return
	}
	close(q.stopChan)
	<-q.stoppedChan
	q.stopChan = nil
}

func (q *RetryQueue) processLoop(ctx context.Context) {
	defer close(q.stoppedChan)

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case <-ticker.C:
			if q.Len() == 0 {
				continue
			}
			// Replays run on the writer so they stay ordered with new deltas
			if err := q.engine.enqueue(job{retry: true}); err != nil {
				return
			}
		}
	}
}

// Add merges a failed delta into the pending delta
func (q *RetryQueue) Add(delta aggregates.Delta, opts Options) {
	q.mu.Lock()
	q.pending = q.pending.Merge(delta)
	q.opts.Local = true
	if opts.RecentlyEdited != "" {
		q.opts.RecentlyEdited = opts.RecentlyEdited
	}
	if opts.SchemaVersion > q.opts.SchemaVersion {
		q.opts.SchemaVersion = opts.SchemaVersion
	}
	depth := q.pending.Len()
	q.mu.Unlock()

	q.engine.metrics.SetRetryQueueDepth(depth)
}

// Forget drops pending keys that a later successful write has superseded
func (q *RetryQueue) Forget(delta aggregates.Delta) {
	q.mu.Lock()
	if q.pending.IsEmpty() {
		q.mu.Unlock()
		return
	}
	for key := range delta.ThoughtIndexUpdates {
		delete(q.pending.ThoughtIndexUpdates, key)
	}
	for key := range delta.ContextIndexUpdates {
		delete(q.pending.ContextIndexUpdates, key)
	}
	if q.pending.IsEmpty() {
		q.attempts = 0
	}
	depth := q.pending.Len()
	q.mu.Unlock()

	q.engine.metrics.SetRetryQueueDepth(depth)
}

// Len returns the number of pending keys
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Attempts returns the number of failed replays of the current pending delta
func (q *RetryQueue) Attempts() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.attempts
}

// flush replays the pending delta. It must only run on the writer goroutine.
func (q *RetryQueue) flush(ctx context.Context) {
	q.mu.Lock()
	if q.pending.IsEmpty() {
		q.mu.Unlock()
		return
	}
	delta, opts := q.pending, q.opts
	q.mu.Unlock()

	err := q.engine.syncLocal(ctx, delta, opts)

	q.mu.Lock()
	defer func() {
		depth := q.pending.Len()
		q.mu.Unlock()
		q.engine.metrics.SetRetryQueueDepth(depth)
	}()

	if err == nil {
		q.logger.Info("Replayed pending writes", zap.Int("keys", delta.Len()))
		q.reset()
		return
	}

	q.attempts++
	q.logger.Warn("Replay of pending writes failed",
		zap.Int("attempt", q.attempts),
		zap.Int("keys", delta.Len()),
		zap.Error(err),
	)
	if q.attempts < q.maxRetries {
		return
	}

	q.logger.Error("Giving up on pending writes",
		zap.Int("attempts", q.attempts),
		zap.Int("keys", delta.Len()),
	)
	q.engine.notifier.Notify(ctx, ports.Notification{
		Severity:  ports.SeverityError,
		Source:    "local",
		Message:   "Some changes could not be saved: " + err.Error(),
		Timestamp: q.engine.clock.Now(),
	})
	q.reset()
}

// discard drops every pending write
func (q *RetryQueue) discard() {
	q.mu.Lock()
	q.reset()
	q.mu.Unlock()
	q.engine.metrics.SetRetryQueueDepth(0)
}

func (q *RetryQueue) reset() {
	q.pending = aggregates.NewDelta()
	q.opts = Options{}
	q.attempts = 0
}
