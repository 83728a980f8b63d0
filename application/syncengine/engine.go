// Package syncengine persists graph deltas to the local store, pushes them to the remote
// store while a session is authenticated, and merges remote snapshots back into the graph.
//
// All writes go through one worker goroutine, so deltas reach both stores in the order
// they were dispatched. Within one delta the thought, context and metadata writes run
// concurrently and are joined before the next delta starts.
package syncengine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/events"
)

// ErrEngineStopped is returned when a delta is submitted to a stopped engine
var ErrEngineStopped = errors.New("sync engine is not running")

// Config holds the engine settings
type Config struct {
	ClientID           string
	DataIntegrityCheck bool
	MirroredSettings   []string
	SchemaVersion      int
	RetryInterval      time.Duration
	MaxRetries         int
	QueueSize          int
}

// DefaultConfig returns the engine defaults
func DefaultConfig(clientID string) Config {
	return Config{
		ClientID:         clientID,
		MirroredSettings: []string{"Font Size", "Tutorial", "Last Updated", "Theme"},
		RetryInterval:    5 * time.Second,
		MaxRetries:       5,
		QueueSize:        256,
	}
}

// Options select the targets of one sync
type Options struct {
	Local          bool
	Remote         bool
	RecentlyEdited string
	SchemaVersion  int
}

// LocalAndRemote persists locally and pushes when authenticated
func LocalAndRemote() Options {
	return Options{Local: true, Remote: true}
}

// LocalOnly persists without pushing, used for merged remote state
func LocalOnly() Options {
	return Options{Local: true}
}

// Metrics receives sync observations
type Metrics interface {
	RecordSync(target, outcome string, duration time.Duration, keys int)
	RecordEchoSuppressed()
	RecordRemoteMerge(applied int)
	SetRetryQueueDepth(keys int)
}

type job struct {
	delta   aggregates.Delta
	opts    Options
	retry   bool
	barrier bool
	run     func(context.Context) error
	done    chan error
}

// Engine is the serializing gateway in front of the local and remote stores
type Engine struct {
	cfg       Config
	local     ports.LocalStore
	remote    ports.RemoteStore
	mirror    ports.SettingsMirror
	publisher ports.EventPublisher
	notifier  ports.Notifier
	clock     ports.Clock
	metrics   Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	breaker   *gobreaker.CircuitBreaker
	retry     *RetryQueue

	// integrity is the deployment flag (env, config file); integritySetting mirrors the
	// user's "Data Integrity Check" setting. Either one turns repair on.
	integrity        atomic.Bool
	integritySetting atomic.Bool

	jobs    chan job
	running bool
	runMu   sync.RWMutex
	stopped chan struct{}

	sessionMu    sync.RWMutex
	userID       string
	subscription ports.Subscription
}

// NewEngine creates an engine. remote and publisher may be nil.
func NewEngine(
	cfg Config,
	local ports.LocalStore,
	remote ports.RemoteStore,
	mirror ports.SettingsMirror,
	publisher ports.EventPublisher,
	notifier ports.Notifier,
	clock ports.Clock,
	metrics Metrics,
	logger *zap.Logger,
) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	e := &Engine{
		cfg:       cfg,
		local:     local,
		remote:    remote,
		mirror:    mirror,
		publisher: publisher,
		notifier:  notifier,
		clock:     clock,
		metrics:   metrics,
		tracer:    otel.Tracer("github.com/anmolarora1/em/application/syncengine"),
		logger:    logger.Named("sync"),
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-store",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	e.integrity.Store(cfg.DataIntegrityCheck)
	e.retry = NewRetryQueue(e, cfg.RetryInterval, cfg.MaxRetries, e.logger)
	return e
}

// SetDataIntegrityCheck toggles repair of remote payloads. Safe to call while running.
func (e *Engine) SetDataIntegrityCheck(enabled bool) {
	e.integrity.Store(enabled)
}

// SetDataIntegritySetting records the value of the user's Data Integrity Check setting
func (e *Engine) SetDataIntegritySetting(enabled bool) {
	e.integritySetting.Store(enabled)
}

// DataIntegrityCheck reports whether remote payloads are repaired before a push
func (e *Engine) DataIntegrityCheck() bool {
	return e.integrity.Load() || e.integritySetting.Load()
}

// ClientID identifies this process in remote writes
func (e *Engine) ClientID() string {
	return e.cfg.ClientID
}

// RetryQueue exposes the queue of failed local writes
func (e *Engine) RetryQueue() *RetryQueue {
	return e.retry
}

// Start launches the writer and the retry loop
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.jobs = make(chan job, e.cfg.QueueSize)
	e.stopped = make(chan struct{})

	e.logger.Info("Starting sync engine",
		zap.String("clientID", e.cfg.ClientID),
		zap.Bool("remote", e.remote != nil),
	)
	go e.writeLoop(context.WithoutCancel(ctx), e.jobs, e.stopped)
	e.retry.Start(ctx)
}

// Stop drains queued writes and stops the engine. A stopped engine can be started again.
func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	e.running = false
	close(e.jobs)
	stopped := e.stopped
	e.runMu.Unlock()

	e.retry.Stop()
	<-stopped
	e.logger.Info("Sync engine stopped")
}

// Sync queues delta for persistence and returns without waiting. Failures are reported
// to the notifier; failed local writes are retried.
func (e *Engine) Sync(ctx context.Context, delta aggregates.Delta, opts Options) error {
	if delta.IsEmpty() && opts.SchemaVersion == 0 {
		return nil
	}
	return e.enqueue(job{delta: delta, opts: opts})
}

// SyncNow persists delta and waits for the result
func (e *Engine) SyncNow(ctx context.Context, delta aggregates.Delta, opts Options) error {
	done := make(chan error, 1)
	if err := e.enqueue(job{delta: delta, opts: opts, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every delta queued before the call has been written
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan error, 1)
	if err := e.enqueue(job{barrier: true, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// exec runs fn on the writer after every queued delta and waits for it
func (e *Engine) exec(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	if err := e.enqueue(job{run: fn, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) enqueue(j job) error {
	e.runMu.RLock()
	defer e.runMu.RUnlock()
	if !e.running {
		return ErrEngineStopped
	}
	e.jobs <- j
	return nil
}

func (e *Engine) writeLoop(ctx context.Context, jobs <-chan job, stopped chan<- struct{}) {
	defer close(stopped)
	for j := range jobs {
		var err error
		switch {
		case j.barrier:
		case j.run != nil:
			err = j.run(ctx)
		case j.retry:
			e.retry.flush(ctx)
		default:
			err = e.process(ctx, j.delta, j.opts)
		}
		if j.done != nil {
			j.done <- err
		}
	}
}

// process writes one delta to every selected target
func (e *Engine) process(ctx context.Context, delta aggregates.Delta, opts Options) error {
	ctx, span := e.tracer.Start(ctx, "sync.delta")
	defer span.End()

	var errs []error
	if opts.Local {
		if err := e.syncLocal(ctx, delta, opts); err != nil {
			e.retry.Add(delta, opts)
			e.reportFailure(ctx, "local", err)
			errs = append(errs, err)
		} else {
			e.retry.Forget(delta)
		}
	}

	if opts.Remote {
		if userID, ok := e.session(); ok && e.remote != nil {
			if err := e.syncRemote(ctx, userID, delta, opts); err != nil {
				e.reportFailure(ctx, "remote", err)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) reportFailure(ctx context.Context, target string, err error) {
	now := e.clock.Now()
	e.logger.Error("Sync failed", zap.String("target", target), zap.Error(err))
	e.notifier.Notify(ctx, ports.Notification{
		Severity:  ports.SeverityError,
		Source:    target,
		Message:   err.Error(),
		Timestamp: now,
	})
	userID, _ := e.session()
	e.publish(ctx, events.NewThoughtsSyncFailed(userID, target, err.Error(), now))
}

func (e *Engine) publish(ctx context.Context, event events.DomainEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
}

// NopMetrics discards every observation
type NopMetrics struct{}

func (NopMetrics) RecordSync(string, string, time.Duration, int) {}
func (NopMetrics) RecordEchoSuppressed()                         {}
func (NopMetrics) RecordRemoteMerge(int)                         {}
func (NopMetrics) SetRetryQueueDepth(int)                        {}
