package syncengine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/config"
	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/events"
)

var (
	// ErrAlreadyLoggedIn is returned by Login while a session is active
	ErrAlreadyLoggedIn = errors.New("a session is already active")

	// ErrRemoteDisabled is returned by Login when no remote store is configured
	ErrRemoteDisabled = errors.New("remote store is not configured")
)

// StateOwner is the holder of the in-memory graph the engine merges remote state into
type StateOwner interface {
	// Snapshot returns the full graph as a delta
	Snapshot() aggregates.Delta

	// WaitLoaded blocks until the local store has been read into the graph
	WaitLoaded(ctx context.Context) error

	// ApplyRemote merges a remote document into the graph and returns the number of
	// records that won
	ApplyRemote(ctx context.Context, snapshot *ports.RemoteSnapshot) (int, error)
}

func (e *Engine) session() (string, bool) {
	e.sessionMu.RLock()
	defer e.sessionMu.RUnlock()
	return e.userID, e.userID != ""
}

// UserID returns the authenticated user, or "" when logged out
func (e *Engine) UserID() string {
	userID, _ := e.session()
	return userID
}

// Login starts a remote session. The current remote document is reconciled with the
// local graph, then remote changes from other clients are merged as they arrive.
func (e *Engine) Login(ctx context.Context, userID string, owner StateOwner) error {
	if e.remote == nil {
		return ErrRemoteDisabled
	}

	e.sessionMu.Lock()
	if e.userID != "" {
		e.sessionMu.Unlock()
		return ErrAlreadyLoggedIn
	}
	e.userID = userID
	e.sessionMu.Unlock()

	logger := e.logger.With(zap.String("userID", userID))
	logger.Info("Starting remote session")

	snapshot, err := e.remote.Get(ctx, userID)
	if err != nil {
		e.endSession()
		return fmt.Errorf("failed to read remote document: %w", err)
	}
	if err := e.reconcile(ctx, userID, owner, snapshot); err != nil {
		e.endSession()
		return err
	}

	sub, err := e.remote.Subscribe(ctx, userID, func(snapshot *ports.RemoteSnapshot) {
		e.onSnapshot(context.WithoutCancel(ctx), userID, owner, snapshot)
	})
	if err != nil {
		e.endSession()
		return fmt.Errorf("failed to subscribe to remote document: %w", err)
	}

	e.sessionMu.Lock()
	e.subscription = sub
	e.sessionMu.Unlock()
	return nil
}

// reconcile handles the first remote document of a session. An empty remote receives
// the whole local graph; otherwise the remote is merged into the loaded local graph.
// lastClientId is not checked here: after a logout the remote holds the only copy.
func (e *Engine) reconcile(ctx context.Context, userID string, owner StateOwner, snapshot *ports.RemoteSnapshot) error {
	if !snapshot.HasThoughts() {
		e.logger.Info("Remote document is empty, pushing local state", zap.String("userID", userID))
		return e.SyncNow(ctx, owner.Snapshot(), Options{Remote: true, SchemaVersion: config.SchemaLatest})
	}
	return e.merge(ctx, userID, owner, snapshot)
}

// onSnapshot merges a pushed remote document unless this client wrote it
func (e *Engine) onSnapshot(ctx context.Context, userID string, owner StateOwner, snapshot *ports.RemoteSnapshot) {
	if current, ok := e.session(); !ok || current != userID {
		return
	}
	if snapshot == nil {
		return
	}
	if snapshot.LastClientID == e.cfg.ClientID {
		e.metrics.RecordEchoSuppressed()
		e.logger.Debug("Ignoring own remote write")
		return
	}
	if !snapshot.HasThoughts() {
		// Another client cleared the document; the local graph is kept until logout
		return
	}
	if err := e.merge(ctx, userID, owner, snapshot); err != nil {
		e.logger.Error("Failed to merge remote document", zap.String("userID", userID), zap.Error(err))
	}
}

func (e *Engine) merge(ctx context.Context, userID string, owner StateOwner, snapshot *ports.RemoteSnapshot) error {
	if err := owner.WaitLoaded(ctx); err != nil {
		return fmt.Errorf("failed waiting for local state: %w", err)
	}
	applied, err := owner.ApplyRemote(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("failed to merge remote document: %w", err)
	}
	e.metrics.RecordRemoteMerge(applied)
	e.logger.Info("Merged remote document",
		zap.String("userID", userID),
		zap.String("origin", snapshot.LastClientID),
		zap.Int("applied", applied),
	)
	e.publish(ctx, events.NewRemoteMerged(userID, snapshot.LastClientID, applied, e.clock.Now()))
	return nil
}

func (e *Engine) endSession() ports.Subscription {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	sub := e.subscription
	e.userID = ""
	e.subscription = nil
	return sub
}

// Logout detaches the remote listener, waits for queued writes and clears the local store
// and the settings mirror. Pending retries are discarded.
func (e *Engine) Logout(ctx context.Context) error {
	if sub := e.endSession(); sub != nil {
		sub.Unsubscribe()
	}
	return e.exec(ctx, func(ctx context.Context) error {
		e.retry.discard()
		if err := e.local.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear local store: %w", err)
		}
		if e.mirror != nil {
			if err := e.mirror.Clear(); err != nil {
				return fmt.Errorf("failed to clear settings mirror: %w", err)
			}
		}
		e.logger.Info("Cleared local state")
		return nil
	})
}
