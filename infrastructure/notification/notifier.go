// Package notification logs user-visible notifications and keeps the most recent ones so the
// API can surface an error banner.
package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/ports"
)

// DefaultCapacity is the number of notifications kept
const DefaultCapacity = 50

// Notifier implements ports.Notifier with a fixed-size ring buffer
type Notifier struct {
	logger *zap.Logger

	mu    sync.Mutex
	ring  []ports.Notification
	next  int
	count int
}

// NewNotifier creates a notifier keeping the last capacity notifications
func NewNotifier(capacity int, logger *zap.Logger) *Notifier {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Notifier{
		logger: logger.Named("notify"),
		ring:   make([]ports.Notification, capacity),
	}
}

// Notify implements ports.Notifier
func (n *Notifier) Notify(ctx context.Context, notification ports.Notification) {
	fields := []zap.Field{
		zap.String("source", notification.Source),
		zap.String("message", notification.Message),
	}
	if notification.Severity == ports.SeverityError {
		n.logger.Error("User notification", fields...)
	} else {
		n.logger.Info("User notification", fields...)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.ring[n.next] = notification
	n.next = (n.next + 1) % len(n.ring)
	if n.count < len(n.ring) {
		n.count++
	}
}

// Recent returns the kept notifications, newest first
func (n *Notifier) Recent() []ports.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]ports.Notification, 0, n.count)
	for i := 1; i <= n.count; i++ {
		idx := (n.next - i + len(n.ring)) % len(n.ring)
		out = append(out, n.ring[idx])
	}
	return out
}

// Dismiss drops every kept notification
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next, n.count = 0, 0
	for i := range n.ring {
		n.ring[i] = ports.Notification{}
	}
}
