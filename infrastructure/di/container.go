package di

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/application/services"
	"github.com/anmolarora1/em/application/syncengine"
	"github.com/anmolarora1/em/infrastructure/config"
	"github.com/anmolarora1/em/infrastructure/notification"
	"github.com/anmolarora1/em/infrastructure/observability"
	"github.com/anmolarora1/em/interfaces/http/rest"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	LogLevel  zap.AtomicLevel
	Local     ports.LocalStore
	Remote    ports.RemoteStore
	Engine    *syncengine.Engine
	Thoughts  *services.ThoughtService
	Notifier  *notification.Notifier
	Collector *observability.Collector
	Router    *rest.Router
	Watcher   *config.Watcher
}

// Start launches the sync engine, loads the local store into the graph and starts the
// config watcher
func (c *Container) Start(ctx context.Context) error {
	c.Engine.Start(ctx)
	if err := c.Thoughts.Load(ctx); err != nil {
		return fmt.Errorf("failed to load thoughts: %w", err)
	}
	if c.Watcher != nil {
		c.Watcher.Start()
	}
	return nil
}

// Close waits for queued writes and stops the engine. The cleanup returned by
// InitializeContainer releases the stores afterwards.
func (c *Container) Close(ctx context.Context) error {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	err := c.Thoughts.Close(ctx)
	c.Engine.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
