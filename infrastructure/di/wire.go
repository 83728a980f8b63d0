//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/anmolarora1/em/infrastructure/config"
)

// StorageSet provides the local, remote and settings stores
var StorageSet = wire.NewSet(
	ProvideLocalStore,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideRemoteStore,
	ProvideEventPublisher,
	ProvideSettingsMirror,
	ProvideSchemaMigrator,
)

// ObservabilitySet provides logging, metrics and tracing
var ObservabilitySet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideCollector,
	ProvideSyncMetrics,
	ProvideTracing,
)

// HTTPSet provides authentication, handlers and the router
var HTTPSet = wire.NewSet(
	ProvideJWTValidator,
	ProvideJWTGenerator,
	ProvideErrorHandler,
	ProvideThoughtHandler,
	ProvideSessionHandler,
	ProvideRouter,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	StorageSet,
	ObservabilitySet,
	HTTPSet,
	ProvideClock,
	ProvideDomainConfig,
	ProvideNotifier,
	ProvideEngineConfig,
	ProvideEngine,
	ProvideCommandMiddlewares,
	ProvideThoughtService,
	ProvideConfigWatcher,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
