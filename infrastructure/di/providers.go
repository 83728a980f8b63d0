package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/anmolarora1/em/application/commands/bus"
	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/application/services"
	"github.com/anmolarora1/em/application/syncengine"
	domainconfig "github.com/anmolarora1/em/domain/config"
	"github.com/anmolarora1/em/infrastructure/config"
	"github.com/anmolarora1/em/infrastructure/messaging/eventbridge"
	"github.com/anmolarora1/em/infrastructure/notification"
	"github.com/anmolarora1/em/infrastructure/observability"
	"github.com/anmolarora1/em/infrastructure/persistence/badger"
	"github.com/anmolarora1/em/infrastructure/persistence/dynamodb"
	"github.com/anmolarora1/em/infrastructure/persistence/memory"
	"github.com/anmolarora1/em/infrastructure/persistence/schema"
	"github.com/anmolarora1/em/infrastructure/persistence/yamlfile"
	"github.com/anmolarora1/em/interfaces/http/rest"
	"github.com/anmolarora1/em/interfaces/http/rest/handlers"
	"github.com/anmolarora1/em/pkg/auth"
	pkgerrors "github.com/anmolarora1/em/pkg/errors"
	"github.com/anmolarora1/em/pkg/utils"
)

const serviceName = "em"

// ProvideLogLevel parses the configured level into an atomic level the config watcher can
// change later
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return zap.NewAtomicLevelAt(level), nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// ProvideClock returns the wall clock
func ProvideClock() ports.Clock {
	return utils.SystemClock{}
}

// ProvideDomainConfig selects the graph rules for the environment. Hashing and the
// integrity check can only be switched on from the outside, never off.
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	domain := domainconfig.LoadDomainConfig(cfg.Environment)
	domain.DisableThoughtHashing = domain.DisableThoughtHashing || cfg.DisableThoughtHashing
	domain.DataIntegrityCheck = domain.DataIntegrityCheck || cfg.DataIntegrityCheck
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	return domain, nil
}

// ProvideLocalStore opens the badger store under DataDir, or an in-memory store
func ProvideLocalStore(cfg *config.Config, logger *zap.Logger) (ports.LocalStore, func(), error) {
	if cfg.LocalStore == "memory" {
		return memory.NewLocalStore(), func() {}, nil
	}

	store, err := badger.Open(badger.DefaultConfig(filepath.Join(cfg.DataDir, "thoughts")), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close local store", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideRemoteStore selects the remote document store. It returns nil when remote sync
// is disabled.
func ProvideRemoteStore(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.RemoteStore {
	switch cfg.RemoteStore {
	case "dynamodb":
		return dynamodb.NewRemoteStore(client, cfg.DynamoDBTable, cfg.RemotePollInterval, logger)
	case "memory":
		return memory.NewRemoteStore()
	default:
		return nil
	}
}

// ProvideEventPublisher publishes sync events to EventBridge when the remote store lives
// in AWS
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.RemoteStore != "dynamodb" || cfg.EventBusName == "" {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideSettingsMirror backs the settings mirror with SettingsFile, or memory
func ProvideSettingsMirror(cfg *config.Config) (ports.SettingsMirror, error) {
	if cfg.SettingsFile == "" {
		return memory.NewSettingsMirror(), nil
	}
	mirror, err := yamlfile.Open(cfg.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings mirror: %w", err)
	}
	return mirror, nil
}

// ProvideNotifier creates the notification feed
func ProvideNotifier(logger *zap.Logger) *notification.Notifier {
	return notification.NewNotifier(50, logger)
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector(serviceName)
}

// ProvideSyncMetrics exposes the collector to the sync engine when metrics are enabled
func ProvideSyncMetrics(cfg *config.Config, collector *observability.Collector) syncengine.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return collector
}

// ProvideTracing installs the OTLP tracer provider when tracing is enabled
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shut down tracer provider", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideEngineConfig derives the sync engine settings. A random client id is used unless
// CLIENT_ID is set.
func ProvideEngineConfig(cfg *config.Config, domain *domainconfig.DomainConfig) syncengine.Config {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	engineCfg := syncengine.DefaultConfig(clientID)
	engineCfg.DataIntegrityCheck = domain.DataIntegrityCheck
	engineCfg.MirroredSettings = domain.MirroredSettings
	engineCfg.SchemaVersion = domain.SchemaVersion
	if cfg.RetryInterval > 0 {
		engineCfg.RetryInterval = cfg.RetryInterval
	}
	if cfg.RetryMaxAttempts > 0 {
		engineCfg.MaxRetries = cfg.RetryMaxAttempts
	}
	return engineCfg
}

// ProvideEngine creates the sync engine
func ProvideEngine(
	engineCfg syncengine.Config,
	local ports.LocalStore,
	remote ports.RemoteStore,
	mirror ports.SettingsMirror,
	publisher ports.EventPublisher,
	notifier *notification.Notifier,
	clock ports.Clock,
	metrics syncengine.Metrics,
	logger *zap.Logger,
) *syncengine.Engine {
	return syncengine.NewEngine(engineCfg, local, remote, mirror, publisher, notifier, clock, metrics, logger)
}

// ProvideSchemaMigrator returns the local store schema migrations
func ProvideSchemaMigrator() ports.SchemaMigrator {
	return schema.NewDefaultSchemaEvolution()
}

// ProvideCommandMiddlewares assembles the command bus pipeline, outermost first
func ProvideCommandMiddlewares(
	cfg *config.Config,
	collector *observability.Collector,
	tp *observability.TracerProvider,
	logger *zap.Logger,
) []bus.Middleware {
	middlewares := []bus.Middleware{
		bus.LoggingMiddleware(logger),
		bus.ValidationMiddleware(utils.Validator()),
	}
	if cfg.EnableMetrics {
		middlewares = append(middlewares, bus.MetricsMiddleware(collector))
	}
	if tp != nil {
		middlewares = append(middlewares, bus.TracingMiddleware(tp.Tracer()))
	}
	return middlewares
}

// ProvideThoughtService creates the thought service
func ProvideThoughtService(
	domain *domainconfig.DomainConfig,
	engine *syncengine.Engine,
	local ports.LocalStore,
	mirror ports.SettingsMirror,
	migrator ports.SchemaMigrator,
	clock ports.Clock,
	middlewares []bus.Middleware,
	logger *zap.Logger,
) *services.ThoughtService {
	return services.NewThoughtService(domain, engine, local, mirror, migrator, clock, logger, middlewares...)
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
	}
}

// ProvideJWTValidator returns nil when no JWT secret is configured, which leaves the API
// unauthenticated. Config validation forbids that in production.
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(jwtConfig(cfg))
}

// ProvideJWTGenerator signs session tokens outside production
func ProvideJWTGenerator(cfg *config.Config) (*auth.JWTGenerator, error) {
	if cfg.JWTSecret == "" || cfg.IsProduction() {
		return nil, nil
	}
	return auth.NewJWTGenerator(jwtConfig(cfg))
}

// ProvideErrorHandler creates the HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideThoughtHandler creates the thought handler
func ProvideThoughtHandler(service *services.ThoughtService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *handlers.ThoughtHandler {
	return handlers.NewThoughtHandler(service, errorHandler, logger)
}

// ProvideSessionHandler creates the session handler
func ProvideSessionHandler(
	service *services.ThoughtService,
	generator *auth.JWTGenerator,
	notifier *notification.Notifier,
	engineCfg syncengine.Config,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *handlers.SessionHandler {
	var issuer handlers.TokenIssuer
	if generator != nil {
		issuer = generator
	}
	return handlers.NewSessionHandler(service, issuer, notifier, engineCfg.ClientID, errorHandler, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	thoughts *handlers.ThoughtHandler,
	sessions *handlers.SessionHandler,
	service *services.ThoughtService,
	collector *observability.Collector,
	validator *auth.JWTValidator,
	logger *zap.Logger,
) *rest.Router {
	opts := rest.Options{EnableCORS: cfg.EnableCORS}
	if cfg.EnableMetrics {
		opts.Metrics = collector
	}
	if validator != nil {
		opts.Validator = validator
	}
	return rest.NewRouter(thoughts, sessions, service, opts, logger)
}

// ProvideConfigWatcher hot-reloads the log level and the integrity check from the config
// file. It returns nil when no config file is in use.
func ProvideConfigWatcher(
	cfg *config.Config,
	level zap.AtomicLevel,
	engine *syncengine.Engine,
	logger *zap.Logger,
) (*config.Watcher, error) {
	if cfg.ConfigFile == "" {
		return nil, nil
	}
	watcher, err := config.NewWatcher(cfg.ConfigFile, cfg.Dynamic(), logger)
	if err != nil {
		return nil, err
	}
	watcher.OnChange(func(dynamic config.DynamicConfig) {
		if dynamic.LogLevel != "" {
			if parsed, err := zapcore.ParseLevel(dynamic.LogLevel); err == nil {
				level.SetLevel(parsed)
			}
		}
		// production always repairs remote payloads
		integrity := dynamic.DataIntegrityCheck || cfg.IsProduction()
		engine.SetDataIntegrityCheck(integrity)
		logger.Info("Applied configuration change",
			zap.String("logLevel", level.String()),
			zap.Bool("dataIntegrityCheck", integrity),
		)
	})
	return watcher, nil
}
