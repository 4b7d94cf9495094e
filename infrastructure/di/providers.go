package di

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"path-backend/application/ports"
	domainconfig "path-backend/domain/config"
	"path-backend/infrastructure/blob"
	"path-backend/infrastructure/cache"
	"path-backend/infrastructure/config"
	"path-backend/infrastructure/messaging"
	"path-backend/infrastructure/messaging/eventbridge"
	"path-backend/infrastructure/observability"
	"path-backend/infrastructure/persistence/dynamodb"
	"path-backend/infrastructure/persistence/memory"
	"path-backend/infrastructure/persistence/sqlite"
	"path-backend/interfaces/http/rest"
	"path-backend/interfaces/http/rest/middleware"
	"path-backend/pkg/auth"
	pkgerrors "path-backend/pkg/errors"
	tracing "path-backend/pkg/observability"
)

const developmentJWTSecret = "development-secret-change-in-production"

// PointRegistry is a point graph that can register points
type PointRegistry interface {
	ports.PointGraph
	AddPoint(ctx context.Context, pointID string) error
}

// Backend groups the storage collaborators of the configured storage engine
type Backend struct {
	Name  string
	Store ports.Store
	Graph PointRegistry
	Blobs ports.BlobStore
	Ping  func(ctx context.Context) error
}

// memoryPoints adapts the in-process graph to PointRegistry
type memoryPoints struct {
	*memory.PointGraph
}

func (p memoryPoints) AddPoint(ctx context.Context, pointID string) error {
	p.PointGraph.AddPoint(pointID)
	return nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// ProvideMemoPolicy returns the memo rules for the environment
func ProvideMemoPolicy(cfg *config.Config) *domainconfig.MemoPolicy {
	return cfg.MemoPolicy()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client. DYNAMODB_ENDPOINT points
// it at DynamoDB Local.
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideBackend opens the configured storage engine and registers the seed
// points
func ProvideBackend(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (*Backend, func(), error) {
	var (
		backend *Backend
		cleanup = func() {}
	)

	switch cfg.StorageBackend {
	case config.BackendDynamoDB:
		client := ProvideDynamoDBClient(awsCfg, cfg)
		backend = &Backend{
			Store: dynamodb.NewStore(client, cfg.DynamoDBTable, logger),
			Graph: dynamodb.NewPointGraph(client, cfg.DynamoDBTable, logger),
			Blobs: dynamodb.NewBlobs(client, cfg.DynamoDBTable),
			Ping:  func(ctx context.Context) error {
				_, err := client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(cfg.DynamoDBTable)})
				return err
			},
		}

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		backend = &Backend{
			Store: sqlite.NewStore(db, logger),
			Graph: sqlite.NewPointGraph(db),
			Blobs: sqlite.NewBlobs(db),
			Ping:  db.PingContext,
		}
		cleanup = closeDB(db, logger)

	case config.BackendMemory:
		backend = &Backend{
			Store: memory.NewStore(),
			Graph: memoryPoints{memory.NewPointGraph()},
			Blobs: blob.NewMemory(),
			Ping:  func(context.Context) error { return nil },
		}

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	backend.Name = cfg.StorageBackend

	for _, pointID := range cfg.SeedPoints {
		if err := backend.Graph.AddPoint(ctx, pointID); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("register point %s: %w", pointID, err)
		}
	}

	logger.Info("Storage backend ready",
		zap.String("backend", backend.Name),
		zap.Int("seed_points", len(cfg.SeedPoints)),
	)
	return backend, cleanup, nil
}

func closeDB(db *sql.DB, logger *zap.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", zap.Error(err))
		}
	}
}

// ProvideStore exposes the backend store
func ProvideStore(backend *Backend) ports.Store {
	return backend.Store
}

// ProvidePointGraph exposes the backend point graph
func ProvidePointGraph(backend *Backend) ports.PointGraph {
	return backend.Graph
}

// ProvideBlobBreaker wraps the backend blob store with optional zstd
// compression and a circuit breaker
func ProvideBlobBreaker(cfg *config.Config, backend *Backend, logger *zap.Logger) (*blob.Breaker, func(), error) {
	next := backend.Blobs
	cleanup := func() {}

	if cfg.CompressBlobs {
		compressed, err := blob.NewCompressed(next)
		if err != nil {
			return nil, nil, err
		}
		next = compressed
		cleanup = compressed.Close
	}

	return blob.NewBreaker(next, blob.DefaultBreakerConfig(), logger), cleanup, nil
}

// ProvideBlobStore exposes the guarded blob store
func ProvideBlobStore(breaker *blob.Breaker) ports.BlobStore {
	return breaker
}

// ProvideRedisClient connects to Redis when REDIS_ADDR is set; otherwise it
// returns nil and in-process fallbacks are used
func ProvideRedisClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close redis client", zap.Error(err))
		}
	}, nil
}

// ProvideCache creates the content cache
func ProvideCache(client *redis.Client, logger *zap.Logger) (ports.Cache, func()) {
	if client != nil {
		return cache.NewRedisCache(client, "path:content:", logger), func() {}
	}
	memCache := cache.NewInMemoryCache(time.Minute)
	return memCache, memCache.Close
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
// and logs events otherwise
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return messaging.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector("path")
}

// ProvideMetrics returns the collector when metrics are enabled
func ProvideMetrics(cfg *config.Config, collector *observability.Collector) ports.Metrics {
	if !cfg.EnableMetrics {
		return ports.NoopMetrics{}
	}
	return collector
}

// ProvideTracer creates the X-Ray tracer; nil disables tracing
func ProvideTracer(cfg *config.Config) *tracing.Tracer {
	if !cfg.EnableTracing {
		return nil
	}
	return tracing.NewTracer("path-memo")
}

// ProvideClock returns the wall clock
func ProvideClock() ports.Clock {
	return ports.SystemClock{}
}

// ProvideErrorHandler creates the HTTP error renderer; development builds
// include internal details
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideJWTValidator creates the bearer token validator. Behind API Gateway
// tokens are validated upstream and no validator is needed.
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		if cfg.IsLambda {
			return nil, nil
		}
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = developmentJWTSecret
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
	})
}

// ProvideAuthConfig assembles the authentication middleware configuration.
// Rate limits are shared across instances when Redis is available.
func ProvideAuthConfig(
	cfg *config.Config,
	validator *auth.JWTValidator,
	client *redis.Client,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) middleware.AuthConfig {
	authCfg := middleware.AuthConfig{
		Validator:    validator,
		TrustGateway: cfg.IsLambda,
		Errors:       errorHandler,
		Logger:       logger,
	}

	limiter := func(limit int, prefix string) auth.RateLimiter {
		if client != nil {
			return auth.NewRedisRateLimiter(client, limit, time.Minute, "path:ratelimit:"+prefix)
		}
		return auth.NewSlidingWindowLimiter(limit, time.Minute)
	}
	if cfg.IPRateLimit > 0 {
		authCfg.IPLimiter = auth.NewIPRateLimiter(limiter(cfg.IPRateLimit, "ip"))
	}
	if cfg.UserRateLimit > 0 {
		authCfg.UserLimiter = auth.NewUserRateLimiter(limiter(cfg.UserRateLimit, "user"))
	}
	return authCfg
}

// ProvideRouterConfig assembles the router options and readiness checks
func ProvideRouterConfig(
	cfg *config.Config,
	authCfg middleware.AuthConfig,
	collector *observability.Collector,
	backend *Backend,
	breaker *blob.Breaker,
	client *redis.Client,
) rest.RouterConfig {
	routerCfg := rest.RouterConfig{
		Auth: authCfg,
		ReadyChecks: map[string]rest.ReadinessCheck{
			"store": backend.Ping,
		},
	}
	routerCfg.ReadyChecks["blob_store"] = func(context.Context) error {
		if breaker.State() == gobreaker.StateOpen {
			return fmt.Errorf("circuit breaker is open")
		}
		return nil
	}
	if cfg.EnableCORS {
		routerCfg.AllowedOrigins = cfg.AllowedOrigins
	}
	if cfg.EnableMetrics {
		routerCfg.Metrics = collector
	}
	if client != nil {
		routerCfg.ReadyChecks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return routerCfg
}
