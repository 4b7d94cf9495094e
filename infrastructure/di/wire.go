//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"path-backend/application/services"
	"path-backend/infrastructure/config"
	"path-backend/interfaces/http/rest"
	"path-backend/interfaces/http/rest/handlers"
)

// StorageSet provides the configured storage engine
var StorageSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideBackend,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	StorageSet,
	ProvideStore,
	ProvidePointGraph,
	ProvideMemoPolicy,
	ProvideBlobBreaker,
	ProvideBlobStore,
	ProvideRedisClient,
	ProvideCache,
	ProvideEventPublisher,
	ProvideCollector,
	ProvideMetrics,
	ProvideTracer,
	ProvideClock,
	services.NewReservationManager,
	services.NewContentStore,
	services.NewDraftService,
	services.NewMemoService,
	ProvideErrorHandler,
	ProvideJWTValidator,
	ProvideAuthConfig,
	ProvideRouterConfig,
	handlers.NewMemoHandler,
	handlers.NewRevisionHandler,
	rest.NewRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}

// InitializeBackend opens the storage engine only
func InitializeBackend(ctx context.Context, cfg *config.Config) (*Backend, func(), error) {
	wire.Build(StorageSet)
	return nil, nil, nil
}
