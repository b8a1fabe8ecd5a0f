//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"ideacanvas/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideMetrics,
	ProvideCloudWatchMetrics,
	ProvideTracer,
	ProvideCanvasConfig,
	ProvideRegistry,
	ProvideSnapshotStore,
	ProvideConnectionRegistry,
	ProvideAutosaver,
	ProvideHub,
	ProvideNotifier,
	ProvideSessions,
	ProvideCanvases,
	ProvideEventPublisher,
	ProvideGenerator,
	ProvideLayoutService,
	ProvideExpansionService,
	ProvideGenerationService,
	ProvideNodeService,
	ProvideExportService,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideErrorHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
