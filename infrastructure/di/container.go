package di

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"ideacanvas/application/commands/bus"
	querybus "ideacanvas/application/queries/bus"
	"ideacanvas/application/services"
	"ideacanvas/infrastructure/canvas"
	"ideacanvas/infrastructure/config"
	"ideacanvas/infrastructure/messaging/hub"
	"ideacanvas/infrastructure/persistence/autosave"
	"ideacanvas/infrastructure/persistence/dynamodb"
	"ideacanvas/interfaces/http/rest"
	pkgerrors "ideacanvas/pkg/errors"
	"ideacanvas/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Sessions     *canvas.Sessions
	Autosaver    *autosave.Autosaver
	Hub          *hub.Hub
	Connections  *dynamodb.ConnectionRegistry
	Generation   *services.GenerationService
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	ErrorHandler *pkgerrors.ErrorHandler
}

// HTTPHandler builds the REST API on top of the container
func (c *Container) HTTPHandler() http.Handler {
	opts := rest.Options{
		Generation:   c.Generation,
		Canvases:     c.Sessions,
		Events:       c.Hub,
		ErrorHandler: c.ErrorHandler,
	}
	if c.Config.EnableMetrics {
		opts.Metrics = c.Metrics
	}
	if c.Config.EnableCORS {
		opts.CORSOrigins = c.Config.CORSOrigins
	}
	return rest.NewRouter(c.CommandBus, c.QueryBus, opts, c.Logger).Setup()
}

// Shutdown writes pending canvas saves and flushes the logger
func (c *Container) Shutdown(ctx context.Context) error {
	err := c.Autosaver.Flush(ctx)
	if err != nil {
		c.Logger.Error("Failed to flush pending saves", zap.Error(err))
	}
	_ = c.Logger.Sync()
	return err
}
