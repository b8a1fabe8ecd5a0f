package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"ideacanvas/application/commands/bus"
	"ideacanvas/application/ports"
	querybus "ideacanvas/application/queries/bus"
	"ideacanvas/application/services"
	"ideacanvas/interfaces/http/rest/handlers"
	"ideacanvas/interfaces/http/rest/middleware"
	"ideacanvas/pkg/common"
	pkgerrors "ideacanvas/pkg/errors"
	"ideacanvas/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus   *bus.CommandBus
	queryBus     *querybus.QueryBus
	generation   *services.GenerationService
	canvases     ports.Canvases
	events       handlers.Subscriber
	errorHandler *pkgerrors.ErrorHandler
	metrics      *observability.Metrics
	corsOrigins  []string
	logger       *zap.Logger
}

// Options carries what the router needs beyond the buses
type Options struct {
	Generation   *services.GenerationService
	Canvases     ports.Canvases
	Events       handlers.Subscriber
	ErrorHandler *pkgerrors.ErrorHandler
	// Metrics may be nil, which disables /metrics and request metrics
	Metrics *observability.Metrics
	// CORSOrigins empty disables CORS handling
	CORSOrigins []string
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus:   commandBus,
		queryBus:     queryBus,
		generation:   opts.Generation,
		canvases:     opts.Canvases,
		events:       opts.Events,
		errorHandler: opts.ErrorHandler,
		metrics:      opts.Metrics,
		corsOrigins:  opts.CORSOrigins,
		logger:       logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if len(rt.corsOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errorHandler.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errorHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health check
	router.Get("/health", rt.healthCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	llmHandler := handlers.NewLLMHandler(rt.generation, rt.errorHandler, rt.logger)
	canvasHandler := handlers.NewCanvasHandler(rt.queryBus, rt.canvases, rt.events, rt.errorHandler, rt.logger)
	nodeHandler := handlers.NewNodeHandler(rt.commandBus, rt.queryBus, rt.errorHandler, rt.logger)

	router.Route("/api", func(r chi.Router) {
		r.Route("/llm", func(r chi.Router) {
			r.Post("/rewrite", llmHandler.Rewrite)
			r.Post("/smart-rewrite", llmHandler.SmartRewrite)
			r.Post("/fanout", llmHandler.FanOut)
		})

		r.Route("/canvases/{chatID}", func(r chi.Router) {
			r.Get("/", canvasHandler.GetCanvas)
			r.Put("/", canvasHandler.ReplaceCanvas)
			r.Get("/export", canvasHandler.Export)
			r.Get("/events", canvasHandler.Events)
			r.Post("/connections", nodeHandler.ConnectNodes)

			r.Route("/nodes", func(r chi.Router) {
				r.Post("/", nodeHandler.CreateNode)

				r.Route("/{nodeID}", func(r chi.Router) {
					r.Get("/", nodeHandler.GetNode)
					r.Patch("/", nodeHandler.UpdateNode)
					r.Delete("/", nodeHandler.DeleteNode)

					r.Post("/layout", nodeHandler.Layout)
					r.Post("/fanout", nodeHandler.FanOut)
					r.Post("/rewrite", nodeHandler.Rewrite)
					r.Post("/smart-rewrite", nodeHandler.SmartRewrite)
					r.Post("/submit", nodeHandler.Submit)
					r.Post("/messages", nodeHandler.SendMessage)

					r.Get("/context", nodeHandler.GetContext)
					r.Get("/connections", nodeHandler.GetConnections)
					r.Get("/traverse", nodeHandler.Traverse)
				})
			})
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	body := map[string]interface{}{"status": "healthy"}
	if rt.generation != nil {
		body["inflight_generations"] = rt.generation.InFlight()
	}
	common.RespondJSON(w, http.StatusOK, body)
}
