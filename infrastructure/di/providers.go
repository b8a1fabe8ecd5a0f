package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ideacanvas/application/commands/bus"
	commandhandlers "ideacanvas/application/commands/handlers"
	"ideacanvas/application/ports"
	querybus "ideacanvas/application/queries/bus"
	queryhandlers "ideacanvas/application/queries/handlers"
	"ideacanvas/application/services"
	domainconfig "ideacanvas/domain/config"
	"ideacanvas/domain/core/validators"
	"ideacanvas/domain/graph"
	"ideacanvas/domain/layout"
	"ideacanvas/domain/nodetypes"
	"ideacanvas/infrastructure/canvas"
	"ideacanvas/infrastructure/config"
	"ideacanvas/infrastructure/generation/mock"
	"ideacanvas/infrastructure/generation/openai"
	"ideacanvas/infrastructure/messaging"
	"ideacanvas/infrastructure/messaging/eventbridge"
	"ideacanvas/infrastructure/messaging/hub"
	"ideacanvas/infrastructure/messaging/websocket"
	"ideacanvas/infrastructure/persistence/autosave"
	"ideacanvas/infrastructure/persistence/dynamodb"
	"ideacanvas/infrastructure/persistence/memory"
	"ideacanvas/infrastructure/persistence/supabase"
	pkgerrors "ideacanvas/pkg/errors"
	"ideacanvas/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
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

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideMetrics creates the Prometheus collectors
func ProvideMetrics() *observability.Metrics {
	return observability.NewMetrics()
}

// ProvideCloudWatchMetrics creates the CloudWatch publisher. It is a no-op
// unless metrics are enabled outside development
func ProvideCloudWatchMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.CloudWatchMetrics {
	if !cfg.EnableMetrics || cfg.IsDevelopment() {
		return observability.NewCloudWatchMetrics(cfg.MetricsNamespace, nil, logger)
	}
	return observability.NewCloudWatchMetrics(cfg.MetricsNamespace, client, logger)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("ideacanvas", cfg.EnableTracing)
}

// ProvideCanvasConfig creates the canvas geometry and limits
func ProvideCanvasConfig(cfg *config.Config) (*domainconfig.CanvasConfig, error) {
	canvasCfg := domainconfig.LoadCanvasConfig(cfg.Environment)
	if cfg.AutosaveDebounce > 0 {
		canvasCfg.AutosaveDebounce = cfg.AutosaveDebounce
	}
	if err := canvasCfg.Validate(); err != nil {
		return nil, err
	}
	return canvasCfg, nil
}

// ProvideRegistry creates the node type registry
func ProvideRegistry(canvasCfg *domainconfig.CanvasConfig) *nodetypes.Registry {
	return nodetypes.NewRegistry(canvasCfg, nodetypes.DefaultTextMetrics())
}

// ProvideSnapshotStore picks the snapshot backend named in the configuration
func ProvideSnapshotStore(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (ports.SnapshotStore, error) {
	switch cfg.SnapshotBackend {
	case config.BackendDynamoDB:
		return dynamodb.NewSnapshotStore(client, cfg.TableName, logger), nil
	case config.BackendSupabase:
		return supabase.NewSnapshotStore(cfg.SupabaseURL, cfg.SupabaseKey, logger)
	case config.BackendMemory:
		logger.Warn("Using in-memory snapshot store; canvases are lost on restart")
		return memory.NewSnapshotStore(), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}

// ProvideConnectionRegistry creates the websocket connection registry
func ProvideConnectionRegistry(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.ConnectionRegistry {
	return dynamodb.NewConnectionRegistry(client, cfg.ConnectionsTable, logger)
}

// saveObservers reports every save to each observer
type saveObservers []autosave.SaveObserver

func (o saveObservers) ObserveSave(chatID string, duration time.Duration, err error) {
	for _, observer := range o {
		observer.ObserveSave(chatID, duration, err)
	}
}

// ProvideAutosaver creates the debounced snapshot writer
func ProvideAutosaver(
	store ports.SnapshotStore,
	canvasCfg *domainconfig.CanvasConfig,
	metrics *observability.Metrics,
	cloudWatch *observability.CloudWatchMetrics,
	logger *zap.Logger,
) *autosave.Autosaver {
	return autosave.New(store, canvasCfg.AutosaveDebounce, saveObservers{metrics, cloudWatch}, logger)
}

// ProvideHub creates the in-process live event hub
func ProvideHub(logger *zap.Logger) *hub.Hub {
	return hub.New(64, logger)
}

// ProvideNotifier fans live events out to in-process subscribers and, when
// a websocket endpoint is configured, to API Gateway connections
func ProvideNotifier(
	cfg *config.Config,
	awsCfg aws.Config,
	h *hub.Hub,
	connections *dynamodb.ConnectionRegistry,
	logger *zap.Logger,
) ports.Notifier {
	if cfg.WebSocketEndpoint == "" {
		return h
	}
	api := websocket.NewManagementClient(awsCfg, cfg.WebSocketEndpoint)
	return hub.Multi{h, websocket.NewNotifier(connections, api, logger)}
}

// ProvideSessions creates the live canvas sessions
func ProvideSessions(
	registry *nodetypes.Registry,
	store ports.SnapshotStore,
	saver *autosave.Autosaver,
	notifier ports.Notifier,
	logger *zap.Logger,
) *canvas.Sessions {
	return canvas.NewSessions(registry, store, saver, notifier, logger)
}

// ProvideCanvases exposes the sessions through the application port
func ProvideCanvases(sessions *canvas.Sessions) ports.Canvases {
	return sessions
}

// ProvideEventPublisher publishes domain events to EventBridge when enabled
// and to the log otherwise
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EnableEventBridge {
		return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
	}
	return messaging.NewLogPublisher(logger)
}

// ProvideGenerator picks the model client, falling back to the mock
// generator when no API key is configured
func ProvideGenerator(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) ports.Generator {
	if cfg.UseMockGenerator() {
		logger.Warn("OPENAI_API_KEY not set; using the mock generator")
		return mock.NewGenerator(cfg.MockDelay)
	}

	genCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	genCfg.BaseURL = cfg.OpenAIBaseURL
	if cfg.OpenAIModel != "" {
		genCfg.Model = cfg.OpenAIModel
	}
	if cfg.GenerationTimeout > 0 {
		genCfg.Timeout = cfg.GenerationTimeout
	}
	return openai.NewGenerator(genCfg, metrics, logger)
}

// ProvideLayoutService creates the tree layout service
func ProvideLayoutService(
	canvases ports.Canvases,
	canvasCfg *domainconfig.CanvasConfig,
	publisher ports.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.LayoutService {
	return services.NewLayoutService(canvases, layout.NewEngine(canvasCfg), publisher, metrics, logger)
}

// ProvideExpansionService creates the fan-out expansion service
func ProvideExpansionService(
	canvases ports.Canvases,
	layoutService *services.LayoutService,
	publisher ports.EventPublisher,
	canvasCfg *domainconfig.CanvasConfig,
	logger *zap.Logger,
) *services.ExpansionService {
	return services.NewExpansionService(canvases, layoutService, validators.NewGenerationValidator(), publisher, canvasCfg, logger)
}

// ProvideGenerationService creates the generation flows
func ProvideGenerationService(
	canvases ports.Canvases,
	generator ports.Generator,
	expansion *services.ExpansionService,
	notifier ports.Notifier,
	publisher ports.EventPublisher,
	cloudWatch *observability.CloudWatchMetrics,
	tracer *observability.Tracer,
	canvasCfg *domainconfig.CanvasConfig,
	logger *zap.Logger,
) *services.GenerationService {
	return services.NewGenerationService(canvases, generator, expansion, notifier, publisher, cloudWatch, tracer, canvasCfg, logger)
}

// ProvideNodeService creates the node edit service
func ProvideNodeService(
	canvases ports.Canvases,
	registry *nodetypes.Registry,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *services.NodeService {
	return services.NewNodeService(canvases, registry, publisher, logger)
}

// ProvideExportService creates the document export service
func ProvideExportService(canvases ports.Canvases, logger *zap.Logger) *services.ExportService {
	return services.NewExportService(canvases, logger)
}

// ProvideCommandBus creates the command bus with every handler registered
func ProvideCommandBus(
	logger *zap.Logger,
	metrics *observability.Metrics,
	nodes *services.NodeService,
	layoutService *services.LayoutService,
	generation *services.GenerationService,
	expansion *services.ExpansionService,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	)
	err := commandhandlers.Register(commandBus,
		commandhandlers.NewNodeHandlers(nodes, layoutService),
		commandhandlers.NewGenerationHandlers(generation, expansion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register command handlers: %w", err)
	}
	return commandBus, nil
}

// ProvideQueryBus creates the query bus with every handler registered
func ProvideQueryBus(
	canvases ports.Canvases,
	export *services.ExportService,
	canvasCfg *domainconfig.CanvasConfig,
	metrics *observability.Metrics,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(metrics)
	limits := graph.ContextLimits{Parent: canvasCfg.ParentContextChars, Sibling: canvasCfg.SiblingContextChars}
	if err := queryhandlers.NewCanvasQueries(canvases, export, limits).Register(queryBus); err != nil {
		return nil, fmt.Errorf("failed to register query handlers: %w", err)
	}
	return queryBus, nil
}

// ProvideErrorHandler creates the HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}
