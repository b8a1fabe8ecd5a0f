// Package main implements the websocket fan-out Lambda. It is subscribed
// to the canvas events on EventBridge and relays each one to every socket
// watching the event's chat.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"ideacanvas/infrastructure/config"
	"ideacanvas/infrastructure/di"
	"ideacanvas/infrastructure/messaging/eventbridge"
	"ideacanvas/infrastructure/messaging/websocket"
)

// broadcaster sends one frame to every connection of a chat
type broadcaster interface {
	Broadcast(ctx context.Context, chatID, msgType string, data any) (int, error)
}

type relay struct {
	sockets broadcaster
	logger  *zap.Logger
}

// eventEnvelope holds the detail fields every canvas event carries
type eventEnvelope struct {
	AggregateID string `json:"aggregate_id"`
	EventType   string `json:"event_type"`
}

var errNoChat = errors.New("event has no aggregate id")

// handle relays one EventBridge event
func (r *relay) handle(ctx context.Context, event events.CloudWatchEvent) error {
	if event.Source != eventbridge.Source {
		r.logger.Debug("Ignoring foreign event", zap.String("source", event.Source))
		return nil
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(event.Detail, &envelope); err != nil {
		return fmt.Errorf("failed to parse event detail: %w", err)
	}
	if envelope.AggregateID == "" {
		return fmt.Errorf("%w: %s", errNoChat, event.DetailType)
	}

	delivered, err := r.sockets.Broadcast(ctx, envelope.AggregateID, event.DetailType, json.RawMessage(event.Detail))
	if err != nil {
		return fmt.Errorf("failed to relay %s: %w", event.DetailType, err)
	}
	r.logger.Info("Relayed canvas event",
		zap.String("chat_id", envelope.AggregateID),
		zap.String("type", event.DetailType),
		zap.Int("delivered", delivered),
	)
	return nil
}

func newRelay(ctx context.Context) (*relay, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.WebSocketEndpoint == "" {
		return nil, errors.New("WEBSOCKET_ENDPOINT is required")
	}
	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	registry := di.ProvideConnectionRegistry(di.ProvideDynamoDBClient(awsCfg), cfg, logger)
	notifier := websocket.NewNotifier(registry, websocket.NewManagementClient(awsCfg, cfg.WebSocketEndpoint), logger)
	return &relay{sockets: notifier, logger: logger}, nil
}

func main() {
	r, err := newRelay(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize websocket relay: %v", err)
	}

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(r.handle)
		return
	}

	// Local run: relay a sample event read from stdin
	var event events.CloudWatchEvent
	if err := json.NewDecoder(os.Stdin).Decode(&event); err != nil {
		log.Fatalf("Failed to read event from stdin: %v", err)
	}
	if err := r.handle(context.Background(), event); err != nil {
		log.Fatalf("Relay failed: %v", err)
	}
}
