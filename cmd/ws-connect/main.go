// Package main implements the websocket connect Lambda. Clients open the
// socket with ?chat_id=<id> and from then on receive that canvas's live
// updates through cmd/ws-send-message and the API's websocket notifier.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"ideacanvas/infrastructure/config"
	"ideacanvas/infrastructure/di"
)

// registrar stores which connection watches which chat
type registrar interface {
	Register(ctx context.Context, chatID, connectionID string) error
}

type connectHandler struct {
	registry registrar
	logger   *zap.Logger
	now      func() time.Time
}

type welcome struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	ChatID       string `json:"chatId"`
	Timestamp    int64  `json:"timestamp"`
}

// handle serves the $connect and $disconnect routes
func (h *connectHandler) handle(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID

	if request.RequestContext.RouteKey == "$disconnect" {
		// API Gateway sends no query string on disconnect, so the chat is
		// unknown here. The entry expires via its TTL, or sooner when the
		// notifier hits a gone connection
		h.logger.Info("Websocket disconnected", zap.String("connection_id", connectionID))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
	}

	chatID := request.QueryStringParameters["chat_id"]
	if chatID == "" {
		h.logger.Warn("Websocket connect without chat id", zap.String("connection_id", connectionID))
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Body:       `{"error":"chat_id query parameter is required"}`,
		}, nil
	}

	if err := h.registry.Register(ctx, chatID, connectionID); err != nil {
		h.logger.Error("Failed to register connection",
			zap.String("connection_id", connectionID),
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error":"internal server error"}`,
		}, nil
	}

	body, _ := json.Marshal(welcome{
		Type:         "connection_established",
		ConnectionID: connectionID,
		ChatID:       chatID,
		Timestamp:    h.now().Unix(),
	})
	h.logger.Info("Websocket connected",
		zap.String("connection_id", connectionID),
		zap.String("chat_id", chatID),
	)
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: string(body)}, nil
}

func newHandler(ctx context.Context) (*connectHandler, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
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
	return &connectHandler{registry: registry, logger: logger, now: time.Now}, nil
}

func main() {
	h, err := newHandler(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize websocket connect handler: %v", err)
	}

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(h.handle)
		return
	}

	// Local run: register a sample connection
	response, err := h.handle(context.Background(), events.APIGatewayWebsocketProxyRequest{
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			ConnectionID: "local-connection",
			RouteKey:     "$connect",
		},
		QueryStringParameters: map[string]string{"chat_id": "local-chat"},
	})
	if err != nil {
		log.Fatalf("Local connect failed: %v", err)
	}
	log.Printf("Local connect response: %d %s", response.StatusCode, response.Body)
}
