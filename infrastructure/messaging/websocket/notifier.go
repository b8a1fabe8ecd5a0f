// Package websocket pushes canvas updates to API Gateway websocket clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ideacanvas/application/ports"
)

// maxConcurrentPosts bounds parallel PostToConnection calls per message
const maxConcurrentPosts = 8

// ConnectionRegistry lists and forgets the sockets watching a chat
type ConnectionRegistry interface {
	List(ctx context.Context, chatID string) ([]string, error)
	Remove(ctx context.Context, chatID, connectionID string) error
}

// PostAPI is the subset of the API Gateway management client used here
type PostAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Message is the frame every client receives
type Message struct {
	Type      string `json:"type"`
	ChatID    string `json:"chatId"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Notifier implements ports.Notifier over API Gateway websockets
type Notifier struct {
	registry ConnectionRegistry
	api      PostAPI
	logger   *zap.Logger
	now      func() time.Time
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier
func NewNotifier(registry ConnectionRegistry, api PostAPI, logger *zap.Logger) *Notifier {
	return &Notifier{registry: registry, api: api, logger: logger, now: time.Now}
}

// NewManagementClient builds a management API client for a websocket
// stage endpoint such as "abc.execute-api.eu-west-1.amazonaws.com/prod"
func NewManagementClient(cfg aws.Config, endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", endpoint))
	})
}

// Notify implements ports.Notifier
func (n *Notifier) Notify(ctx context.Context, chatID string, event ports.StreamEvent) error {
	_, err := n.Broadcast(ctx, chatID, string(event.Type), event)
	return err
}

// Broadcast sends one frame to every connection of chatID and reports how
// many were delivered. Gone connections are removed and do not count as
// failures
func (n *Notifier) Broadcast(ctx context.Context, chatID, msgType string, data any) (int, error) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		ChatID:    chatID,
		Timestamp: n.now().Unix(),
		Data:      data,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	connectionIDs, err := n.registry.List(ctx, chatID)
	if err != nil {
		return 0, err
	}

	var delivered int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPosts)
	for _, id := range connectionIDs {
		id := id
		g.Go(func() error {
			ok, err := n.post(gctx, chatID, id, payload)
			if ok {
				atomic.AddInt64(&delivered, 1)
			}
			return err
		})
	}
	err = g.Wait()

	n.logger.Debug("Broadcast canvas message",
		zap.String("chat_id", chatID),
		zap.String("type", msgType),
		zap.Int("connections", len(connectionIDs)),
		zap.Int64("delivered", delivered),
	)
	return int(delivered), err
}

func (n *Notifier) post(ctx context.Context, chatID, connectionID string, payload []byte) (bool, error) {
	_, err := n.api.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         payload,
	})
	if err == nil {
		return true, nil
	}

	var gone *apigwTypes.GoneException
	if errors.As(err, &gone) {
		n.logger.Info("Connection is gone, removing", zap.String("connection_id", connectionID))
		if rmErr := n.registry.Remove(ctx, chatID, connectionID); rmErr != nil {
			n.logger.Warn("Failed to remove stale connection", zap.Error(rmErr), zap.String("connection_id", connectionID))
		}
		return false, nil
	}
	return false, fmt.Errorf("failed to send message to %s: %w", connectionID, err)
}
