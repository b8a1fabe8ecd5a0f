package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// connectionTTL expires sockets API Gateway dropped without a disconnect
const connectionTTL = 2 * time.Hour

// ConnectionRegistry records which websocket connections watch which chat
type ConnectionRegistry struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewConnectionRegistry creates a new ConnectionRegistry
func NewConnectionRegistry(client API, tableName string, logger *zap.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

type connectionItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	EntityType   string `dynamodbav:"EntityType"`
	ChatID       string `dynamodbav:"ChatID"`
	ConnectionID string `dynamodbav:"ConnectionID"`
	ExpiresAt    int64  `dynamodbav:"ExpiresAt"`
}

func connectionSK(connectionID string) string {
	return fmt.Sprintf("CONN#%s", connectionID)
}

// Register subscribes a websocket connection to a chat
func (r *ConnectionRegistry) Register(ctx context.Context, chatID, connectionID string) error {
	item, err := attributevalue.MarshalMap(connectionItem{
		PK:           canvasPK(chatID),
		SK:           connectionSK(connectionID),
		EntityType:   "CONNECTION",
		ChatID:       chatID,
		ConnectionID: connectionID,
		ExpiresAt:    r.now().Add(connectionTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to register connection %s: %w", connectionID, err)
	}
	return nil
}

// Remove unsubscribes a websocket connection
func (r *ConnectionRegistry) Remove(ctx context.Context, chatID, connectionID string) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": canvasPK(chatID),
		"SK": connectionSK(connectionID),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       key,
	}); err != nil {
		return fmt.Errorf("failed to remove connection %s: %w", connectionID, err)
	}
	return nil
}

// List returns the live connection ids watching chatID
func (r *ConnectionRegistry) List(ctx context.Context, chatID string) ([]string, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(canvasPK(chatID))).
		And(expression.Key("SK").BeginsWith("CONN#"))
	filter := expression.Name("ExpiresAt").GreaterThan(expression.Value(r.now().Unix()))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var ids []string
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list connections for %s: %w", chatID, err)
		}

		var items []connectionItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connections: %w", err)
		}
		for _, item := range items {
			ids = append(ids, item.ConnectionID)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	r.logger.Debug("Listed chat connections",
		zap.String("chat_id", chatID),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}
