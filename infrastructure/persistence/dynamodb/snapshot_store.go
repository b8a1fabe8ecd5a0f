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

// maxItemBytes leaves headroom under DynamoDB's 400KB item limit for keys
// and metadata
const maxItemBytes = 390 * 1024

const snapshotSK = "SNAPSHOT"

// SnapshotStore keeps one canvas document per chat as a single item
type SnapshotStore struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewSnapshotStore creates a new SnapshotStore
func NewSnapshotStore(client API, tableName string, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

// snapshotItem represents the DynamoDB item structure for a canvas snapshot
type snapshotItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ChatID     string `dynamodbav:"ChatID"`
	Doc        []byte `dynamodbav:"Doc"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
	Revision   int    `dynamodbav:"Revision"`
}

func canvasPK(chatID string) string {
	return fmt.Sprintf("CANVAS#%s", chatID)
}

// Load implements ports.SnapshotStore
func (s *SnapshotStore) Load(ctx context.Context, chatID string) ([]byte, bool, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": canvasPK(chatID),
		"SK": snapshotSK,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal key: %w", err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load canvas %s: %w", chatID, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal canvas %s: %w", chatID, err)
	}
	return item.Doc, true, nil
}

// Save implements ports.SnapshotStore. The write is an upsert that bumps a
// revision counter, so concurrent writers resolve as last-write-wins
func (s *SnapshotStore) Save(ctx context.Context, chatID string, doc []byte) error {
	if len(doc) > maxItemBytes {
		return fmt.Errorf("canvas %s is %d bytes, above the %d byte item limit", chatID, len(doc), maxItemBytes)
	}

	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": canvasPK(chatID),
		"SK": snapshotSK,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	update := expression.
		Set(expression.Name("Doc"), expression.Value(doc)).
		Set(expression.Name("ChatID"), expression.Value(chatID)).
		Set(expression.Name("EntityType"), expression.Value("CANVAS")).
		Set(expression.Name("UpdatedAt"), expression.Value(s.now().UTC().Format(time.RFC3339))).
		Set(expression.Name("Revision"),
			expression.Plus(expression.IfNotExists(expression.Name("Revision"), expression.Value(0)), expression.Value(1)))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build update expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueNone,
	})
	if err != nil {
		s.logger.Error("Failed to save canvas to DynamoDB",
			zap.Error(err),
			zap.String("chat_id", chatID),
		)
		return fmt.Errorf("failed to save canvas %s: %w", chatID, err)
	}

	s.logger.Debug("Saved canvas to DynamoDB",
		zap.String("chat_id", chatID),
		zap.Int("bytes", len(doc)),
	)
	return nil
}
