package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ideacanvas/infrastructure/messaging/eventbridge"
)

type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) Broadcast(ctx context.Context, chatID, msgType string, data any) (int, error) {
	args := m.Called(ctx, chatID, msgType, data)
	return args.Int(0), args.Error(1)
}

func canvasEvent(detail string) events.CloudWatchEvent {
	return events.CloudWatchEvent{
		Source:     eventbridge.Source,
		DetailType: "node.created",
		Detail:     json.RawMessage(detail),
	}
}

func TestRelay_BroadcastsToChat(t *testing.T) {
	sockets := new(mockBroadcaster)
	detail := `{"aggregate_id":"chat-1","event_type":"node.created","node_id":"shape:a"}`
	sockets.On("Broadcast", mock.Anything, "chat-1", "node.created", json.RawMessage(detail)).Return(2, nil)

	r := &relay{sockets: sockets, logger: zap.NewNop()}
	require.NoError(t, r.handle(context.Background(), canvasEvent(detail)))
	sockets.AssertExpectations(t)
}

func TestRelay_Rejects(t *testing.T) {
	sockets := new(mockBroadcaster)
	r := &relay{sockets: sockets, logger: zap.NewNop()}

	err := r.handle(context.Background(), canvasEvent(`{"event_type":"node.created"}`))
	assert.ErrorIs(t, err, errNoChat)

	err = r.handle(context.Background(), canvasEvent(`not json`))
	assert.Error(t, err)

	foreign := canvasEvent(`{"aggregate_id":"chat-1"}`)
	foreign.Source = "aws.s3"
	assert.NoError(t, r.handle(context.Background(), foreign))

	sockets.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_BroadcastFailure(t *testing.T) {
	sockets := new(mockBroadcaster)
	sockets.On("Broadcast", mock.Anything, "chat-1", "node.created", mock.Anything).Return(0, errors.New("gateway down"))

	r := &relay{sockets: sockets, logger: zap.NewNop()}
	err := r.handle(context.Background(), canvasEvent(`{"aggregate_id":"chat-1"}`))
	assert.ErrorContains(t, err, "gateway down")
}
