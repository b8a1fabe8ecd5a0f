package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ideacanvas/application/ports"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) List(ctx context.Context, chatID string) ([]string, error) {
	args := m.Called(ctx, chatID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockRegistry) Remove(ctx context.Context, chatID, connectionID string) error {
	return m.Called(ctx, chatID, connectionID).Error(0)
}

type fakePoster struct {
	mu   sync.Mutex
	sent map[string][]byte
	errs map[string]error
}

func (f *fakePoster) PostToConnection(_ context.Context, in *apigatewaymanagementapi.PostToConnectionInput, _ ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	id := aws.ToString(in.ConnectionId)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[id] = in.Data
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func TestNotifier_Notify(t *testing.T) {
	registry := new(mockRegistry)
	registry.On("List", mock.Anything, "chat-1").Return([]string{"a", "b", "gone"}, nil)
	registry.On("Remove", mock.Anything, "chat-1", "gone").Return(nil).Once()

	poster := &fakePoster{
		sent: map[string][]byte{},
		errs: map[string]error{"gone": &apigwTypes.GoneException{}},
	}

	n := NewNotifier(registry, poster, zap.NewNop())
	err := n.Notify(context.Background(), "chat-1", ports.StreamEvent{Type: ports.StreamNodeTextDelta, NodeID: "shape:n", Delta: "hi"})
	require.NoError(t, err)

	require.Len(t, poster.sent, 2)
	var msg struct {
		Type   string            `json:"type"`
		ChatID string            `json:"chatId"`
		Data   ports.StreamEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(poster.sent["a"], &msg))
	assert.Equal(t, "node-text-delta", msg.Type)
	assert.Equal(t, "chat-1", msg.ChatID)
	assert.Equal(t, "hi", msg.Data.Delta)
	registry.AssertExpectations(t)
}

func TestNotifier_BroadcastReportsPostFailures(t *testing.T) {
	registry := new(mockRegistry)
	registry.On("List", mock.Anything, "chat-1").Return([]string{"a", "b"}, nil)

	boom := errors.New("throttled")
	poster := &fakePoster{sent: map[string][]byte{}, errs: map[string]error{"b": boom}}

	n := NewNotifier(registry, poster, zap.NewNop())
	delivered, err := n.Broadcast(context.Background(), "chat-1", "layout", map[string]int{"moves": 3})
	assert.ErrorIs(t, err, boom)
	assert.LessOrEqual(t, delivered, 1)
}
