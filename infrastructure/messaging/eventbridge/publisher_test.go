package eventbridge

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"ideacanvas/domain/events"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func nodeEvents(n int) []events.DomainEvent {
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewNodeDeleted("chat-1", "shape:x", time.Unix(0, 0))
	}
	return out
}

func TestPublisher_ChunksByTen(t *testing.T) {
	ctx := context.Background()
	api := new(mockAPI)
	api.On("PutEvents", ctx, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 10
	})).Return(&eventbridge.PutEventsOutput{}, nil).Twice()
	api.On("PutEvents", ctx, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 3 &&
			aws.ToString(in.Entries[0].Source) == Source &&
			aws.ToString(in.Entries[0].DetailType) == "node.deleted"
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()

	p := NewPublisher(api, "bus", zap.NewNop())
	assert.NoError(t, p.PublishBatch(ctx, nodeEvents(23)))
	api.AssertExpectations(t)
}

func TestPublisher_ReportsFailedEntries(t *testing.T) {
	ctx := context.Background()
	api := new(mockAPI)
	api.On("PutEvents", ctx, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("ThrottlingException")}},
	}, nil)

	p := NewPublisher(api, "bus", zap.NewNop())
	assert.Error(t, p.Publish(ctx, nodeEvents(1)[0]))
}

func TestPublisher_EmptyBatchIsNoop(t *testing.T) {
	api := new(mockAPI)
	p := NewPublisher(api, "bus", zap.NewNop())
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
	api.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything)
}
