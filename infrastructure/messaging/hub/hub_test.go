package hub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"ideacanvas/application/ports"
)

func TestHub_DeliversToChatSubscribersOnly(t *testing.T) {
	h := New(4, zap.NewNop())
	mine, cancelMine := h.Subscribe("chat-1")
	other, cancelOther := h.Subscribe("chat-2")
	defer cancelOther()

	_ = h.Notify(context.Background(), "chat-1", ports.StreamEvent{Type: ports.StreamLayout})

	assert.Equal(t, ports.StreamLayout, (<-mine).Type)
	assert.Empty(t, other)

	cancelMine()
	cancelMine()
	_, open := <-mine
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers("chat-1"))
}

func TestHub_DropsWhenSubscriberIsFull(t *testing.T) {
	h := New(1, zap.NewNop())
	ch, cancel := h.Subscribe("chat-1")
	defer cancel()

	for i := 0; i < 3; i++ {
		assert.NoError(t, h.Notify(context.Background(), "chat-1", ports.StreamEvent{Type: ports.StreamNodeDone}))
	}
	assert.Len(t, ch, 1)
}
