// Package hub fans canvas updates out to in-process subscribers, such as
// server-sent event streams held open by the HTTP API.
package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ideacanvas/application/ports"
)

// Hub implements ports.Notifier for subscribers in this process
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
	logger *zap.Logger
}

type subscription struct {
	ch chan ports.StreamEvent
}

var _ ports.Notifier = (*Hub)(nil)

// New creates a hub whose subscribers buffer up to buffer events
func New(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[string]map[*subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe returns a channel of events for chatID and a function that ends
// the subscription and closes the channel
func (h *Hub) Subscribe(chatID string) (<-chan ports.StreamEvent, func()) {
	sub := &subscription{ch: make(chan ports.StreamEvent, h.buffer)}

	h.mu.Lock()
	if h.subs[chatID] == nil {
		h.subs[chatID] = make(map[*subscription]struct{})
	}
	h.subs[chatID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[chatID], sub)
			if len(h.subs[chatID]) == 0 {
				delete(h.subs, chatID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Notify implements ports.Notifier. Slow subscribers drop events rather
// than block the canvas
func (h *Hub) Notify(ctx context.Context, chatID string, event ports.StreamEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[chatID] {
		select {
		case sub.ch <- event:
		default:
			h.logger.Warn("Dropping canvas event for slow subscriber",
				zap.String("chat_id", chatID),
				zap.String("type", string(event.Type)),
			)
		}
	}
	return nil
}

// Subscribers reports how many subscribers chatID has
func (h *Hub) Subscribers(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[chatID])
}

// Multi notifies several notifiers in order and returns the first error
type Multi []ports.Notifier

// Notify implements ports.Notifier
func (m Multi) Notify(ctx context.Context, chatID string, event ports.StreamEvent) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, chatID, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
