package main

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRegistry struct {
	registered map[string]string
	err        error
}

func (f *fakeRegistry) Register(_ context.Context, chatID, connectionID string) error {
	if f.err != nil {
		return f.err
	}
	f.registered[connectionID] = chatID
	return nil
}

func newTestHandler(registry *fakeRegistry) *connectHandler {
	return &connectHandler{
		registry: registry,
		logger:   zap.NewNop(),
		now:      func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func request(route string, query map[string]string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		RequestContext:        events.APIGatewayWebsocketProxyRequestContext{ConnectionID: "conn-1", RouteKey: route},
		QueryStringParameters: query,
	}
}

func TestConnect_RegistersChat(t *testing.T) {
	registry := &fakeRegistry{registered: map[string]string{}}
	h := newTestHandler(registry)

	resp, err := h.handle(context.Background(), request("$connect", map[string]string{"chat_id": "chat-1"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"type":"connection_established","connectionId":"conn-1","chatId":"chat-1","timestamp":1700000000}`, resp.Body)
	assert.Equal(t, "chat-1", registry.registered["conn-1"])
}

func TestConnect_Failures(t *testing.T) {
	registry := &fakeRegistry{registered: map[string]string{}}
	h := newTestHandler(registry)

	resp, err := h.handle(context.Background(), request("$connect", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	registry.err = errors.New("throttled")
	resp, err = h.handle(context.Background(), request("$connect", map[string]string{"chat_id": "chat-1"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, registry.registered)
}

func TestDisconnect_Acknowledged(t *testing.T) {
	h := newTestHandler(&fakeRegistry{registered: map[string]string{}})

	resp, err := h.handle(context.Background(), request("$disconnect", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
