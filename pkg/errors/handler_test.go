package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorHandler_Handle(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		message   string
		retryable bool
	}{
		{"overloaded upstream", ErrGenerationOverloaded.Wrap(errors.New("429")), http.StatusServiceUnavailable, ErrGenerationOverloaded.Message, true},
		{"invalid llm output", fmt.Errorf("fanout: %w", ErrInvalidGenerationOutput), http.StatusBadGateway, "LLM output invalid", false},
		{"missing node", ErrNodeNotFound.Wrap(errors.New("node shape:x")), http.StatusNotFound, ErrNodeNotFound.Message, false},
		{"validation", NewValidationError("idea is required"), http.StatusBadRequest, "idea is required", false},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "An internal error occurred", false},
	}

	h := NewErrorHandler(zap.NewNop(), false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Handle(rec, httptest.NewRequest(http.MethodPost, "/api/llm/fanout", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Error)
			assert.Equal(t, tt.retryable, body.Retryable)
		})
	}
}

func TestErrorHandler_Middleware(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	rec := httptest.NewRecorder()
	h.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nope")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
