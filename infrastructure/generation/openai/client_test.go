package openai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/domain/core/entities"
	"ideacanvas/pkg/errors"
)

func completion(content string) string {
	return fmt.Sprintf(`{"id":"c","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
}

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	cfg.Timeout = 5 * time.Second
	return NewGenerator(cfg, nil, zap.NewNop())
}

func TestGenerator_Rewrite(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(completion("  new content \n")))
	})

	got, err := g.Rewrite(context.Background(), ports.RewriteRequest{Title: "T", ContentMD: "old", Instruction: "improve"})
	require.NoError(t, err)
	assert.Equal(t, "new content", got)
}

func TestGenerator_SmartDecide(t *testing.T) {
	t.Run("fenced expand decision", func(t *testing.T) {
		reply := "```json\n{\"action\":\"expand\",\"branches\":[{\"title\":\"A\",\"content\":\"a\"},{\"title\":\"B\",\"content\":\"b\"}]}\n```"
		g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(completion(reply)))
		})

		got, err := g.SmartDecide(context.Background(), ports.SmartRequest{Instruction: "split in two", CurrentTitle: "T"})
		require.NoError(t, err)
		assert.Equal(t, entities.ActionExpand, got.Action)
		assert.Len(t, got.Branches, 2)
	})

	t.Run("expand without branches is invalid output", func(t *testing.T) {
		g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(completion(`{"action":"expand","branches":[]}`)))
		})

		_, err := g.SmartDecide(context.Background(), ports.SmartRequest{Instruction: "split", CurrentTitle: "T"})
		assert.True(t, stderrors.Is(err, errors.ErrInvalidGenerationOutput))
	})
}

func TestGenerator_FanOut(t *testing.T) {
	t.Run("prose around the object", func(t *testing.T) {
		reply := `Here you go: {"branches":[{"title":"Product Brief","file":"product_brief.md","sections":[{"title":"Summary","bullets":["a","b"]}]}]}`
		g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(completion(reply)))
		})

		got, err := g.FanOut(context.Background(), "idea")
		require.NoError(t, err)
		require.Len(t, got.Branches, 1)
		assert.Equal(t, "- a\n- b", got.Branches[0].Sections[0].Body())
	})

	t.Run("missing branches is invalid output", func(t *testing.T) {
		g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(completion(`{"files":[]}`)))
		})

		_, err := g.FanOut(context.Background(), "idea")
		assert.True(t, stderrors.Is(err, errors.ErrInvalidGenerationOutput))
	})
}

func TestGenerator_Overloaded(t *testing.T) {
	var calls int32
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"The model is overloaded","type":"server_error"}}`))
	})

	_, err := g.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrGenerationOverloaded))

	// enough failures open the breaker and calls stop reaching upstream
	for i := 0; i < 10; i++ {
		_, _ = g.Complete(context.Background(), "hi")
	}
	before := atomic.LoadInt32(&calls)
	_, err = g.Complete(context.Background(), "hi")
	assert.True(t, stderrors.Is(err, errors.ErrGenerationOverloaded))
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestGenerator_GenericFailureIsNotRetryable(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad prompt","type":"invalid_request_error"}}`))
	})

	_, err := g.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.False(t, stderrors.Is(err, errors.ErrGenerationOverloaded))
}

func TestGenerator_Stream(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{"Hel", "lo", " world"} {
			fmt.Fprintf(w, "data: {\"id\":\"s\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", piece)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var got strings.Builder
	err := g.Stream(context.Background(), "hi", func(delta string) error {
		got.WriteString(delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got.String())
}

func TestGenerator_StreamCallbackErrorStops(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 3; i++ {
			fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"}}]}\n\n")
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stop := stderrors.New("node deleted")
	var n int
	err := g.Stream(context.Background(), "hi", func(string) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}
