// Package openai implements the text generator on an OpenAI-compatible chat
// completions API, guarded by a circuit breaker.
package openai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/validators"
	"ideacanvas/infrastructure/generation"
	"ideacanvas/pkg/errors"
)

// Observer is told about every model call
type Observer interface {
	ObserveGeneration(operation string, elapsed time.Duration, err error, overloaded bool)
}

// Config holds client settings
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Breaker trips after MinRequests calls in Interval when at least
	// FailureThreshold of them failed, and probes again after OpenTimeout
	MinRequests      uint32
	FailureThreshold float64
	Interval         time.Duration
	OpenTimeout      time.Duration
}

// DefaultConfig returns settings for the public API
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:           apiKey,
		Model:            openai.GPT4oMini,
		Timeout:          60 * time.Second,
		MinRequests:      5,
		FailureThreshold: 0.6,
		Interval:         30 * time.Second,
		OpenTimeout:      30 * time.Second,
	}
}

// chatAPI is the part of *openai.Client the generator calls
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Generator implements ports.Generator
type Generator struct {
	api       chatAPI
	model     string
	timeout   time.Duration
	breaker   *gobreaker.CircuitBreaker
	validator *validators.GenerationValidator
	observer  Observer
	logger    *zap.Logger
}

var _ ports.Generator = (*Generator)(nil)

// NewGenerator creates a generator. observer may be nil
func NewGenerator(cfg Config, observer Observer, logger *zap.Logger) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newGenerator(openai.NewClientWithConfig(clientCfg), cfg, observer, logger)
}

func newGenerator(api chatAPI, cfg Config, observer Observer, logger *zap.Logger) *Generator {
	g := &Generator{
		api:       api,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		validator: validators.NewGenerationValidator(),
		observer:  observer,
		logger:    logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "generation",
		Interval: cfg.Interval,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// a caller giving up says nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, context.Canceled)
		},
	})
	return g
}

// Rewrite implements ports.Generator
func (g *Generator) Rewrite(ctx context.Context, req ports.RewriteRequest) (string, error) {
	text, err := g.complete(ctx, "rewrite", generation.RewritePrompt(req), false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// SmartDecide implements ports.Generator
func (g *Generator) SmartDecide(ctx context.Context, req ports.SmartRequest) (entities.Decision, error) {
	text, err := g.complete(ctx, "smart_rewrite", generation.SmartRewritePrompt(req), true)
	if err != nil {
		return entities.Decision{}, err
	}

	var decision entities.Decision
	if err := generation.DecodeJSON(text, func(b []byte) error {
		decision = entities.Decision{}
		return json.Unmarshal(b, &decision)
	}); err != nil {
		return entities.Decision{}, err
	}
	if err := g.validator.ValidateDecision(decision); err != nil {
		return entities.Decision{}, err
	}
	return decision, nil
}

// FanOut implements ports.Generator
func (g *Generator) FanOut(ctx context.Context, idea string) (entities.FanOut, error) {
	text, err := g.complete(ctx, "fanout", generation.FanOutPrompt(idea), true)
	if err != nil {
		return entities.FanOut{}, err
	}

	var fanOut entities.FanOut
	if err := generation.DecodeJSON(text, func(b []byte) error {
		var parseErr error
		fanOut, parseErr = g.validator.ParseFanOut(b)
		return parseErr
	}); err != nil {
		return entities.FanOut{}, err
	}
	return fanOut, nil
}

// Complete implements ports.Generator
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, "complete", prompt, false)
}

// Stream implements ports.Generator. onDelta errors stop the stream and are
// returned unchanged
func (g *Generator) Stream(ctx context.Context, prompt string, onDelta func(string) error) error {
	start := time.Now()
	var callbackErr error

	_, err := g.breaker.Execute(func() (interface{}, error) {
		stream, err := g.api.CreateChatCompletionStream(ctx, g.request(prompt, false))
		if err != nil {
			return nil, err
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if stderrors.Is(err, io.EOF) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if err := onDelta(chunk.Choices[0].Delta.Content); err != nil {
				// not an upstream failure
				callbackErr = err
				return nil, nil
			}
		}
	})
	if callbackErr != nil {
		g.observe("stream", start, nil, false)
		return callbackErr
	}
	return g.finish("stream", start, err)
}

func (g *Generator) complete(ctx context.Context, operation, prompt string, jsonMode bool) (string, error) {
	start := time.Now()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.api.CreateChatCompletion(ctx, g.request(prompt, jsonMode))
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("model returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err := g.finish(operation, start, err); err != nil {
		return "", err
	}
	return out.(string), nil
}

func (g *Generator) request(prompt string, jsonMode bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

// finish classifies err, records the call and returns the error callers see
func (g *Generator) finish(operation string, start time.Time, err error) error {
	if err == nil {
		g.observe(operation, start, nil, false)
		return nil
	}

	overloaded := isOverloaded(err)
	g.observe(operation, start, err, overloaded)
	g.logger.Warn("Generation call failed",
		zap.String("operation", operation),
		zap.Bool("overloaded", overloaded),
		zap.Error(err),
	)
	if overloaded {
		return errors.ErrGenerationOverloaded.Wrap(err)
	}
	return fmt.Errorf("generation %s failed: %w", operation, err)
}

func (g *Generator) observe(operation string, start time.Time, err error, overloaded bool) {
	if g.observer != nil {
		g.observer.ObserveGeneration(operation, time.Since(start), err, overloaded)
	}
}

// isOverloaded reports whether err means "try again later"
func isOverloaded(err error) bool {
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return overloadStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return overloadStatus(reqErr.HTTPStatusCode)
	}
	return strings.Contains(strings.ToLower(err.Error()), "overloaded")
}

func overloadStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable || code == 529
}
