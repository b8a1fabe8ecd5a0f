package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Query represents a read-only query
type Query interface {
	Validate() error
}

// QueryHandler handles a specific query type
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryHandlerFunc is an adapter to allow functions to be used as handlers
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

// Handle implements QueryHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// HandlerFor adapts a typed query function
func HandlerFor[Q Query, R any](fn func(ctx context.Context, query Q) (R, error)) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		typed, ok := query.(Q)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrUnexpectedQuery, query)
		}
		return fn(ctx, typed)
	})
}

// QueryBus dispatches queries to their handlers
type QueryBus struct {
	handlers map[reflect.Type]QueryHandler
	observer Observer
	mu       sync.RWMutex
}

// NewQueryBus creates a new query bus. observer may be nil
func NewQueryBus(observer Observer) *QueryBus {
	return &QueryBus{
		handlers: make(map[reflect.Type]QueryHandler),
		observer: observer,
	}
}

// Register registers a handler for the type of queryType
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for query type %s", t.Name())
	}
	if b.observer != nil {
		handler = withMetrics(b.observer, handler)
	}
	b.handlers[t] = handler
	return nil
}

// Ask dispatches a query to its handler and returns the result
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, query)
	}
	return handler.Handle(ctx, query)
}

// Ask runs query on b and asserts the result type
func Ask[R any](ctx context.Context, b *QueryBus, query Query) (R, error) {
	var zero R
	result, err := b.Ask(ctx, query)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %T answered with %T", ErrUnexpectedResult, query, result)
	}
	return typed, nil
}

// Observer records handler timings
type Observer interface {
	ObserveHandler(bus, name string, elapsed time.Duration, err error)
}

func withMetrics(observer Observer, next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		start := time.Now()
		result, err := next.Handle(ctx, query)
		observer.ObserveHandler("query", reflect.TypeOf(query).Name(), time.Since(start), err)
		return result, err
	})
}

// Errors
var (
	ErrHandlerNotFound  = errors.New("query handler not found")
	ErrUnexpectedQuery  = errors.New("unexpected query type")
	ErrUnexpectedResult = errors.New("unexpected query result type")
)
