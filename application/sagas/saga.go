// Package sagas runs multi-step canvas workflows whose completed steps are
// undone in reverse order when a later step fails.
package sagas

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is one unit of a saga. Execute mutates the shared state; Compensate,
// when set, undoes it
type Step[T any] struct {
	Name       string
	Execute    func(ctx context.Context, state *T) error
	Compensate func(ctx context.Context, state *T) error
	MaxRetries int
	RetryDelay time.Duration
}

// State represents the current state of a saga execution
type State string

const (
	StatePending      State = "PENDING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateFailed       State = "FAILED"
	StateCompensating State = "COMPENSATING"
	StateCompensated  State = "COMPENSATED"
)

// Saga orchestrates a series of steps over a state value of type T
type Saga[T any] struct {
	id          string
	name        string
	steps       []Step[T]
	state       State
	currentStep int
	logger      *zap.Logger
	fields      []zap.Field
}

// New creates a saga. fields are attached to every log line
func New[T any](name string, logger *zap.Logger, fields ...zap.Field) *Saga[T] {
	return &Saga[T]{
		id:     "saga_" + uuid.NewString(),
		name:   name,
		state:  StatePending,
		logger: logger,
		fields: fields,
	}
}

// AddStep appends a step
func (s *Saga[T]) AddStep(step Step[T]) *Saga[T] {
	s.steps = append(s.steps, step)
	return s
}

// Then appends a step without compensation
func (s *Saga[T]) Then(name string, execute func(context.Context, *T) error) *Saga[T] {
	return s.AddStep(Step[T]{Name: name, Execute: execute})
}

// ThenCompensate appends a step with compensation
func (s *Saga[T]) ThenCompensate(name string, execute, compensate func(context.Context, *T) error) *Saga[T] {
	return s.AddStep(Step[T]{Name: name, Execute: execute, Compensate: compensate})
}

// Execute runs every step in order. When one fails, the compensations of
// the steps that completed run in reverse order and the step's error is
// returned wrapped
func (s *Saga[T]) Execute(ctx context.Context, state *T) error {
	s.state = StateRunning
	s.logger.Debug("Starting saga", s.with(zap.Int("total_steps", len(s.steps)))...)

	for i, step := range s.steps {
		s.currentStep = i
		if err := s.executeWithRetry(ctx, step, state); err != nil {
			s.state = StateFailed
			s.logger.Warn("Saga step failed", s.with(zap.String("step_name", step.Name), zap.Error(err))...)

			s.compensate(ctx, state, i)
			s.state = StateCompensated
			return fmt.Errorf("%s failed at %s: %w", s.name, step.Name, err)
		}
	}

	s.state = StateCompleted
	s.logger.Debug("Saga completed", s.with()...)
	return nil
}

func (s *Saga[T]) executeWithRetry(ctx context.Context, step Step[T], state *T) error {
	attempts := step.MaxRetries + 1
	delay := step.RetryDelay
	if delay == 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			s.logger.Debug("Retrying saga step",
				s.with(zap.String("step_name", step.Name), zap.Int("attempt", attempt+1))...)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = step.Execute(ctx, state); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// compensate undoes steps [0, failed) in reverse order. A compensation
// failure is logged and the remaining ones still run
func (s *Saga[T]) compensate(ctx context.Context, state *T, failed int) {
	s.state = StateCompensating
	// compensations must run even when the request was cancelled
	ctx = context.WithoutCancel(ctx)
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx, state); err != nil {
			s.logger.Error("Compensation failed", s.with(zap.String("step_name", step.Name), zap.Error(err))...)
		}
	}
}

func (s *Saga[T]) with(extra ...zap.Field) []zap.Field {
	fields := make([]zap.Field, 0, len(s.fields)+len(extra)+2)
	fields = append(fields, zap.String("saga_id", s.id), zap.String("saga_name", s.name))
	fields = append(fields, s.fields...)
	return append(fields, extra...)
}

// State returns the current state of the saga
func (s *Saga[T]) State() State {
	return s.state
}

// ID returns the saga ID
func (s *Saga[T]) ID() string {
	return s.id
}

// CurrentStep returns the index of the step that ran last
func (s *Saga[T]) CurrentStep() int {
	return s.currentStep
}
