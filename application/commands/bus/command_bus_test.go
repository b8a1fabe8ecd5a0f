package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingCommand struct {
	Name string
}

func (c pingCommand) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type observed struct {
	bus, name string
	err       error
}

type fakeObserver struct{ calls []observed }

func (o *fakeObserver) ObserveHandler(bus, name string, _ time.Duration, err error) {
	o.calls = append(o.calls, observed{bus, name, err})
}

func TestCommandBus_Send(t *testing.T) {
	var order []string
	trace := func(tag string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) error {
				order = append(order, tag)
				return next.Handle(ctx, cmd)
			})
		}
	}
	observer := &fakeObserver{}
	b := NewCommandBus(trace("outer"), trace("inner"), MetricsMiddleware(observer))

	var got string
	require.NoError(t, b.Register(pingCommand{}, HandlerFor(func(_ context.Context, cmd pingCommand) error {
		got = cmd.Name
		return nil
	})))

	require.NoError(t, b.Send(context.Background(), pingCommand{Name: "hi"}))
	assert.Equal(t, "hi", got)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, []observed{{"command", "pingCommand", nil}}, observer.calls)
}

func TestCommandBus_Errors(t *testing.T) {
	b := NewCommandBus()
	called := false
	handler := HandlerFor(func(context.Context, pingCommand) error {
		called = true
		return nil
	})
	require.NoError(t, b.Register(pingCommand{}, handler))
	assert.Error(t, b.Register(pingCommand{}, handler), "duplicate registration")

	assert.EqualError(t, b.Send(context.Background(), pingCommand{}), "name is required")
	assert.False(t, called)

	err := NewCommandBus().Send(context.Background(), pingCommand{Name: "x"})
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}
