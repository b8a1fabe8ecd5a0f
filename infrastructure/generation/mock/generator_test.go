package mock

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideacanvas/application/ports"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/validators"
)

func TestGenerator_SmartDecide(t *testing.T) {
	g := NewGenerator(0)
	ctx := context.Background()

	d, err := g.SmartDecide(ctx, ports.SmartRequest{Instruction: "make it punchier", CurrentContent: "x", CurrentTitle: "T"})
	require.NoError(t, err)
	assert.Equal(t, entities.ActionReplace, d.Action)
	assert.NotEmpty(t, d.Content)

	d, err = g.SmartDecide(ctx, ports.SmartRequest{Instruction: "divide into 4 personas", CurrentTitle: "Persona"})
	require.NoError(t, err)
	assert.Equal(t, entities.ActionExpand, d.Action)
	assert.Len(t, d.Branches, 4)
	assert.Equal(t, "Persona 1", d.Branches[0].Title)
}

func TestGenerator_SmartDecideReplace(t *testing.T) {
	g := NewGenerator(time.Millisecond)

	d, err := g.SmartDecide(context.Background(), ports.SmartRequest{Instruction: "make it punchier", CurrentContent: "old pitch"})
	require.NoError(t, err)
	assert.Equal(t, "old pitch\n\n_Revised: make it punchier_", d.Content)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.SmartDecide(ctx, ports.SmartRequest{Instruction: "make it punchier", CurrentContent: "old pitch"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_FanOutIsValid(t *testing.T) {
	f, err := NewGenerator(0).FanOut(context.Background(), "cooking app")
	require.NoError(t, err)
	assert.Len(t, f.Branches, 3)
	assert.NoError(t, validators.NewGenerationValidator().ValidateFanOut(f))
}

func TestGenerator_Stream(t *testing.T) {
	g := NewGenerator(0)
	var b strings.Builder
	require.NoError(t, g.Stream(context.Background(), "Write a summary. Idea: soup", func(d string) error {
		b.WriteString(d)
		return nil
	}))
	assert.Equal(t, "Mock answer about soup", b.String())
}

func TestGenerator_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGenerator(0).Complete(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
}
