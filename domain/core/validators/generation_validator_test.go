package validators

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideacanvas/domain/core/entities"
	"ideacanvas/pkg/errors"
)

func TestParseFanOut(t *testing.T) {
	v := NewGenerationValidator()

	t.Run("valid response", func(t *testing.T) {
		data := []byte(`{"branches":[{"title":"Brief","file":"product_brief.md","sections":[
			{"title":"Problem","bullets":["a","b"]},
			{"title":"Users","content":"Everyone"}
		]}]}`)

		got, err := v.ParseFanOut(data)

		require.NoError(t, err)
		require.Len(t, got.Branches, 1)
		assert.Equal(t, "product_brief.md", got.Branches[0].File)
		require.Len(t, got.Branches[0].Sections, 2)
		assert.Equal(t, "- a\n- b", got.Branches[0].Sections[0].Body())
		assert.Equal(t, "Everyone", got.Branches[0].Sections[1].Body())
	})

	rejects := map[string]string{
		"missing branches":   `{"items":[]}`,
		"branches not array": `{"branches":{"title":"x"}}`,
		"sections missing":   `{"branches":[{"title":"x"}]}`,
		"sections not array": `{"branches":[{"title":"x","sections":"none"}]}`,
		"bullets not array":  `{"branches":[{"title":"x","sections":[{"title":"s","bullets":"b"}]}]}`,
		"not json":           `branches`,
	}
	for name, body := range rejects {
		t.Run(name, func(t *testing.T) {
			_, err := v.ParseFanOut([]byte(body))
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrMalformedFanOut))
		})
	}

	t.Run("large and untitled branches are allowed", func(t *testing.T) {
		body := `{"branches":[`
		for i := 0; i < 15; i++ {
			if i > 0 {
				body += ","
			}
			body += `{"sections":[`
			for j := 0; j < 25; j++ {
				if j > 0 {
					body += ","
				}
				body += `{"title":"s","content":"c"}`
			}
			body += `]}`
		}
		body += `]}`

		got, err := v.ParseFanOut([]byte(body))

		require.NoError(t, err)
		require.Len(t, got.Branches, 15)
		assert.Len(t, got.Branches[14].Sections, 25)
		assert.Empty(t, got.Branches[0].Title)
	})

	t.Run("empty branch list is allowed", func(t *testing.T) {
		got, err := v.ParseFanOut([]byte(`{"branches":[]}`))
		require.NoError(t, err)
		assert.Empty(t, got.Branches)
	})
}

func TestValidateDecision(t *testing.T) {
	v := NewGenerationValidator()

	assert.NoError(t, v.ValidateDecision(entities.Decision{Action: entities.ActionReplace, Content: "x"}))
	assert.NoError(t, v.ValidateDecision(entities.Decision{Action: entities.ActionExpand, Branches: []entities.Branch{{Title: "a"}}}))

	many := make([]entities.Branch, 30)
	assert.NoError(t, v.ValidateDecision(entities.Decision{Action: entities.ActionExpand, Branches: many}))

	err := v.ValidateDecision(entities.Decision{Action: entities.ActionExpand})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidGenerationOutput))

	err = v.ValidateDecision(entities.Decision{Action: entities.ActionReplace, Content: "  "})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidGenerationOutput))

	err = v.ValidateDecision(entities.Decision{Action: "delete"})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidGenerationOutput))
}
