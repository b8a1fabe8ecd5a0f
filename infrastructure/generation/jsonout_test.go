package generation

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideacanvas/application/ports"
	"ideacanvas/pkg/errors"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "upper case tag", in: "```JSON\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "surrounding space", in: "  {\"a\":1}  \n", want: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	decodeInto := func(v any) func([]byte) error {
		return func(b []byte) error { return json.Unmarshal(b, v) }
	}

	t.Run("fenced reply", func(t *testing.T) {
		var got map[string]int
		require.NoError(t, DecodeJSON("```json\n{\"a\":1}\n```", decodeInto(&got)))
		assert.Equal(t, 1, got["a"])
	})

	t.Run("chatter around the object", func(t *testing.T) {
		var got map[string]int
		require.NoError(t, DecodeJSON("Sure! Here it is: {\"a\":2} hope that helps", decodeInto(&got)))
		assert.Equal(t, 2, got["a"])
	})

	t.Run("no object at all", func(t *testing.T) {
		var got map[string]int
		err := DecodeJSON("I cannot help with that", decodeInto(&got))
		assert.True(t, stderrors.Is(err, errors.ErrInvalidGenerationOutput))
	})

	t.Run("broken object", func(t *testing.T) {
		var got map[string]int
		err := DecodeJSON("here {\"a\": } there", decodeInto(&got))
		assert.True(t, stderrors.Is(err, errors.ErrInvalidGenerationOutput))
	})
}

func TestPrompts(t *testing.T) {
	rewrite := RewritePrompt(ports.RewriteRequest{Title: "Problem", ContentMD: "old", Instruction: "shorter"})
	assert.Contains(t, rewrite, `"Problem"`)
	assert.Contains(t, rewrite, "<= 200 words")
	assert.Contains(t, rewrite, "---\nold\n---")

	smart := SmartRewritePrompt(ports.SmartRequest{Instruction: "split", CurrentTitle: "T"})
	assert.Contains(t, smart, "Content: (empty)")
	assert.NotContains(t, smart, "Context from Connected Nodes")

	smart = SmartRewritePrompt(ports.SmartRequest{Instruction: "split", CurrentTitle: "T", ParentContext: "## Parent Nodes (Context)"})
	assert.Contains(t, smart, "## Context from Connected Nodes\n## Parent Nodes (Context)")

	fan := FanOutPrompt("cooking app")
	for _, f := range ProductPack {
		assert.Contains(t, fan, f.File)
	}
	assert.Contains(t, fan, "Tailor content to this idea: cooking app")

	// the schema embedded in the prompt is itself a valid, complete pack
	block, ok := braceBlock(fan)
	require.True(t, ok)
	var schema map[string][]map[string]any
	require.NoError(t, json.Unmarshal([]byte(block), &schema))
	assert.Len(t, schema["branches"], 3)
}
