// Package generation holds the provider-neutral parts of talking to a text
// model: prompt templates and recovery of JSON from free-form replies.
package generation

import (
	"fmt"
	"strings"

	"ideacanvas/pkg/errors"
)

// StripFences removes a surrounding markdown code fence, with or without a
// json language tag
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// braceBlock returns the span from the first '{' to the last '}'
func braceBlock(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// DecodeJSON feeds a model reply to decode: first with fences stripped, then,
// if that fails, once more with only the outermost brace block. When both
// fail the result is ErrInvalidGenerationOutput carrying the last cause
func DecodeJSON(text string, decode func([]byte) error) error {
	stripped := StripFences(text)
	err := decode([]byte(stripped))
	if err == nil {
		return nil
	}

	if block, ok := braceBlock(stripped); ok && block != stripped {
		if err = decode([]byte(block)); err == nil {
			return nil
		}
	}
	return errors.ErrInvalidGenerationOutput.Wrap(fmt.Errorf("decode model output: %w", err))
}
