package validators

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"ideacanvas/domain/core/entities"
	"ideacanvas/pkg/errors"
)

// GenerationValidator checks the shape of generated structures before
// anything is written to a canvas. A response that fails here must not be
// applied at all. Counts and titles are not limited
type GenerationValidator struct{}

// NewGenerationValidator creates a validator
func NewGenerationValidator() *GenerationValidator {
	return &GenerationValidator{}
}

type rawFanOut struct {
	Branches json.RawMessage `json:"branches"`
}

type rawBranch struct {
	Title    *string         `json:"title"`
	File     *string         `json:"file"`
	Sections json.RawMessage `json:"sections"`
}

// ParseFanOut decodes a fan-out response, rejecting it when branches is not
// an array or any branch's sections is not an array
func (v *GenerationValidator) ParseFanOut(data []byte) (entities.FanOut, error) {
	var raw rawFanOut
	if err := json.Unmarshal(data, &raw); err != nil {
		return entities.FanOut{}, errors.ErrMalformedFanOut.Wrap(err)
	}
	if !isArray(raw.Branches) {
		return entities.FanOut{}, errors.ErrMalformedFanOut.Wrap(fmt.Errorf("branches must be an array"))
	}

	var branches []json.RawMessage
	if err := json.Unmarshal(raw.Branches, &branches); err != nil {
		return entities.FanOut{}, errors.ErrMalformedFanOut.Wrap(err)
	}

	out := entities.FanOut{Branches: make([]entities.FanOutBranch, 0, len(branches))}
	for i, b := range branches {
		var rb rawBranch
		if err := json.Unmarshal(b, &rb); err != nil {
			return entities.FanOut{}, errors.ErrMalformedFanOut.Wrap(fmt.Errorf("branch %d: %w", i, err))
		}
		if !isArray(rb.Sections) {
			return entities.FanOut{}, errors.ErrMalformedFanOut.Wrap(fmt.Errorf("branch %d: sections must be an array", i))
		}
		var sections []entities.FanOutSection
		if err := json.Unmarshal(rb.Sections, &sections); err != nil {
			return entities.FanOut{}, errors.ErrMalformedFanOut.Wrap(fmt.Errorf("branch %d: %w", i, err))
		}
		branch := entities.FanOutBranch{Sections: sections}
		if rb.Title != nil {
			branch.Title = *rb.Title
		}
		if rb.File != nil {
			branch.File = *rb.File
		}
		if branch.Sections == nil {
			branch.Sections = []entities.FanOutSection{}
		}
		out.Branches = append(out.Branches, branch)
	}

	if err := v.ValidateFanOut(out); err != nil {
		return entities.FanOut{}, err
	}
	return out, nil
}

// ValidateFanOut checks an already typed fan-out. Nil slices stand for
// missing arrays
func (v *GenerationValidator) ValidateFanOut(f entities.FanOut) error {
	validationErrors := errors.NewValidationErrors()

	if f.Branches == nil {
		validationErrors.Add("branches", "branches must be an array")
	}
	for i, b := range f.Branches {
		if b.Sections == nil {
			validationErrors.Add(fmt.Sprintf("branches[%d].sections", i), "sections must be an array")
		}
	}

	if validationErrors.HasErrors() {
		return errors.ErrMalformedFanOut.Wrap(validationErrors)
	}
	return nil
}

// ValidateDecision checks a smart rewrite decision
func (v *GenerationValidator) ValidateDecision(d entities.Decision) error {
	switch d.Action {
	case entities.ActionReplace:
		if strings.TrimSpace(d.Content) == "" {
			return errors.ErrInvalidGenerationOutput.Wrap(fmt.Errorf("replace requires content"))
		}
		return nil
	case entities.ActionExpand:
		if len(d.Branches) == 0 {
			return errors.ErrInvalidGenerationOutput.Wrap(fmt.Errorf("expand requires at least one branch"))
		}
		return nil
	default:
		return errors.ErrInvalidGenerationOutput.Wrap(fmt.Errorf("unknown action %q", d.Action))
	}
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
