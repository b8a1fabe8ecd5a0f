package commands

import (
	"ideacanvas/application/ports"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/pkg/utils"
)

// ExpandFanOutCommand materialises a fan-out response below NodeID
type ExpandFanOutCommand struct {
	ChatID   string               `json:"chat_id" validate:"required"`
	NodeID   valueobjects.ShapeID `json:"node_id" validate:"required"`
	Response entities.FanOut      `json:"response"`
}

// Validate validates the command. The response shape is checked by the
// expansion itself
func (c ExpandFanOutCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// RewriteNodeCommand replaces a node's assistant text with a rewrite
type RewriteNodeCommand struct {
	ChatID      string               `json:"chat_id" validate:"required"`
	NodeID      valueobjects.ShapeID `json:"node_id" validate:"required"`
	Instruction string               `json:"instruction" validate:"required,max=5000"`
	MaxWords    int                  `json:"max_words" validate:"min=0,max=5000"`
}

// Validate validates the command
func (c RewriteNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SmartRewriteCommand lets the generator replace or expand a node. An empty
// instruction falls back to the node's user message
type SmartRewriteCommand struct {
	ChatID      string               `json:"chat_id" validate:"required"`
	NodeID      valueobjects.ShapeID `json:"node_id" validate:"required"`
	Instruction string               `json:"instruction" validate:"max=5000"`
}

// Validate validates the command
func (c SmartRewriteCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SendMessageCommand asks a question on a node and streams the answer.
// OnEvent, when set, sees every stream event in order
type SendMessageCommand struct {
	ChatID  string                         `json:"chat_id" validate:"required"`
	NodeID  valueobjects.ShapeID           `json:"node_id" validate:"required"`
	Message string                         `json:"message" validate:"required,max=20000"`
	OnEvent func(ports.StreamEvent) error `json:"-" validate:"-"`
}

// Validate validates the command
func (c SendMessageCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SubmitRootIntakeCommand turns a root intake node's idea into a document tree
type SubmitRootIntakeCommand struct {
	ChatID string               `json:"chat_id" validate:"required"`
	NodeID valueobjects.ShapeID `json:"node_id" validate:"required"`
	Idea   string               `json:"idea" validate:"max=20000"`
}

// Validate validates the command. An empty idea is rejected by the submit
// flow so the node is never marked as submitting
func (c SubmitRootIntakeCommand) Validate() error {
	return utils.ValidateStruct(c)
}
