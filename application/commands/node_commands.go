package commands

import (
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/pkg/utils"
)

// CreateNodeCommand adds a node. NodeID is chosen by the caller so it can
// read the node back afterwards
type CreateNodeCommand struct {
	ChatID  string               `json:"chat_id" validate:"required"`
	NodeID  valueobjects.ShapeID `json:"node_id" validate:"required"`
	Kind    string               `json:"kind" validate:"required,oneof=message root-intake rootchat"`
	X       float64              `json:"x"`
	Y       float64              `json:"y"`
	Title   string               `json:"title" validate:"max=200"`
	Content string               `json:"content" validate:"max=50000"`
}

// Validate validates the command
func (c CreateNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateNodeCommand patches node fields. Nil fields are left alone
type UpdateNodeCommand struct {
	ChatID           string               `json:"chat_id" validate:"required"`
	NodeID           valueobjects.ShapeID `json:"node_id" validate:"required"`
	Title            *string              `json:"title,omitempty" validate:"omitempty,max=200"`
	UserMessage      *string              `json:"userMessage,omitempty" validate:"omitempty,max=50000"`
	AssistantMessage *string              `json:"assistantMessage,omitempty" validate:"omitempty,max=50000"`
	Idea             *string              `json:"idea,omitempty" validate:"omitempty,max=50000"`
	IsExpanded       *bool                `json:"isExpanded,omitempty"`
	IsEditingTitle   *bool                `json:"isEditingTitle,omitempty"`
	Width            *float64             `json:"w,omitempty" validate:"omitempty,gt=0"`
	Height           *float64             `json:"h,omitempty" validate:"omitempty,gt=0"`
}

// Validate validates the command
func (c UpdateNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DeleteNodeCommand removes a node and its connections
type DeleteNodeCommand struct {
	ChatID string               `json:"chat_id" validate:"required"`
	NodeID valueobjects.ShapeID `json:"node_id" validate:"required"`
}

// Validate validates the command
func (c DeleteNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ConnectNodesCommand links FromID's output port to ToID's input port
type ConnectNodesCommand struct {
	ChatID string               `json:"chat_id" validate:"required"`
	FromID valueobjects.ShapeID `json:"from_id" validate:"required"`
	ToID   valueobjects.ShapeID `json:"to_id" validate:"required"`
}

// Validate validates the command
func (c ConnectNodesCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// LayoutTreeCommand lays out the tree below RootID
type LayoutTreeCommand struct {
	ChatID string               `json:"chat_id" validate:"required"`
	RootID valueobjects.ShapeID `json:"root_id" validate:"required"`
}

// Validate validates the command
func (c LayoutTreeCommand) Validate() error {
	return utils.ValidateStruct(c)
}
