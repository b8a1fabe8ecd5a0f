package handlers

import (
	"context"

	"ideacanvas/application/commands"
	"ideacanvas/application/services"
)

// GenerationHandlers handles the commands that reshape a canvas from
// generated text
type GenerationHandlers struct {
	generation *services.GenerationService
	expansion  *services.ExpansionService
}

// NewGenerationHandlers creates the generation command handlers
func NewGenerationHandlers(generation *services.GenerationService, expansion *services.ExpansionService) *GenerationHandlers {
	return &GenerationHandlers{generation: generation, expansion: expansion}
}

// ExpandFanOut handles ExpandFanOutCommand
func (h *GenerationHandlers) ExpandFanOut(ctx context.Context, cmd commands.ExpandFanOutCommand) error {
	_, err := h.expansion.ExpandFanOut(ctx, cmd.ChatID, cmd.NodeID, cmd.Response)
	return err
}

// RewriteNode handles RewriteNodeCommand
func (h *GenerationHandlers) RewriteNode(ctx context.Context, cmd commands.RewriteNodeCommand) error {
	return h.generation.RewriteNode(ctx, cmd.ChatID, cmd.NodeID, cmd.Instruction, cmd.MaxWords)
}

// SmartRewrite handles SmartRewriteCommand
func (h *GenerationHandlers) SmartRewrite(ctx context.Context, cmd commands.SmartRewriteCommand) error {
	return h.generation.SmartRewrite(ctx, cmd.ChatID, cmd.NodeID, cmd.Instruction)
}

// SendMessage handles SendMessageCommand
func (h *GenerationHandlers) SendMessage(ctx context.Context, cmd commands.SendMessageCommand) error {
	return h.generation.SendMessage(ctx, cmd.ChatID, cmd.NodeID, cmd.Message, cmd.OnEvent)
}

// SubmitRootIntake handles SubmitRootIntakeCommand
func (h *GenerationHandlers) SubmitRootIntake(ctx context.Context, cmd commands.SubmitRootIntakeCommand) error {
	_, err := h.generation.SubmitRootIntake(ctx, cmd.ChatID, cmd.NodeID, cmd.Idea)
	return err
}
