package handlers

import (
	"ideacanvas/application/commands"
	"ideacanvas/application/commands/bus"
)

// Register wires every canvas command to its handler
func Register(b *bus.CommandBus, nodes *NodeHandlers, generation *GenerationHandlers) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.CreateNodeCommand{}, bus.HandlerFor(nodes.CreateNode)},
		{commands.UpdateNodeCommand{}, bus.HandlerFor(nodes.UpdateNode)},
		{commands.DeleteNodeCommand{}, bus.HandlerFor(nodes.DeleteNode)},
		{commands.ConnectNodesCommand{}, bus.HandlerFor(nodes.ConnectNodes)},
		{commands.LayoutTreeCommand{}, bus.HandlerFor(nodes.LayoutTree)},
		{commands.ExpandFanOutCommand{}, bus.HandlerFor(generation.ExpandFanOut)},
		{commands.RewriteNodeCommand{}, bus.HandlerFor(generation.RewriteNode)},
		{commands.SmartRewriteCommand{}, bus.HandlerFor(generation.SmartRewrite)},
		{commands.SendMessageCommand{}, bus.HandlerFor(generation.SendMessage)},
		{commands.SubmitRootIntakeCommand{}, bus.HandlerFor(generation.SubmitRootIntake)},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}
