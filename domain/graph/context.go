package graph

import (
	"strings"

	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
)

const untitled = "Untitled"

// ContextLimits caps how many characters each node contributes to a prompt
type ContextLimits struct {
	Parent  int
	Sibling int
}

// DefaultContextLimits returns the standard prompt caps
func DefaultContextLimits() ContextLimits {
	return ContextLimits{Parent: 500, Sibling: 300}
}

// BuildPromptContext gathers ancestor and sibling text for a generation
// prompt. It returns "" when no related node has usable content
func BuildPromptContext(r Reader, nodeID valueobjects.ShapeID, limits ContextLimits) string {
	var parts []string

	var parents []string
	for _, id := range Ancestors(r, nodeID) {
		shape, ok := r.Shape(id)
		if !ok {
			continue
		}
		content := entities.PrimaryText(shape.Node)
		if strings.TrimSpace(content) == "" {
			continue
		}
		parents = append(parents, "### "+titleOf(shape.Node)+"\n"+truncate(content, limits.Parent))
	}
	if len(parents) > 0 {
		parts = append(parts, "## Parent Nodes (Context)\n"+strings.Join(parents, "\n\n"))
	}

	var siblings []string
	for _, id := range Siblings(r, nodeID) {
		shape, ok := r.Shape(id)
		if !ok {
			continue
		}
		content := entities.AssistantText(shape.Node)
		if strings.TrimSpace(content) == "" {
			continue
		}
		siblings = append(siblings, "- **"+titleOf(shape.Node)+"**: "+truncate(content, limits.Sibling))
	}
	if len(siblings) > 0 {
		parts = append(parts, "## Sibling Nodes\n"+strings.Join(siblings, "\n"))
	}

	return strings.Join(parts, "\n\n")
}

func titleOf(n entities.Node) string {
	if t := n.DisplayTitle(); t != "" {
		return t
	}
	return untitled
}

// truncate cuts s to max runes and marks the cut with an ellipsis
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
