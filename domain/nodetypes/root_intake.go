package nodetypes

import (
	"ideacanvas/domain/config"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
)

const rootIntakeTitle = "Root Chat"

type rootIntakeDefinition struct {
	cfg *config.CanvasConfig
}

func (d *rootIntakeDefinition) Kind() entities.NodeKind { return entities.KindRootIntake }

func (d *rootIntakeDefinition) Default() entities.Node {
	return entities.RootIntakeNode{Title: rootIntakeTitle}
}

func (d *rootIntakeDefinition) Migrate(raw map[string]any) entities.Node {
	return entities.RootIntakeNode{
		Title:        stringField(raw, "title", rootIntakeTitle),
		Idea:         stringField(raw, "idea", ""),
		IsSubmitting: boolField(raw, "isSubmitting", false),
		Width:        dimensionField(raw, "width"),
		Height:       dimensionField(raw, "height"),
	}
}

func (d *rootIntakeDefinition) Width(n entities.Node) float64 {
	return widthOr(n, d.cfg.NodeWidth)
}

func (d *rootIntakeDefinition) Height(n entities.Node, _ float64) float64 {
	if _, h := n.SizeOverride(); h != nil {
		return *h
	}
	return d.cfg.RootIntakeHeight
}

func (d *rootIntakeDefinition) Ports(n entities.Node, width, height float64) map[valueobjects.PortID]Port {
	return verticalPorts(width, height)
}
