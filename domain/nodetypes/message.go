package nodetypes

import (
	"math"
	"strings"

	"ideacanvas/domain/config"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
)

const (
	messageTitle       = "New Message"
	messageHeaderH     = 80
	messageInputBarH   = 60
	messageMinBodyH    = 60
	messageMinExpanded = 140
	messageTextPadX    = 40
	messageTextPadY    = 20
)

type messageDefinition struct {
	cfg     *config.CanvasConfig
	metrics TextMetrics
}

func (d *messageDefinition) Kind() entities.NodeKind { return entities.KindMessage }

func (d *messageDefinition) Default() entities.Node {
	return entities.MessageNode{Title: messageTitle}
}

func (d *messageDefinition) Migrate(raw map[string]any) entities.Node {
	return entities.MessageNode{
		Title:            stringField(raw, "title", messageTitle),
		UserMessage:      stringField(raw, "userMessage", ""),
		AssistantMessage: stringField(raw, "assistantMessage", ""),
		IsExpanded:       boolField(raw, "isExpanded", false),
		IsEditingTitle:   boolField(raw, "isEditingTitle", false),
		Width:            dimensionField(raw, "width"),
		Height:           dimensionField(raw, "height"),
	}
}

func (d *messageDefinition) Width(n entities.Node) float64 {
	return widthOr(n, d.cfg.NodeWidth)
}

// Height grows with the assistant text when expanded: header, wrapped text
// and the input bar. An explicit height always wins
func (d *messageDefinition) Height(n entities.Node, width float64) float64 {
	m, _ := n.(entities.MessageNode)
	if m.Height != nil {
		return *m.Height
	}
	if !m.IsExpanded {
		return d.cfg.CollapsedHeight
	}

	height := float64(messageHeaderH)
	if text := strings.TrimSpace(m.AssistantMessage); text != "" {
		textH := d.metrics.Height(text, width-messageTextPadX)
		height += math.Max(messageMinBodyH, textH+messageTextPadY)
	}
	height += messageInputBarH
	return math.Max(messageMinExpanded, height)
}

func (d *messageDefinition) Ports(n entities.Node, width, height float64) map[valueobjects.PortID]Port {
	return verticalPorts(width, height)
}
