package nodetypes

import (
	"fmt"
	"math"

	"ideacanvas/domain/config"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
)

// Port is an attachment point in node-local coordinates
type Port struct {
	ID       valueobjects.PortID   `json:"id"`
	Terminal valueobjects.Terminal `json:"terminal"`
	X        float64               `json:"x"`
	Y        float64               `json:"y"`
}

// Definition is the behaviour table for one node kind.
// Every method is a pure function of its arguments
type Definition interface {
	Kind() entities.NodeKind
	Default() entities.Node
	// Migrate fills every missing or malformed field with its default and never fails
	Migrate(raw map[string]any) entities.Node
	Width(n entities.Node) float64
	Height(n entities.Node, width float64) float64
	Ports(n entities.Node, width, height float64) map[valueobjects.PortID]Port
}

// Registry maps node kinds to their definitions
type Registry struct {
	defs     map[entities.NodeKind]Definition
	fallback entities.NodeKind
}

// NewRegistry creates a registry holding the built-in node kinds
func NewRegistry(cfg *config.CanvasConfig, metrics TextMetrics) *Registry {
	r := &Registry{
		defs:     make(map[entities.NodeKind]Definition),
		fallback: entities.KindMessage,
	}
	r.register(&messageDefinition{cfg: cfg, metrics: metrics})
	r.register(&rootIntakeDefinition{cfg: cfg})
	return r
}

// NewDefaultRegistry creates a registry with default geometry
func NewDefaultRegistry() *Registry {
	return NewRegistry(config.DefaultCanvasConfig(), DefaultTextMetrics())
}

func (r *Registry) register(def Definition) {
	r.defs[def.Kind()] = def
}

// For returns the definition that owns n
func (r *Registry) For(n entities.Node) Definition {
	if def, ok := r.defs[n.Kind()]; ok {
		return def
	}
	return r.defs[r.fallback]
}

// Default returns a fully populated node of kind
func (r *Registry) Default(kind entities.NodeKind) (entities.Node, error) {
	def, ok := r.defs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
	return def.Default(), nil
}

// Migrate turns a loosely typed persisted node into a current one.
// The "type" field selects the kind; unknown or missing kinds become messages
func (r *Registry) Migrate(raw map[string]any) entities.Node {
	kind := r.fallback
	if tag, ok := raw["type"].(string); ok {
		if parsed, known := entities.ParseNodeKind(tag); known {
			kind = parsed
		}
	}
	return r.defs[kind].Migrate(raw)
}

// Size returns the computed width and height of n
func (r *Registry) Size(n entities.Node) (float64, float64) {
	def := r.For(n)
	w := def.Width(n)
	return w, def.Height(n, w)
}

// Ports returns the ports of n at its computed size
func (r *Registry) Ports(n entities.Node) map[valueobjects.PortID]Port {
	def := r.For(n)
	w, h := r.Size(n)
	return def.Ports(n, w, h)
}

// ToRaw is the inverse of Migrate for current nodes
func ToRaw(n entities.Node) map[string]any {
	raw := map[string]any{"type": string(n.Kind())}
	switch v := n.(type) {
	case entities.MessageNode:
		raw["title"] = v.Title
		raw["userMessage"] = v.UserMessage
		raw["assistantMessage"] = v.AssistantMessage
		raw["isExpanded"] = v.IsExpanded
		raw["isEditingTitle"] = v.IsEditingTitle
	case entities.RootIntakeNode:
		raw["title"] = v.Title
		raw["idea"] = v.Idea
		raw["isSubmitting"] = v.IsSubmitting
	}
	width, height := n.SizeOverride()
	if width != nil {
		raw["width"] = *width
	}
	if height != nil {
		raw["height"] = *height
	}
	return raw
}

// verticalPorts is the input-on-top, output-on-bottom pair all kinds share
func verticalPorts(width, height float64) map[valueobjects.PortID]Port {
	return map[valueobjects.PortID]Port{
		valueobjects.PortInput:  {ID: valueobjects.PortInput, Terminal: valueobjects.TerminalEnd, X: width / 2, Y: 0},
		valueobjects.PortOutput: {ID: valueobjects.PortOutput, Terminal: valueobjects.TerminalStart, X: width / 2, Y: height},
	}
}

func stringField(raw map[string]any, key, fallback string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return fallback
}

func boolField(raw map[string]any, key string, fallback bool) bool {
	if v, ok := raw[key].(bool); ok {
		return v
	}
	return fallback
}

// dimensionField keeps positive finite numbers only
func dimensionField(raw map[string]any, key string) *float64 {
	var f float64
	switch v := raw[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case interface{ Float64() (float64, error) }:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return entities.Float(f)
}

func widthOr(n entities.Node, fallback float64) float64 {
	if w, _ := n.SizeOverride(); w != nil {
		return *w
	}
	return fallback
}
