package config

import (
	"fmt"
	"time"
)

// CanvasConfig holds the geometry and limits shared by sizing, layout and
// expansion so that all of them agree on node dimensions
type CanvasConfig struct {
	// Node geometry
	NodeWidth          float64
	DefaultNodeSpacing float64
	CollapsedHeight    float64
	RootIntakeHeight   float64

	// Tree layout
	LayoutMarginX       float64
	LayoutMarginY       float64
	LayoutRowGap        float64
	LayoutDefaultHeight float64
	LayoutAnimation     time.Duration

	// Fan-out placement
	FanOutRadiusOffset float64
	SectionOffsetY     float64
	SectionStepY       float64
	ExpandChildStepY   float64

	// Prompt context
	ParentContextChars  int
	SiblingContextChars int

	// Generation
	RewriteMaxWords  int
	TitleMaxChars    int
	Placeholder      string
	AutosaveDebounce time.Duration
}

// DefaultCanvasConfig returns the default canvas configuration
func DefaultCanvasConfig() *CanvasConfig {
	return &CanvasConfig{
		NodeWidth:          320,
		DefaultNodeSpacing: 40,
		CollapsedHeight:    60,
		RootIntakeHeight:   60,

		LayoutMarginX:       60,
		LayoutMarginY:       140,
		LayoutRowGap:        260,
		LayoutDefaultHeight: 54,
		LayoutAnimation:     160 * time.Millisecond,

		FanOutRadiusOffset: 200,
		SectionOffsetY:     160,
		SectionStepY:       180,
		ExpandChildStepY:   200,

		ParentContextChars:  500,
		SiblingContextChars: 300,

		RewriteMaxWords:  200,
		TitleMaxChars:    60,
		Placeholder:      "...",
		AutosaveDebounce: 800 * time.Millisecond,
	}
}

// DevelopmentCanvasConfig saves sooner so local edits show up in the store quickly
func DevelopmentCanvasConfig() *CanvasConfig {
	config := DefaultCanvasConfig()
	config.AutosaveDebounce = 300 * time.Millisecond
	return config
}

// LoadCanvasConfig loads canvas configuration based on environment
func LoadCanvasConfig(environment string) *CanvasConfig {
	switch environment {
	case "development":
		return DevelopmentCanvasConfig()
	default:
		return DefaultCanvasConfig()
	}
}

// Validate checks if the configuration is valid
func (c *CanvasConfig) Validate() error {
	if c.NodeWidth <= 0 {
		return fmt.Errorf("node width must be positive, got %v", c.NodeWidth)
	}
	if c.LayoutMarginX < 0 || c.LayoutMarginY < 0 {
		return fmt.Errorf("layout margins must not be negative")
	}
	if c.ParentContextChars <= 0 || c.SiblingContextChars <= 0 {
		return fmt.Errorf("context limits must be positive")
	}
	if c.AutosaveDebounce < 0 {
		return fmt.Errorf("autosave debounce must not be negative")
	}
	return nil
}
