package nodetypes

import (
	"math"
	"strings"

	"github.com/mattn/go-runewidth"
)

// TextMetrics approximates how a block of body text wraps inside a node.
// Widths are counted in terminal cells (wide runes take two) and scaled by
// CellWidth, which keeps the result a pure function of the text
type TextMetrics struct {
	FontSize   float64
	LineHeight float64
	// CellWidth is the rendered width of one cell as a fraction of FontSize
	CellWidth float64
}

// DefaultTextMetrics matches the 14px body font used by message nodes
func DefaultTextMetrics() TextMetrics {
	return TextMetrics{FontSize: 14, LineHeight: 1.5, CellWidth: 0.55}
}

// Lines returns the number of wrapped lines text occupies at maxWidth pixels
func (m TextMetrics) Lines(text string, maxWidth float64) int {
	if text == "" {
		return 0
	}
	cellPx := m.FontSize * m.CellWidth
	maxCells := 1
	if cellPx > 0 && maxWidth > cellPx {
		maxCells = int(math.Floor(maxWidth / cellPx))
	}

	lines := 0
	for _, paragraph := range strings.Split(text, "\n") {
		lines += wrapParagraph(paragraph, maxCells)
	}
	return lines
}

// Height returns the pixel height of text wrapped at maxWidth
func (m TextMetrics) Height(text string, maxWidth float64) float64 {
	return float64(m.Lines(text, maxWidth)) * m.FontSize * m.LineHeight
}

func wrapParagraph(paragraph string, maxCells int) int {
	words := strings.Fields(paragraph)
	if len(words) == 0 {
		return 1
	}

	lines := 1
	used := 0
	for _, word := range words {
		w := runewidth.StringWidth(word)
		if w > maxCells {
			// long words break mid-word across as many lines as they need
			if used > 0 {
				lines++
			}
			lines += (w - 1) / maxCells
			used = w % maxCells
			if used == 0 {
				used = maxCells
			}
			continue
		}
		switch {
		case used == 0:
			used = w
		case used+1+w <= maxCells:
			used += 1 + w
		default:
			lines++
			used = w
		}
	}
	return lines
}
