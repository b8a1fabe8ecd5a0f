package valueobjects

import "fmt"

// Terminal is the role of a port on a connection
type Terminal string

const (
	// TerminalStart is the outgoing side of a connection
	TerminalStart Terminal = "start"
	// TerminalEnd is the incoming side of a connection
	TerminalEnd Terminal = "end"
)

// Valid reports whether t is a known terminal
func (t Terminal) Valid() bool {
	return t == TerminalStart || t == TerminalEnd
}

// Opposite returns the other side of a connection
func (t Terminal) Opposite() Terminal {
	if t == TerminalStart {
		return TerminalEnd
	}
	return TerminalStart
}

// ParseTerminal parses a terminal name
func ParseTerminal(s string) (Terminal, error) {
	t := Terminal(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid terminal %q: must be start or end", s)
	}
	return t, nil
}

// PortID names an attachment point on a node
type PortID string

const (
	PortInput  PortID = "input"
	PortOutput PortID = "output"
)

// Point is a position in canvas coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by (dx, dy)
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Bounds is an axis-aligned box in canvas coordinates
type Bounds struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (b Bounds) MidX() float64 { return b.X + b.W/2 }
func (b Bounds) MidY() float64 { return b.Y + b.H/2 }
func (b Bounds) MaxX() float64 { return b.X + b.W }
func (b Bounds) MaxY() float64 { return b.Y + b.H }
