package ports

import (
	"context"
	"time"

	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/events"
	"ideacanvas/domain/graph"
)

// ShapeStore is the canvas capability the application mutates through.
// Reads come from graph.BoundsReader; writes to missing nodes report false
type ShapeStore interface {
	graph.BoundsReader

	// Ports is the port cache bound to this canvas
	Ports() *graph.PortCache
	NodeIDs() []valueobjects.ShapeID

	CreateNode(id valueobjects.ShapeID, position valueobjects.Point, node entities.Node) error
	UpdateNode(id valueobjects.ShapeID, fn func(entities.Node) entities.Node) (bool, error)
	MoveNode(id valueobjects.ShapeID, position valueobjects.Point) error
	DeleteNode(id valueobjects.ShapeID) error
	Connect(from valueobjects.ShapeID, fromPort valueobjects.PortID, to valueobjects.ShapeID, toPort valueobjects.PortID) (valueobjects.ShapeID, error)
	AnimateMove(moves []entities.Move, duration time.Duration) error

	// Batch runs fn as one undoable unit and restores the prior state if fn
	// fails. Batches must not nest
	Batch(fn func() error) error
}

// Canvases hands out per-chat canvases. Acquire grants exclusive mutation
// until release is called; View is for reads that tolerate concurrent writes
type Canvases interface {
	Acquire(ctx context.Context, chatID string) (store ShapeStore, release func(), err error)
	View(ctx context.Context, chatID string) (ShapeStore, error)
	Document(ctx context.Context, chatID string) ([]byte, error)
	Replace(ctx context.Context, chatID string, doc []byte) error
}

// SnapshotStore persists opaque canvas documents keyed by chat id
type SnapshotStore interface {
	// Load returns false when nothing was saved for chatID yet
	Load(ctx context.Context, chatID string) ([]byte, bool, error)
	Save(ctx context.Context, chatID string, doc []byte) error
}

// RewriteRequest asks for replacement content of one node
type RewriteRequest struct {
	Title       string `json:"title"`
	ContentMD   string `json:"content_md"`
	Instruction string `json:"instruction"`
	MaxWords    int    `json:"max_words,omitempty"`
}

// SmartRequest asks the generator to either replace or expand a node
type SmartRequest struct {
	Instruction    string `json:"instruction"`
	CurrentContent string `json:"currentContent"`
	CurrentTitle   string `json:"currentTitle"`
	ParentContext  string `json:"parentContext,omitempty"`
}

// Generator is the AI text service boundary. Implementations report
// overload with an error matching errors.ErrGenerationOverloaded and
// unusable output with errors.ErrInvalidGenerationOutput
type Generator interface {
	Rewrite(ctx context.Context, req RewriteRequest) (string, error)
	SmartDecide(ctx context.Context, req SmartRequest) (entities.Decision, error)
	FanOut(ctx context.Context, idea string) (entities.FanOut, error)
	// Complete answers a free-form prompt
	Complete(ctx context.Context, prompt string) (string, error)
	// Stream answers a free-form prompt chunk by chunk, in order
	Stream(ctx context.Context, prompt string, onDelta func(delta string) error) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// StreamEventType names the live updates pushed to canvas clients
type StreamEventType string

const (
	StreamNodeCreate    StreamEventType = "node-create"
	StreamNodeTextDelta StreamEventType = "node-text-delta"
	StreamNodeDone      StreamEventType = "node-done"
	StreamLayout        StreamEventType = "layout"
	StreamError         StreamEventType = "error"
)

// StreamEvent is one live update for a canvas
type StreamEvent struct {
	Type       StreamEventType      `json:"type"`
	NodeID     valueobjects.ShapeID `json:"nodeId,omitempty"`
	Delta      string               `json:"delta,omitempty"`
	Moves      []entities.Move      `json:"moves,omitempty"`
	DurationMS int64                `json:"durationMs,omitempty"`
	Error      string               `json:"error,omitempty"`
	Retryable  bool                 `json:"retryable,omitempty"`
}

// Notifier pushes live updates to everyone watching a canvas
type Notifier interface {
	Notify(ctx context.Context, chatID string, event StreamEvent) error
}
