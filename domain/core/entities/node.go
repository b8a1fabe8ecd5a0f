package entities

// NodeKind discriminates the node variants
type NodeKind string

const (
	KindMessage    NodeKind = "message"
	KindRootIntake NodeKind = "root-intake"

	// kindRootChat is how older documents spelled root-intake
	kindRootChat NodeKind = "rootchat"
)

// ParseNodeKind normalises a persisted kind tag. Unknown tags report false
func ParseNodeKind(s string) (NodeKind, bool) {
	switch NodeKind(s) {
	case KindMessage:
		return KindMessage, true
	case KindRootIntake, kindRootChat:
		return KindRootIntake, true
	default:
		return "", false
	}
}

// Node is the closed set of node variants carried by a node shape.
// Only MessageNode and RootIntakeNode implement it
type Node interface {
	Kind() NodeKind
	// DisplayTitle is the title shown on the node header
	DisplayTitle() string
	// SizeOverride returns the explicit width/height, nil when computed
	SizeOverride() (width, height *float64)

	sealed()
}

// MessageNode is a chat-like message box
type MessageNode struct {
	Title            string   `json:"title"`
	UserMessage      string   `json:"userMessage"`
	AssistantMessage string   `json:"assistantMessage"`
	IsExpanded       bool     `json:"isExpanded"`
	IsEditingTitle   bool     `json:"isEditingTitle"`
	Width            *float64 `json:"width,omitempty"`
	Height           *float64 `json:"height,omitempty"`
}

func (MessageNode) Kind() NodeKind { return KindMessage }
func (n MessageNode) DisplayTitle() string { return n.Title }
func (n MessageNode) SizeOverride() (*float64, *float64) { return n.Width, n.Height }
func (MessageNode) sealed() {}

// RootIntakeNode collects the initial idea a canvas is seeded from
type RootIntakeNode struct {
	Title        string   `json:"title"`
	Idea         string   `json:"idea"`
	IsSubmitting bool     `json:"isSubmitting"`
	Width        *float64 `json:"width,omitempty"`
	Height       *float64 `json:"height,omitempty"`
}

func (RootIntakeNode) Kind() NodeKind { return KindRootIntake }
func (n RootIntakeNode) DisplayTitle() string { return n.Title }
func (n RootIntakeNode) SizeOverride() (*float64, *float64) { return n.Width, n.Height }
func (RootIntakeNode) sealed() {}

// PrimaryText is the text a node contributes to an ancestor prompt context
func PrimaryText(n Node) string {
	switch v := n.(type) {
	case MessageNode:
		if v.AssistantMessage != "" {
			return v.AssistantMessage
		}
		return v.UserMessage
	case RootIntakeNode:
		return v.Idea
	default:
		return ""
	}
}

// AssistantText is the generated text of a node, empty for kinds without one
func AssistantText(n Node) string {
	if m, ok := n.(MessageNode); ok {
		return m.AssistantMessage
	}
	return ""
}

// Float returns a pointer to v, for size overrides
func Float(v float64) *float64 {
	return &v
}
