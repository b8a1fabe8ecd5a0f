package entities

import "strings"

// FanOut is a generated breakdown of an idea into document branches
type FanOut struct {
	Branches []FanOutBranch `json:"branches"`
}

// FanOutBranch becomes one child node with a node per section below it
type FanOutBranch struct {
	Title    string          `json:"title"`
	File     string          `json:"file"`
	Sections []FanOutSection `json:"sections"`
}

// FanOutSection carries either prose content or bullet points
type FanOutSection struct {
	Title   string   `json:"title"`
	Content string   `json:"content,omitempty"`
	Bullets []string `json:"bullets,omitempty"`
}

// Body renders the section as node text: the content when present,
// otherwise the bullets as a markdown list
func (s FanOutSection) Body() string {
	if strings.TrimSpace(s.Content) != "" {
		return s.Content
	}
	return "- " + strings.Join(s.Bullets, "\n- ")
}

// Header is the text a branch node starts with
func (b FanOutBranch) Header() string {
	if b.File != "" {
		return "# " + b.File + "\n"
	}
	return "# " + b.Title + "\n"
}

// SmartAction is what a smart rewrite decided to do
type SmartAction string

const (
	ActionReplace SmartAction = "replace"
	ActionExpand  SmartAction = "expand"
)

// Branch is a generated child of a smart expand
type Branch struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Decision is the result of a smart rewrite
type Decision struct {
	Action   SmartAction `json:"action"`
	Content  string      `json:"content,omitempty"`
	Branches []Branch    `json:"branches,omitempty"`
}
