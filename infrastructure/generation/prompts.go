package generation

import (
	"fmt"
	"strings"

	"ideacanvas/application/ports"
)

// DefaultMaxWords bounds a rewrite when the caller gives no limit
const DefaultMaxWords = 200

// RewritePrompt asks for replacement markdown for one section
func RewritePrompt(req ports.RewriteRequest) string {
	maxWords := req.MaxWords
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return fmt.Sprintf(`You are revising ONLY the section titled %q.
Return ONLY the updated content for that section in Markdown.
Do not add unrelated sections. Keep it concise (<= %d words).

Current content:
---
%s
---

Instruction:
%s
`, req.Title, maxWords, req.ContentMD, req.Instruction)
}

// SmartRewritePrompt asks the model to choose between replacing the node
// content and expanding it into children
func SmartRewritePrompt(req ports.SmartRequest) string {
	var b strings.Builder
	b.WriteString(`You are an AI assistant helping to manage a visual workflow canvas for product ideation.

Your task: Analyze the user's instruction and decide whether to:
1. **REPLACE**: Simply update the current node's content
2. **EXPAND**: Create multiple child nodes with divided content

`)
	if req.ParentContext != "" {
		b.WriteString("\n## Context from Connected Nodes\n")
		b.WriteString(req.ParentContext)
		b.WriteString("\n")
	}

	content := req.CurrentContent
	if content == "" {
		content = "(empty)"
	}
	fmt.Fprintf(&b, `
## Current Node
Title: %q
Content: %s

## User Instruction
%q

## Decision Rules
- Use **REPLACE** if: simple edit, clarification, rephrasing, adding details to current content
- Use **EXPAND** if: instruction contains "divide", "split", "break down", "create N [things]", "elaborate on X, Y, Z separately", mentions specific number of items

## Output Format (JSON only)
If REPLACE:
{
  "action": "replace",
  "content": "updated markdown content here"
}

If EXPAND (e.g., "divide into 3 personas"):
{
  "action": "expand",
  "branches": [
    { "title": "Persona 1: Sarah", "content": "Biography: ...\nNeeds: ..." },
    { "title": "Persona 2: John", "content": "..." }
  ]
}

Return ONLY valid JSON. No explanations.`, req.CurrentTitle, content, req.Instruction)
	return b.String()
}

// PackFile is one document of the fixed product pack
type PackFile struct {
	Title    string
	File     string
	Sections []string
}

// ProductPack is the set of documents a fan-out produces
var ProductPack = []PackFile{
	{
		Title: "Product Brief",
		File:  "product_brief.md",
		Sections: []string{
			"Product Summary",
			"Problem Statement",
			"Target Audience / User Personas",
			"Key Features & Benefits",
			"Unique Value Proposition (UVP)",
			"Primary Use Cases & Scenarios",
		},
	},
	{
		Title: "Technical Specification",
		File:  "technical_spec.md",
		Sections: []string{
			"System Architecture Overview",
			"Core Components & Modules",
			"Data Models & Schema",
			"API Endpoints & Contracts",
			"Key Algorithms & Business Logic",
			"Technology Stack",
			"Dependencies & Integrations",
		},
	},
	{
		Title: "Codebase Guide",
		File:  "codebase_guide.md",
		Sections: []string{
			"Project Structure Overview",
			"Local Setup & Installation",
			"Coding Standards & Style Guide",
			"Testing Strategy",
			"Deployment Process",
			"Key Abstractions & Design Patterns",
		},
	},
}

// FanOutPrompt asks for the product pack as JSON, tailored to idea
func FanOutPrompt(idea string) string {
	var b strings.Builder
	b.WriteString("You are an assistant that creates a structured product pack as JSON.\n")
	b.WriteString("Follow this exact schema and do not include explanations.\n\n")
	b.WriteString("{\n  \"branches\": [\n")
	for i, f := range ProductPack {
		fmt.Fprintf(&b, "    {\n      \"title\": %q,\n      \"file\": %q,\n      \"sections\": [\n", f.Title, f.File)
		for j, s := range f.Sections {
			sep := ","
			if j == len(f.Sections)-1 {
				sep = ""
			}
			fmt.Fprintf(&b, "        { \"title\": %q, \"content\": \"...\" }%s\n", s, sep)
		}
		sep := ","
		if i == len(ProductPack)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "      ]\n    }%s\n", sep)
	}
	b.WriteString("  ]\n}\n\n")
	fmt.Fprintf(&b, `Constraints:
- Use concise, well-formatted Markdown for each section's content.
- Favor paragraphs, short lists, and inline headers where helpful.
- Tailor content to this idea: %s
- Titles and headings must be terse; NEVER include meta phrases like "Here are", "Options", "Below are", "In this section".
- If a project name is needed, use a single-word codename (e.g., "Flux") with no extra words.
- Start content directly; avoid prefaces like "Here are the options..." or similar.
- Output strictly valid JSON.`, idea)
	return b.String()
}
