package services

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TitlePrompt asks for a short product title for an idea
func TitlePrompt(idea string) string {
	return fmt.Sprintf("Normalize this idea into a clean product title under 60 chars (no quotes). Idea: %s", idea)
}

// SummaryPrompt asks for a bullet summary of an idea
func SummaryPrompt(idea string) string {
	return fmt.Sprintf("Write a concise 3-6 bullet summary for this idea (no preface). Idea: %s", idea)
}

// ChatPrompt prefixes a user message with the text of related nodes
func ChatPrompt(context, message string) string {
	if strings.TrimSpace(context) == "" {
		return message
	}
	return context + "\n\n## Message\n" + message
}

// normalizeTitle trims a generated title and cuts it to limit characters
func normalizeTitle(raw string, limit int) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)
	if limit > 0 && utf8.RuneCountInString(title) > limit {
		title = string([]rune(title)[:limit])
	}
	return title
}
