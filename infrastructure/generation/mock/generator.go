// Package mock is a deterministic generator used when no model API key is
// configured. Answers depend only on the request.
package mock

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ideacanvas/application/ports"
	"ideacanvas/domain/core/entities"
	"ideacanvas/infrastructure/generation"
)

// Generator implements ports.Generator without network access
type Generator struct {
	// Delay is slept before every answer to mimic model latency
	Delay time.Duration
}

var _ ports.Generator = (*Generator)(nil)

// NewGenerator creates a mock generator
func NewGenerator(delay time.Duration) *Generator {
	return &Generator{Delay: delay}
}

var countPattern = regexp.MustCompile(`\b(\d+)\b`)

var expandWords = []string{"divide", "split", "break down", "separately", "create"}

// Rewrite implements ports.Generator
func (g *Generator) Rewrite(ctx context.Context, req ports.RewriteRequest) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	return revise(req.ContentMD, req.Instruction), nil
}

func revise(content, instruction string) string {
	body := strings.TrimSpace(content)
	if body == "" {
		body = "(empty)"
	}
	return fmt.Sprintf("%s\n\n_Revised: %s_", body, strings.TrimSpace(instruction))
}

// SmartDecide expands when the instruction reads like a split request,
// producing as many branches as the first number in it (default three)
func (g *Generator) SmartDecide(ctx context.Context, req ports.SmartRequest) (entities.Decision, error) {
	if err := g.wait(ctx); err != nil {
		return entities.Decision{}, err
	}

	instruction := strings.ToLower(req.Instruction)
	expand := false
	for _, w := range expandWords {
		if strings.Contains(instruction, w) {
			expand = true
			break
		}
	}
	if !expand {
		return entities.Decision{Action: entities.ActionReplace, Content: revise(req.CurrentContent, req.Instruction)}, nil
	}

	n := 3
	if m := countPattern.FindStringSubmatch(instruction); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 && v <= 8 {
			n = v
		}
	}
	branches := make([]entities.Branch, n)
	for i := range branches {
		branches[i] = entities.Branch{
			Title:   fmt.Sprintf("%s %d", req.CurrentTitle, i+1),
			Content: fmt.Sprintf("Part %d of %d: %s", i+1, n, req.Instruction),
		}
	}
	return entities.Decision{Action: entities.ActionExpand, Branches: branches}, nil
}

// FanOut answers with the product pack, every section a short bullet list
func (g *Generator) FanOut(ctx context.Context, idea string) (entities.FanOut, error) {
	if err := g.wait(ctx); err != nil {
		return entities.FanOut{}, err
	}

	out := entities.FanOut{Branches: make([]entities.FanOutBranch, 0, len(generation.ProductPack))}
	for _, f := range generation.ProductPack {
		branch := entities.FanOutBranch{Title: f.Title, File: f.File}
		for _, s := range f.Sections {
			branch.Sections = append(branch.Sections, entities.FanOutSection{
				Title:   s,
				Bullets: []string{fmt.Sprintf("%s for %s", s, idea), "Open questions", "Next steps"},
			})
		}
		out.Branches = append(out.Branches, branch)
	}
	return out, nil
}

// Complete echoes the last line of the prompt
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	return mockAnswer(prompt), nil
}

// Stream delivers Complete's answer word by word
func (g *Generator) Stream(ctx context.Context, prompt string, onDelta func(string) error) error {
	answer, err := g.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	words := strings.SplitAfter(answer, " ")
	for _, w := range words {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onDelta(w); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) wait(ctx context.Context) error {
	if g.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func mockAnswer(prompt string) string {
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if i := strings.Index(last, "Idea:"); i >= 0 {
		last = strings.TrimSpace(last[i+len("Idea:"):])
	}
	if last == "" {
		last = "nothing"
	}
	return "Mock answer about " + last
}
