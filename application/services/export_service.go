package services

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/graph"
)

// PackFiles are the branch documents a fan-out produces, in export order
var PackFiles = []string{"product_brief.md", "technical_spec.md", "codebase_guide.md"}

var packHeader = regexp.MustCompile(`(?m)^#\s*(product_brief\.md|technical_spec\.md|codebase_guide\.md)\s*$`)

var bulletPrefix = regexp.MustCompile(`^[-*]\s?`)

// ExportFile is one generated markdown document
type ExportFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type packSection struct {
	title   string
	bullets []string
}

// ExportService compiles a fanned-out canvas into markdown documents
type ExportService struct {
	canvases ports.Canvases
	logger   *zap.Logger
}

// NewExportService creates an export service
func NewExportService(canvases ports.Canvases, logger *zap.Logger) *ExportService {
	return &ExportService{canvases: canvases, logger: logger}
}

// Export compiles the canvas of chatID
func (s *ExportService) Export(ctx context.Context, chatID string) ([]ExportFile, error) {
	store, err := s.canvases.View(ctx, chatID)
	if err != nil {
		return nil, err
	}
	files := CompilePack(store, store.NodeIDs())
	s.logger.Debug("Canvas exported",
		zap.String("chat_id", chatID),
		zap.Int("files", len(files)),
	)
	return files, nil
}

// CompilePack finds the branch nodes among ids, whose assistant text carries
// a "# <file>.md" header line, and renders each with its child sections as
// docs/<file>. A docs/tasks.md checklist follows when any branch was found.
// When two nodes claim the same file the later id wins
func CompilePack(r graph.Reader, ids []valueobjects.ShapeID) []ExportFile {
	docs := make(map[string]string)
	for _, id := range ids {
		shape, ok := r.Shape(id)
		if !ok {
			continue
		}
		message, ok := shape.Node.(entities.MessageNode)
		if !ok {
			continue
		}
		match := packHeader.FindStringSubmatch(message.AssistantMessage)
		if match == nil {
			continue
		}
		docs[match[1]] = renderDoc(match[1], sections(r, id))
	}
	if len(docs) == 0 {
		return nil
	}

	var files []ExportFile
	tasks := []string{"# Tasks", "", "## Implementation Checklist", ""}
	for _, name := range PackFiles {
		content, ok := docs[name]
		if !ok {
			continue
		}
		files = append(files, ExportFile{Path: "docs/" + name, Content: content})

		tasks = append(tasks, "### "+docTitle(name))
		var bullets []string
		for _, line := range strings.Split(content, "\n") {
			if strings.HasPrefix(line, "- ") {
				bullets = append(bullets, strings.TrimLeft(strings.TrimPrefix(line, "-"), " \t"))
			}
		}
		if len(bullets) == 0 {
			tasks = append(tasks, "- [ ] Review and add details")
		}
		for _, b := range bullets {
			tasks = append(tasks, "- [ ] "+b)
		}
		tasks = append(tasks, "")
	}
	files = append(files, ExportFile{Path: "docs/tasks.md", Content: strings.Join(tasks, "\n")})
	return files
}

// sections collects the children of a branch node with their bullet lines
func sections(r graph.Reader, branchID valueobjects.ShapeID) []packSection {
	var out []packSection
	for _, c := range graph.Connections(r, branchID) {
		if c.Terminal != valueobjects.TerminalStart {
			continue
		}
		shape, ok := r.Shape(c.ConnectedNodeID)
		if !ok {
			continue
		}
		title := shape.Node.DisplayTitle()
		if title == "" {
			title = "Section"
		}
		var bullets []string
		for _, line := range strings.Split(entities.AssistantText(shape.Node), "\n") {
			line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
			if line != "" {
				bullets = append(bullets, line)
			}
		}
		out = append(out, packSection{title: title, bullets: bullets})
	}
	return out
}

func renderDoc(name string, secs []packSection) string {
	lines := []string{"# " + docTitle(name), ""}
	for _, sec := range secs {
		lines = append(lines, "## "+sec.title)
		for _, b := range sec.bullets {
			lines = append(lines, "- "+b)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// docTitle turns product_brief.md into "product brief"
func docTitle(name string) string {
	return strings.ReplaceAll(strings.TrimSuffix(name, ".md"), "_", " ")
}
