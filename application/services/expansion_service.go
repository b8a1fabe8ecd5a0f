package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/domain/config"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/validators"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/events"
	"ideacanvas/domain/layout"
)

// ExpansionResult lists what an expansion created
type ExpansionResult struct {
	ParentID   valueobjects.ShapeID   `json:"parentId"`
	BranchIDs  []valueobjects.ShapeID `json:"branchIds"`
	SectionIDs []valueobjects.ShapeID `json:"sectionIds,omitempty"`
	Layout     layout.Plan            `json:"-"`
}

// ExpansionService turns generated structures into connected child nodes
type ExpansionService struct {
	canvases  ports.Canvases
	layout    *LayoutService
	validator *validators.GenerationValidator
	publisher ports.EventPublisher
	cfg       *config.CanvasConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewExpansionService creates an expansion service
func NewExpansionService(
	canvases ports.Canvases,
	layoutService *LayoutService,
	validator *validators.GenerationValidator,
	publisher ports.EventPublisher,
	cfg *config.CanvasConfig,
	logger *zap.Logger,
) *ExpansionService {
	return &ExpansionService{
		canvases:  canvases,
		layout:    layoutService,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// ExpandFanOut places one branch node per fan-out branch on a ring around
// the parent, stacks each branch's sections under it and lays the tree out.
// An invalid response is rejected before anything is created
func (s *ExpansionService) ExpandFanOut(ctx context.Context, chatID string, parentID valueobjects.ShapeID, fanOut entities.FanOut) (ExpansionResult, error) {
	store, release, err := s.canvases.Acquire(ctx, chatID)
	if err != nil {
		return ExpansionResult{}, err
	}
	defer release()

	return s.expandFanOutLocked(ctx, chatID, store, parentID, fanOut)
}

func (s *ExpansionService) expandFanOutLocked(ctx context.Context, chatID string, store ports.ShapeStore, parentID valueobjects.ShapeID, fanOut entities.FanOut) (ExpansionResult, error) {
	if err := s.validator.ValidateFanOut(fanOut); err != nil {
		return ExpansionResult{}, err
	}
	bounds, ok := store.RenderedBounds(parentID)
	if !ok {
		return ExpansionResult{}, nodeNotFound(parentID)
	}

	result := ExpansionResult{ParentID: parentID}
	n := len(fanOut.Branches)
	radius := math.Max(bounds.W, bounds.H) + s.cfg.FanOutRadiusOffset
	halfWidth := s.cfg.NodeWidth / 2

	err := store.Batch(func() error {
		for i, branch := range fanOut.Branches {
			angle := float64(i) / float64(max(1, n)) * math.Pi * 2
			bx := bounds.MidX() + math.Cos(angle)*radius
			by := bounds.MidY() + math.Sin(angle)*radius

			branchID := valueobjects.NewShapeID()
			branchNode := entities.MessageNode{
				Title:            branch.Title,
				AssistantMessage: branch.Header(),
				IsExpanded:       true,
			}
			if err := store.CreateNode(branchID, valueobjects.Point{X: bx - halfWidth, Y: by}, branchNode); err != nil {
				return fmt.Errorf("create branch %d: %w", i, err)
			}
			result.BranchIDs = append(result.BranchIDs, branchID)
			if err := s.link(store, parentID, branchID); err != nil {
				return err
			}

			y := by + s.cfg.SectionOffsetY
			for j, section := range branch.Sections {
				sectionID := valueobjects.NewShapeID()
				sectionNode := entities.MessageNode{
					Title:            section.Title,
					AssistantMessage: section.Body(),
					IsExpanded:       true,
				}
				if err := store.CreateNode(sectionID, valueobjects.Point{X: bx - halfWidth, Y: y}, sectionNode); err != nil {
					return fmt.Errorf("create section %d of branch %d: %w", j, i, err)
				}
				result.SectionIDs = append(result.SectionIDs, sectionID)
				if err := s.link(store, branchID, sectionID); err != nil {
					return err
				}
				y += s.cfg.DefaultNodeSpacing + s.cfg.SectionStepY
			}
		}
		return nil
	})
	if err != nil {
		return ExpansionResult{}, fmt.Errorf("failed to expand fan-out: %w", err)
	}

	s.logger.Info("Fan-out expanded",
		zap.String("chat_id", chatID),
		zap.String("parent_id", parentID.String()),
		zap.Int("branches", len(result.BranchIDs)),
		zap.Int("sections", len(result.SectionIDs)),
	)
	publish(ctx, s.publisher, s.logger, events.NewFanOutExpanded(chatID, parentID, result.BranchIDs, result.SectionIDs, s.now()))

	result.Layout, err = s.layout.layoutLocked(ctx, chatID, store, parentID)
	if err != nil {
		return result, err
	}
	return result, nil
}

// ExpandChildren stacks one child per branch below the parent, sets the
// parent's content to currentContent (or a summary line when empty) and
// lays the subtree out
func (s *ExpansionService) ExpandChildren(ctx context.Context, chatID string, parentID valueobjects.ShapeID, branches []entities.Branch, currentContent string) (ExpansionResult, error) {
	store, release, err := s.canvases.Acquire(ctx, chatID)
	if err != nil {
		return ExpansionResult{}, err
	}
	defer release()

	return s.expandChildrenLocked(ctx, chatID, store, parentID, branches, currentContent)
}

func (s *ExpansionService) expandChildrenLocked(ctx context.Context, chatID string, store ports.ShapeStore, parentID valueobjects.ShapeID, branches []entities.Branch, currentContent string) (ExpansionResult, error) {
	if len(branches) == 0 {
		return ExpansionResult{}, s.validator.ValidateDecision(entities.Decision{Action: entities.ActionExpand})
	}
	bounds, ok := store.RenderedBounds(parentID)
	if !ok {
		return ExpansionResult{}, nodeNotFound(parentID)
	}

	result := ExpansionResult{ParentID: parentID}
	err := store.Batch(func() error {
		y := bounds.MaxY() + s.cfg.DefaultNodeSpacing
		for i, branch := range branches {
			childID := valueobjects.NewShapeID()
			child := entities.MessageNode{
				Title:            branch.Title,
				AssistantMessage: branch.Content,
				IsExpanded:       true,
			}
			if err := store.CreateNode(childID, valueobjects.Point{X: bounds.X, Y: y}, child); err != nil {
				return fmt.Errorf("create child %d: %w", i, err)
			}
			result.BranchIDs = append(result.BranchIDs, childID)
			if err := s.link(store, parentID, childID); err != nil {
				return err
			}
			y += s.cfg.ExpandChildStepY + s.cfg.DefaultNodeSpacing
		}

		summary := currentContent
		if strings.TrimSpace(summary) == "" {
			summary = fmt.Sprintf("Created %d child nodes", len(branches))
		}
		_, err := store.UpdateNode(parentID, func(n entities.Node) entities.Node {
			if m, ok := n.(entities.MessageNode); ok {
				m.AssistantMessage = summary
				return m
			}
			return n
		})
		return err
	})
	if err != nil {
		return ExpansionResult{}, fmt.Errorf("failed to expand children: %w", err)
	}

	s.logger.Info("Node expanded into children",
		zap.String("chat_id", chatID),
		zap.String("parent_id", parentID.String()),
		zap.Int("children", len(result.BranchIDs)),
	)
	publish(ctx, s.publisher, s.logger, events.NewFanOutExpanded(chatID, parentID, result.BranchIDs, nil, s.now()))

	result.Layout, err = s.layout.layoutLocked(ctx, chatID, store, parentID)
	if err != nil {
		return result, err
	}
	return result, nil
}

// link connects from's output to to's input. A node without the needed
// port is left unconnected
func (s *ExpansionService) link(store ports.ShapeStore, from, to valueobjects.ShapeID) error {
	out, ok := store.Ports().PortFor(store, from, valueobjects.TerminalStart)
	if !ok {
		s.logger.Debug("Skipping connection, source has no output port", zap.String("node_id", from.String()))
		return nil
	}
	in, ok := store.Ports().PortFor(store, to, valueobjects.TerminalEnd)
	if !ok {
		s.logger.Debug("Skipping connection, target has no input port", zap.String("node_id", to.String()))
		return nil
	}
	if _, err := store.Connect(from, out.ID, to, in.ID); err != nil {
		return fmt.Errorf("connect %s to %s: %w", from, to, err)
	}
	return nil
}
