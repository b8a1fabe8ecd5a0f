package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ideacanvas/application/ports"
	"ideacanvas/application/sagas"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	pkgerrors "ideacanvas/pkg/errors"
)

// submission is the state threaded through the root-intake saga
type submission struct {
	chatID string
	nodeID valueobjects.ShapeID
	idea   string

	original entities.RootIntakeNode
	title    string
	summary  string
	fanOut   entities.FanOut
	result   ExpansionResult
}

// SubmitRootIntake turns a root-intake node into the root of a generated
// product tree: the idea is titled and summarised, fanned out into branch
// nodes and laid out. Any failure puts the intake node back as it was.
// An empty idea uses the one stored on the node
func (s *GenerationService) SubmitRootIntake(ctx context.Context, chatID string, nodeID valueobjects.ShapeID, idea string) (ExpansionResult, error) {
	state := &submission{chatID: chatID, nodeID: nodeID, idea: strings.TrimSpace(idea)}

	saga := sagas.New[submission]("root-intake-submit", s.logger,
		zap.String("chat_id", chatID),
		zap.String("node_id", nodeID.String()),
	).
		ThenCompensate("mark-submitting", s.markSubmitting, s.restoreIntake).
		Then("title-and-summary", s.titleAndSummary).
		Then("fan-out", s.generateFanOut).
		Then("convert-and-expand", s.convertAndExpand)

	if err := saga.Execute(ctx, state); err != nil {
		key := inflightKey{chatID: chatID, nodeID: nodeID}
		if !pkgerrors.IsValidation(err) && !pkgerrors.IsConflict(err) && !errors.Is(err, pkgerrors.ErrNodeNotFound) {
			s.reportFailure(ctx, key, "submit", isRetryable(err), err)
		}
		return ExpansionResult{}, err
	}
	return state.result, nil
}

func (s *GenerationService) markSubmitting(ctx context.Context, st *submission) error {
	store, release, err := s.canvases.Acquire(ctx, st.chatID)
	if err != nil {
		return err
	}
	defer release()

	shape, ok := store.Shape(st.nodeID)
	if !ok {
		return nodeNotFound(st.nodeID)
	}
	intake, ok := shape.Node.(entities.RootIntakeNode)
	if !ok {
		return pkgerrors.NewValidationError(fmt.Sprintf("node %s is not a root intake node", st.nodeID))
	}
	if intake.IsSubmitting {
		return pkgerrors.NewConflictError("idea is already being submitted")
	}
	if st.idea == "" {
		st.idea = strings.TrimSpace(intake.Idea)
	}
	if st.idea == "" {
		return pkgerrors.NewValidationError("idea is required")
	}

	st.original = intake
	_, err = store.UpdateNode(st.nodeID, func(entities.Node) entities.Node {
		next := intake
		next.Idea = st.idea
		next.IsSubmitting = true
		return next
	})
	return err
}

func (s *GenerationService) restoreIntake(ctx context.Context, st *submission) error {
	store, release, err := s.canvases.Acquire(ctx, st.chatID)
	if err != nil {
		return err
	}
	defer release()

	// keep what the user typed so they can submit again
	restored := st.original
	restored.Idea = st.idea
	restored.IsSubmitting = false
	_, err = store.UpdateNode(st.nodeID, func(entities.Node) entities.Node { return restored })
	return err
}

func (s *GenerationService) titleAndSummary(ctx context.Context, st *submission) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.tracer.TraceFunction(gctx, "generation.title", st.chatID, func(ctx context.Context) error {
			raw, err := s.generator.Complete(ctx, TitlePrompt(st.idea))
			if err != nil {
				return fmt.Errorf("title: %w", err)
			}
			st.title = normalizeTitle(raw, s.cfg.TitleMaxChars)
			return nil
		})
	})
	g.Go(func() error {
		return s.tracer.TraceFunction(gctx, "generation.summary", st.chatID, func(ctx context.Context) error {
			summary, err := s.generator.Complete(ctx, SummaryPrompt(st.idea))
			if err != nil {
				return fmt.Errorf("summary: %w", err)
			}
			st.summary = strings.TrimSpace(summary)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if st.title == "" {
		st.title = normalizeTitle(st.idea, s.cfg.TitleMaxChars)
	}
	return nil
}

func (s *GenerationService) generateFanOut(ctx context.Context, st *submission) error {
	return s.tracer.TraceFunction(ctx, "generation.fanout", st.chatID, func(ctx context.Context) error {
		fanOut, err := s.generator.FanOut(ctx, st.idea)
		if err != nil {
			return err
		}
		if err := s.expansion.validator.ValidateFanOut(fanOut); err != nil {
			return err
		}
		st.fanOut = fanOut
		return nil
	})
}

func (s *GenerationService) convertAndExpand(ctx context.Context, st *submission) error {
	store, release, err := s.canvases.Acquire(ctx, st.chatID)
	if err != nil {
		return err
	}
	defer release()

	found, err := store.UpdateNode(st.nodeID, func(entities.Node) entities.Node {
		return entities.MessageNode{
			Title:            st.title,
			UserMessage:      st.idea,
			AssistantMessage: st.summary,
			IsExpanded:       true,
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return nodeNotFound(st.nodeID)
	}

	st.result, err = s.expansion.expandFanOutLocked(ctx, st.chatID, store, st.nodeID, st.fanOut)
	if err != nil {
		return err
	}
	s.notify(ctx, st.chatID, ports.StreamEvent{Type: ports.StreamNodeDone, NodeID: st.nodeID})
	return nil
}
