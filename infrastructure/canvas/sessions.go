package canvas

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/nodetypes"
	pkgerrors "ideacanvas/pkg/errors"
)

// SaveScheduler receives a save request after every committed change
type SaveScheduler interface {
	Schedule(chatID string, source func() ([]byte, error))
}

type session struct {
	store *Store
	mu    sync.Mutex
}

// Sessions keeps one live canvas per chat id, loading it from the snapshot
// store on first use
type Sessions struct {
	registry  *nodetypes.Registry
	snapshots ports.SnapshotStore
	saver     SaveScheduler
	notifier  ports.Notifier
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	loading  map[string]chan struct{}
}

// NewSessions creates a session registry. saver and notifier may be nil
func NewSessions(registry *nodetypes.Registry, snapshots ports.SnapshotStore, saver SaveScheduler, notifier ports.Notifier, logger *zap.Logger) *Sessions {
	return &Sessions{
		registry:  registry,
		snapshots: snapshots,
		saver:     saver,
		notifier:  notifier,
		logger:    logger,
		sessions:  make(map[string]*session),
		loading:   make(map[string]chan struct{}),
	}
}

// Acquire implements ports.Canvases
func (s *Sessions) Acquire(ctx context.Context, chatID string) (ports.ShapeStore, func(), error) {
	sess, err := s.get(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	sess.mu.Lock()
	var once sync.Once
	return sess.store, func() { once.Do(sess.mu.Unlock) }, nil
}

// View implements ports.Canvases
func (s *Sessions) View(ctx context.Context, chatID string) (ports.ShapeStore, error) {
	sess, err := s.get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return sess.store, nil
}

// Store returns the concrete canvas for chatID
func (s *Sessions) Store(ctx context.Context, chatID string) (*Store, error) {
	sess, err := s.get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return sess.store, nil
}

// Document implements ports.Canvases
func (s *Sessions) Document(ctx context.Context, chatID string) ([]byte, error) {
	sess, err := s.get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return sess.store.MarshalDocument()
}

// Replace implements ports.Canvases. The new document is saved right away
func (s *Sessions) Replace(ctx context.Context, chatID string, doc []byte) error {
	decoded, err := DecodeDocument(doc)
	if err != nil {
		return pkgerrors.ErrMalformedCanvas.Wrap(err)
	}
	sess, err := s.get(ctx, chatID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.store.Restore(decoded)
	sess.mu.Unlock()

	s.scheduleSave(chatID, sess.store)
	return nil
}

func (s *Sessions) get(ctx context.Context, chatID string) (*session, error) {
	if chatID == "" {
		return nil, pkgerrors.NewValidationError("chat id is required")
	}

	for {
		s.mu.Lock()
		if sess, ok := s.sessions[chatID]; ok {
			s.mu.Unlock()
			return sess, nil
		}
		if wait, busy := s.loading[chatID]; busy {
			s.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		s.loading[chatID] = done
		s.mu.Unlock()

		sess, err := s.load(ctx, chatID)

		s.mu.Lock()
		delete(s.loading, chatID)
		if err == nil {
			s.sessions[chatID] = sess
		}
		s.mu.Unlock()
		close(done)
		return sess, err
	}
}

func (s *Sessions) load(ctx context.Context, chatID string) (*session, error) {
	store := NewStore(s.registry)

	data, found, err := s.snapshots.Load(ctx, chatID)
	if err != nil {
		return nil, pkgerrors.ErrSnapshotStore.Wrap(fmt.Errorf("load canvas %s: %w", chatID, err))
	}
	if found {
		if err := store.UnmarshalDocument(data); err != nil {
			// a corrupt snapshot should not lock the user out of the chat
			s.logger.Warn("Discarding unreadable canvas snapshot",
				zap.String("chat_id", chatID),
				zap.Error(err),
			)
			store.Reset()
		}
	}

	if nodes, _, _ := store.Counts(); nodes == 0 {
		if err := store.CreateNode(valueobjects.NewShapeID(), valueobjects.Point{}, s.seedNode()); err != nil {
			return nil, err
		}
	}

	store.Subscribe(func(c Change) { s.onChange(chatID, store, c) })

	s.logger.Debug("Canvas session opened",
		zap.String("chat_id", chatID),
		zap.Bool("from_snapshot", found),
	)
	return &session{store: store}, nil
}

func (s *Sessions) seedNode() entities.Node {
	node, err := s.registry.Default(entities.KindRootIntake)
	if err != nil {
		return entities.RootIntakeNode{Title: "Root Chat"}
	}
	return node
}

func (s *Sessions) onChange(chatID string, store *Store, c Change) {
	s.scheduleSave(chatID, store)

	if c.Kind == ChangeAnimation && s.notifier != nil {
		event := ports.StreamEvent{
			Type:       ports.StreamLayout,
			Moves:      c.Moves,
			DurationMS: c.Duration.Milliseconds(),
		}
		if err := s.notifier.Notify(context.Background(), chatID, event); err != nil {
			s.logger.Warn("Failed to notify layout",
				zap.String("chat_id", chatID),
				zap.Error(err),
			)
		}
	}
}

func (s *Sessions) scheduleSave(chatID string, store *Store) {
	if s.saver == nil {
		return
	}
	s.saver.Schedule(chatID, store.MarshalDocument)
}
