// Package supabase stores canvas snapshots in the Postgres "canvases" table
// through Supabase's REST interface.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

const canvasesTable = "canvases"

// SnapshotStore keeps one row per chat, keyed by chat_id
type SnapshotStore struct {
	client *supabase.Client
	logger *zap.Logger
	now    func() time.Time
}

type canvasRow struct {
	ChatID    string          `json:"chat_id"`
	Doc       json.RawMessage `json:"doc"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

// NewSnapshotStore connects to the Supabase project at url
func NewSnapshotStore(url, key string, logger *zap.Logger) (*SnapshotStore, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create Supabase client: %w", err)
	}
	return &SnapshotStore{client: client, logger: logger, now: time.Now}, nil
}

// Load implements ports.SnapshotStore. A chat without a row is not an error
func (s *SnapshotStore) Load(ctx context.Context, chatID string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	body, _, err := s.client.From(canvasesTable).
		Select("chat_id,doc", "", false).
		Eq("chat_id", chatID).
		Execute()
	if err != nil {
		return nil, false, fmt.Errorf("failed to load canvas %s: %w", chatID, err)
	}

	var rows []canvasRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, false, fmt.Errorf("failed to decode canvas %s: %w", chatID, err)
	}
	if len(rows) == 0 || len(rows[0].Doc) == 0 || string(rows[0].Doc) == "null" {
		return nil, false, nil
	}
	return rows[0].Doc, true, nil
}

// Save implements ports.SnapshotStore as an upsert on chat_id
func (s *SnapshotStore) Save(ctx context.Context, chatID string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(doc) {
		return fmt.Errorf("canvas %s is not valid JSON", chatID)
	}

	row := canvasRow{
		ChatID:    chatID,
		Doc:       doc,
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	}
	if _, _, err := s.client.From(canvasesTable).
		Upsert(row, "chat_id", "minimal", "").
		Execute(); err != nil {
		s.logger.Error("Failed to save canvas to Supabase",
			zap.Error(err),
			zap.String("chat_id", chatID),
		)
		return fmt.Errorf("failed to save canvas %s: %w", chatID, err)
	}

	s.logger.Debug("Saved canvas to Supabase",
		zap.String("chat_id", chatID),
		zap.Int("bytes", len(doc)),
	)
	return nil
}
