package main

import (
	"context"
	"fmt"
	"io"
	"os"

	querybus "ideacanvas/application/queries/bus"
	queryhandlers "ideacanvas/application/queries/handlers"
	"ideacanvas/application/services"
	"ideacanvas/domain/config"
	"ideacanvas/domain/graph"
	"ideacanvas/domain/layout"
	"ideacanvas/domain/nodetypes"
	"ideacanvas/infrastructure/canvas"
	"ideacanvas/infrastructure/messaging"
	"ideacanvas/infrastructure/persistence/memory"
)

// fileChat is the chat id a loaded file is served under
const fileChat = "file"

// workspace serves one snapshot file through the same session, layout and
// query stack the API uses
type workspace struct {
	sessions *canvas.Sessions
	layout   *services.LayoutService
	queries  *querybus.QueryBus
}

func openWorkspace(ctx context.Context, path string) (*workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	snapshots := memory.NewSnapshotStore()
	if err := snapshots.Save(ctx, fileChat, data); err != nil {
		return nil, err
	}

	cfg := config.DefaultCanvasConfig()
	registry := nodetypes.NewRegistry(cfg, nodetypes.DefaultTextMetrics())
	sessions := canvas.NewSessions(registry, snapshots, nil, nil, logger)
	if _, err := sessions.Store(ctx, fileChat); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	queries := querybus.NewQueryBus(nil)
	canvasQueries := queryhandlers.NewCanvasQueries(sessions, services.NewExportService(sessions, logger), graph.DefaultContextLimits())
	if err := canvasQueries.Register(queries); err != nil {
		return nil, err
	}

	return &workspace{
		sessions: sessions,
		layout:   services.NewLayoutService(sessions, layout.NewEngine(cfg), messaging.NewLogPublisher(logger), nil, logger),
		queries:  queries,
	}, nil
}

// write stores the current document at path, or prints it when path is ""
func (w *workspace) write(ctx context.Context, path string, stdout io.Writer) error {
	doc, err := w.sessions.Document(ctx, fileChat)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = stdout.Write(append(doc, '\n'))
		return err
	}
	return os.WriteFile(path, doc, 0o644)
}
