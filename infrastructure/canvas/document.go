package canvas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/nodetypes"
	"ideacanvas/infrastructure/persistence/schema"
)

// DocumentSchema is the version written by Snapshot
const DocumentSchema = schema.CurrentVersion

var evolution = schema.NewEvolution()

// Document is the persisted form of a canvas
type Document struct {
	Schema      int                        `json:"schema"`
	Nodes       []NodeRecord               `json:"nodes"`
	Connections []entities.ConnectionShape `json:"connections"`
	Bindings    []entities.Binding         `json:"bindings"`
}

// NodeRecord keeps node values loosely typed so older documents load
type NodeRecord struct {
	ID   valueobjects.ShapeID `json:"id"`
	X    float64              `json:"x"`
	Y    float64              `json:"y"`
	Node map[string]any       `json:"node"`
}

// Snapshot captures the canvas as a document with stable ordering
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := Document{
		Schema:      DocumentSchema,
		Nodes:       make([]NodeRecord, 0, len(s.state.nodes)),
		Connections: make([]entities.ConnectionShape, 0, len(s.state.connections)),
		Bindings:    make([]entities.Binding, 0, len(s.state.bindings)),
	}
	for _, shape := range s.state.nodes {
		doc.Nodes = append(doc.Nodes, NodeRecord{
			ID:   shape.ID,
			X:    shape.Position.X,
			Y:    shape.Position.Y,
			Node: nodetypes.ToRaw(shape.Node),
		})
	}
	for _, c := range s.state.connections {
		doc.Connections = append(doc.Connections, c)
	}
	for _, b := range s.state.bindings {
		doc.Bindings = append(doc.Bindings, b)
	}

	sort.Slice(doc.Nodes, func(i, j int) bool { return doc.Nodes[i].ID < doc.Nodes[j].ID })
	sort.Slice(doc.Connections, func(i, j int) bool { return doc.Connections[i].ID < doc.Connections[j].ID })
	doc.Bindings = s.state.ordered(doc.Bindings)
	return doc
}

// Restore replaces the canvas with doc, migrating every node through the
// registry. Binding order in doc is the connection order. Bindings with an unknown terminal are dropped; bindings to
// missing nodes are kept and ignored by traversal
func (s *Store) Restore(doc Document) {
	st := newState()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range doc.Nodes {
		if rec.ID.IsZero() {
			continue
		}
		raw := rec.Node
		if raw == nil {
			raw = map[string]any{}
		}
		st.nodes[rec.ID] = entities.NodeShape{
			ID:       rec.ID,
			Position: valueobjects.Point{X: rec.X, Y: rec.Y},
			Node:     s.registry.Migrate(raw),
			Version:  s.nextVersion(),
		}
	}
	for _, c := range doc.Connections {
		if !c.ID.IsZero() {
			st.connections[c.ID] = c
		}
	}
	for _, b := range doc.Bindings {
		if b.ID.IsZero() || !b.Terminal.Valid() {
			continue
		}
		st.addBinding(b)
	}

	s.state = st
	s.undo = nil
}

// MarshalDocument encodes the canvas for a snapshot store
func (s *Store) MarshalDocument() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalDocument decodes data and restores the canvas from it.
// Numbers are decoded as json.Number so sizes survive exactly
func (s *Store) UnmarshalDocument(data []byte) error {
	doc, err := DecodeDocument(data)
	if err != nil {
		return err
	}
	s.Restore(doc)
	return nil
}

// DecodeDocument parses a persisted canvas, upgrading older schemas first
func DecodeDocument(data []byte) (Document, error) {
	data, _, err := evolution.UpgradeBytes(data)
	if err != nil {
		return Document{}, fmt.Errorf("upgrade canvas document: %w", err)
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode canvas document: %w", err)
	}
	return doc, nil
}
