// Package canvas is the in-process shape store: node shapes, connection
// lines and the bindings between them, with batched undoable mutation.
package canvas

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ideacanvas/domain/core/entities"
	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/graph"
	"ideacanvas/domain/nodetypes"
)

// ErrNodeNotFound is returned by mutations that need an existing node
var ErrNodeNotFound = errors.New("node not found")

// ErrNodeExists is returned when creating a node with an id already in use
var ErrNodeExists = errors.New("node already exists")

const maxUndoDepth = 50

// ChangeKind classifies a store notification
type ChangeKind string

const (
	ChangeNodes     ChangeKind = "nodes"
	ChangeAnimation ChangeKind = "animation"
	ChangeUndo      ChangeKind = "undo"
)

// Change is delivered to subscribers after every committed mutation
type Change struct {
	Kind     ChangeKind
	IDs      []valueobjects.ShapeID
	Moves    []entities.Move
	Duration time.Duration
}

type state struct {
	nodes       map[valueobjects.ShapeID]entities.NodeShape
	connections map[valueobjects.ShapeID]entities.ConnectionShape
	bindings    map[valueobjects.ShapeID]entities.Binding
	// bindingSeq records creation order; connection order follows it
	bindingSeq map[valueobjects.ShapeID]uint64
	seq        uint64
}

func newState() state {
	return state{
		nodes:       make(map[valueobjects.ShapeID]entities.NodeShape),
		connections: make(map[valueobjects.ShapeID]entities.ConnectionShape),
		bindings:    make(map[valueobjects.ShapeID]entities.Binding),
		bindingSeq:  make(map[valueobjects.ShapeID]uint64),
	}
}

func (s state) clone() state {
	c := state{
		nodes:       make(map[valueobjects.ShapeID]entities.NodeShape, len(s.nodes)),
		connections: make(map[valueobjects.ShapeID]entities.ConnectionShape, len(s.connections)),
		bindings:    make(map[valueobjects.ShapeID]entities.Binding, len(s.bindings)),
		bindingSeq:  make(map[valueobjects.ShapeID]uint64, len(s.bindingSeq)),
		seq:         s.seq,
	}
	for k, v := range s.nodes {
		c.nodes[k] = v
	}
	for k, v := range s.connections {
		c.connections[k] = v
	}
	for k, v := range s.bindings {
		c.bindings[k] = v
	}
	for k, v := range s.bindingSeq {
		c.bindingSeq[k] = v
	}
	return c
}

// Store holds one canvas. Reads and single mutations are safe for concurrent
// use; Batch serialises against other batches and rolls back on error
type Store struct {
	registry *nodetypes.Registry
	ports    *graph.PortCache

	mu      sync.RWMutex
	state   state
	version uint64
	undo    []state

	batchMu  sync.Mutex
	inBatch  bool
	pending  []valueobjects.ShapeID
	lastMove *Change

	subMu       sync.RWMutex
	subscribers []func(Change)
}

// NewStore creates an empty canvas
func NewStore(registry *nodetypes.Registry) *Store {
	return &Store{
		registry: registry,
		ports:    graph.NewPortCache(registry),
		state:    newState(),
	}
}

// Ports returns the port cache for this canvas
func (s *Store) Ports() *graph.PortCache {
	return s.ports
}

// Registry returns the node type registry the store sizes nodes with
func (s *Store) Registry() *nodetypes.Registry {
	return s.registry
}

// Subscribe registers fn to be called after each committed change
func (s *Store) Subscribe(fn func(Change)) {
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subMu.Unlock()
}

func (s *Store) publish(c Change) {
	s.subMu.RLock()
	subs := make([]func(Change), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}

// Shape implements graph.Reader
func (s *Store) Shape(id valueobjects.ShapeID) (entities.NodeShape, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shape, ok := s.state.nodes[id]
	return shape, ok
}

// RenderedBounds implements graph.BoundsReader. Sizes are computed by the
// registry so layout and rendering agree
func (s *Store) RenderedBounds(id valueobjects.ShapeID) (valueobjects.Bounds, bool) {
	shape, ok := s.Shape(id)
	if !ok {
		return valueobjects.Bounds{}, false
	}
	w, h := s.registry.Size(shape.Node)
	return valueobjects.Bounds{X: shape.Position.X, Y: shape.Position.Y, W: w, H: h}, true
}

// BindingsTo implements graph.Reader
func (s *Store) BindingsTo(nodeID valueobjects.ShapeID) []entities.Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entities.Binding
	for _, b := range s.state.bindings {
		if b.NodeID == nodeID {
			out = append(out, b)
		}
	}
	return s.state.ordered(out)
}

// BindingsOf implements graph.Reader
func (s *Store) BindingsOf(connectionID valueobjects.ShapeID) []entities.Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entities.Binding
	for _, b := range s.state.bindings {
		if b.ConnectionID == connectionID {
			out = append(out, b)
		}
	}
	return s.state.ordered(out)
}

// NodeIDs lists every node id in sorted order
func (s *Store) NodeIDs() []valueobjects.ShapeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]valueobjects.ShapeID, 0, len(s.state.nodes))
	for id := range s.state.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Counts returns the number of nodes, connection lines and bindings
func (s *Store) Counts() (nodes, connections, bindings int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.nodes), len(s.state.connections), len(s.state.bindings)
}

// CreateNode adds a node shape at position
func (s *Store) CreateNode(id valueobjects.ShapeID, position valueobjects.Point, node entities.Node) error {
	if node == nil {
		return fmt.Errorf("create node %s: node value is required", id)
	}
	return s.mutate(func(st *state) error {
		if _, exists := st.nodes[id]; exists {
			return fmt.Errorf("%w: %s", ErrNodeExists, id)
		}
		st.nodes[id] = entities.NodeShape{ID: id, Position: position, Node: node, Version: s.nextVersion()}
		return nil
	}, id)
}

// UpdateNode applies fn to the node value. It reports false without error
// when the node no longer exists
func (s *Store) UpdateNode(id valueobjects.ShapeID, fn func(entities.Node) entities.Node) (bool, error) {
	found := false
	err := s.mutate(func(st *state) error {
		shape, ok := st.nodes[id]
		if !ok {
			return nil
		}
		updated := fn(shape.Node)
		if updated == nil {
			return fmt.Errorf("update node %s: mutator returned nil", id)
		}
		found = true
		shape.Node = updated
		shape.Version = s.nextVersion()
		st.nodes[id] = shape
		return nil
	}, id)
	return found, err
}

// MoveNode sets the top-left position of a node
func (s *Store) MoveNode(id valueobjects.ShapeID, position valueobjects.Point) error {
	return s.mutate(func(st *state) error {
		shape, ok := st.nodes[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		shape.Position = position
		shape.Version = s.nextVersion()
		st.nodes[id] = shape
		return nil
	}, id)
}

// DeleteNode removes a node and every connection line bound to it
func (s *Store) DeleteNode(id valueobjects.ShapeID) error {
	return s.mutate(func(st *state) error {
		if _, ok := st.nodes[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		delete(st.nodes, id)

		lines := make(map[valueobjects.ShapeID]bool)
		for _, b := range st.bindings {
			if b.NodeID == id {
				lines[b.ConnectionID] = true
			}
		}
		for bid, b := range st.bindings {
			if lines[b.ConnectionID] {
				st.removeBinding(bid)
			}
		}
		for line := range lines {
			delete(st.connections, line)
		}
		return nil
	}, id)
}

// Connect creates a connection line from a start port on one node to an end
// port on another, as one line entity and two bindings
func (s *Store) Connect(from valueobjects.ShapeID, fromPort valueobjects.PortID, to valueobjects.ShapeID, toPort valueobjects.PortID) (valueobjects.ShapeID, error) {
	lineID := valueobjects.NewShapeID()
	err := s.mutate(func(st *state) error {
		src, ok := st.nodes[from]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
		}
		dst, ok := st.nodes[to]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
		}

		line := entities.ConnectionShape{ID: lineID}
		if p, ok := s.registry.Ports(src.Node)[fromPort]; ok {
			line.Start = src.Position.Add(p.X, p.Y)
		}
		if p, ok := s.registry.Ports(dst.Node)[toPort]; ok {
			line.End = dst.Position.Add(p.X, p.Y)
		}
		st.connections[lineID] = line

		startID := valueobjects.NewShapeID()
		endID := valueobjects.NewShapeID()
		st.addBinding(entities.Binding{ID: startID, ConnectionID: lineID, NodeID: from, Terminal: valueobjects.TerminalStart, PortID: fromPort})
		st.addBinding(entities.Binding{ID: endID, ConnectionID: lineID, NodeID: to, Terminal: valueobjects.TerminalEnd, PortID: toPort})
		return nil
	}, from, to)
	if err != nil {
		return "", err
	}
	return lineID, nil
}

// AnimateMove moves nodes to their targets and announces the transition so
// clients can animate it over duration
func (s *Store) AnimateMove(moves []entities.Move, duration time.Duration) error {
	if len(moves) == 0 {
		return nil
	}
	ids := make([]valueobjects.ShapeID, 0, len(moves))
	for _, m := range moves {
		ids = append(ids, m.ID)
	}
	err := s.mutate(func(st *state) error {
		for _, m := range moves {
			shape, ok := st.nodes[m.ID]
			if !ok {
				continue
			}
			shape.Position = valueobjects.Point{X: m.X, Y: m.Y}
			shape.Version = s.nextVersion()
			st.nodes[m.ID] = shape
		}
		return nil
	}, ids...)
	if err != nil {
		return err
	}

	c := Change{Kind: ChangeAnimation, IDs: ids, Moves: moves, Duration: duration}
	if s.inBatchNow() {
		s.mu.Lock()
		s.lastMove = &c
		s.mu.Unlock()
		return nil
	}
	s.publish(c)
	return nil
}

// Batch runs fn as one undoable unit. Any error restores the state the
// batch started from
func (s *Store) Batch(fn func() error) error {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	s.mu.Lock()
	checkpoint := s.state.clone()
	s.inBatch = true
	s.pending = nil
	s.lastMove = nil
	s.mu.Unlock()

	err := fn()

	s.mu.Lock()
	s.inBatch = false
	ids := s.pending
	move := s.lastMove
	s.pending = nil
	s.lastMove = nil
	if err != nil {
		s.state = checkpoint
		s.mu.Unlock()
		return err
	}
	if len(ids) > 0 {
		s.pushUndo(checkpoint)
	}
	s.mu.Unlock()

	if len(ids) > 0 {
		s.publish(Change{Kind: ChangeNodes, IDs: dedupe(ids)})
	}
	if move != nil {
		s.publish(*move)
	}
	return nil
}

// Undo restores the state before the last committed mutation or batch
func (s *Store) Undo() bool {
	s.mu.Lock()
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return false
	}
	s.state = s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeUndo})
	return true
}

// Reset replaces the whole canvas; history is cleared
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = newState()
	s.undo = nil
	s.mu.Unlock()
}

func (s *Store) mutate(fn func(st *state) error, ids ...valueobjects.ShapeID) error {
	s.mu.Lock()
	var checkpoint state
	batched := s.inBatch
	if !batched {
		checkpoint = s.state.clone()
	}
	if err := fn(&s.state); err != nil {
		if !batched {
			s.state = checkpoint
		}
		s.mu.Unlock()
		return err
	}
	if batched {
		s.pending = append(s.pending, ids...)
		s.mu.Unlock()
		return nil
	}
	s.pushUndo(checkpoint)
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeNodes, IDs: ids})
	return nil
}

func (s *Store) inBatchNow() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inBatch
}

// pushUndo must be called with mu held
func (s *Store) pushUndo(st state) {
	s.undo = append(s.undo, st)
	if len(s.undo) > maxUndoDepth {
		s.undo = s.undo[len(s.undo)-maxUndoDepth:]
	}
}

// nextVersion must be called with mu held
func (s *Store) nextVersion() uint64 {
	s.version++
	return s.version
}

func (st *state) addBinding(b entities.Binding) {
	st.seq++
	st.bindings[b.ID] = b
	st.bindingSeq[b.ID] = st.seq
}

func (st *state) removeBinding(id valueobjects.ShapeID) {
	delete(st.bindings, id)
	delete(st.bindingSeq, id)
}

// ordered sorts bindings by creation order
func (st state) ordered(in []entities.Binding) []entities.Binding {
	sort.Slice(in, func(i, j int) bool { return st.bindingSeq[in[i].ID] < st.bindingSeq[in[j].ID] })
	return in
}

func dedupe(ids []valueobjects.ShapeID) []valueobjects.ShapeID {
	seen := make(map[valueobjects.ShapeID]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
