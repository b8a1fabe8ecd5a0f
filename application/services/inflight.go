package services

import (
	"sync"

	"ideacanvas/domain/core/valueobjects"
)

type inflightKey struct {
	chatID string
	nodeID valueobjects.ShapeID
}

type inflightEntry struct {
	token    uint64
	original string
}

// inflight remembers the newest generation request per node. Only the
// newest request may write its result; older ones finish as no-ops
type inflight struct {
	mu      sync.Mutex
	seq     uint64
	entries map[inflightKey]inflightEntry
}

func newInflight() *inflight {
	return &inflight{entries: make(map[inflightKey]inflightEntry)}
}

// begin registers a request and returns its token. original is the content
// to restore on failure; when a request is already running, its original
// is kept since the node currently shows a placeholder
func (f *inflight) begin(key inflightKey, original string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	if prev, busy := f.entries[key]; busy {
		original = prev.original
	}
	f.entries[key] = inflightEntry{token: f.seq, original: original}
	return f.seq
}

// current reports whether token is still the newest request for key
func (f *inflight) current(key inflightKey, token uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	return ok && e.token == token
}

// finish ends the request. It reports false when a newer request took over
func (f *inflight) finish(key inflightKey, token uint64) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok || e.token != token {
		return "", false
	}
	delete(f.entries, key)
	return e.original, true
}

func (f *inflight) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
