// Package autosave debounces canvas snapshot writes per chat.
package autosave

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ideacanvas/application/ports"
	"ideacanvas/domain/versioning"
)

// SaveObserver is told about every save attempt
type SaveObserver interface {
	ObserveSave(chatID string, duration time.Duration, err error)
}

type pending struct {
	timer  *time.Timer
	source func() ([]byte, error)
}

// Autosaver writes a chat's document once no change arrived for delay
type Autosaver struct {
	store    ports.SnapshotStore
	delay    time.Duration
	timeout  time.Duration
	observer SaveObserver
	versions *versioning.Ledger
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]*pending
	saving  map[string]*sync.Mutex
	wg      sync.WaitGroup
}

// New creates an autosaver. observer may be nil
func New(store ports.SnapshotStore, delay time.Duration, observer SaveObserver, logger *zap.Logger) *Autosaver {
	return &Autosaver{
		store:    store,
		delay:    delay,
		timeout:  10 * time.Second,
		observer: observer,
		versions: versioning.NewLedger(),
		logger:   logger,
		pending:  make(map[string]*pending),
		saving:   make(map[string]*sync.Mutex),
	}
}

// Schedule (re)starts the debounce window for chatID. The latest source
// wins; it is only read when the window closes
func (a *Autosaver) Schedule(chatID string, source func() ([]byte, error)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.pending[chatID]; ok {
		p.source = source
		if p.timer.Stop() {
			p.timer.Reset(a.delay)
			return
		}
		// the timer already fired and its save is running; queue a new one
	}

	p := &pending{source: source}
	a.wg.Add(1)
	p.timer = time.AfterFunc(a.delay, func() { a.fire(chatID, p) })
	a.pending[chatID] = p
}

// Pending reports how many chats have an unsaved change
func (a *Autosaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Flush saves every pending chat now and waits for in-flight saves
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	var due []struct {
		chatID string
		p      *pending
	}
	for chatID, p := range a.pending {
		if p.timer.Stop() {
			due = append(due, struct {
				chatID string
				p      *pending
			}{chatID, p})
		}
	}
	a.mu.Unlock()

	for _, d := range due {
		a.fire(d.chatID, d.p)
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Autosaver) fire(chatID string, p *pending) {
	defer a.wg.Done()

	a.mu.Lock()
	if a.pending[chatID] == p {
		delete(a.pending, chatID)
	}
	lock, ok := a.saving[chatID]
	if !ok {
		lock = &sync.Mutex{}
		a.saving[chatID] = lock
	}
	a.mu.Unlock()

	// one save per chat at a time; a later window reads its source only
	// after the earlier write finished, so it always lands last
	lock.Lock()
	defer lock.Unlock()

	a.mu.Lock()
	source := p.source
	a.mu.Unlock()

	start := time.Now()
	written, err := a.save(chatID, source)
	if !written && err == nil {
		a.logger.Debug("Canvas unchanged, skipping save", zap.String("chat_id", chatID))
		return
	}
	if a.observer != nil {
		a.observer.ObserveSave(chatID, time.Since(start), err)
	}
	if err != nil {
		a.logger.Error("Autosave failed",
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
		return
	}
	v, _ := a.versions.Latest(chatID)
	a.logger.Debug("Canvas saved",
		zap.String("chat_id", chatID),
		zap.Int("version", v.Number),
		zap.Int("bytes", v.Size),
	)
}

// Version returns the latest version written for chatID
func (a *Autosaver) Version(chatID string) (versioning.Version, bool) {
	return a.versions.Latest(chatID)
}

// save writes the document unless it matches the last one written
func (a *Autosaver) save(chatID string, source func() ([]byte, error)) (bool, error) {
	doc, err := source()
	if err != nil {
		return false, err
	}
	if !a.versions.Changed(chatID, doc) {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.store.Save(ctx, chatID, doc); err != nil {
		return false, err
	}
	a.versions.Record(chatID, doc)
	return true, nil
}
