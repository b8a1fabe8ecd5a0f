package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ideacanvas/infrastructure/persistence/memory"
)

type recordingObserver struct {
	mu     sync.Mutex
	errors []error
}

func (o *recordingObserver) ObserveSave(chatID string, d time.Duration, err error) {
	o.mu.Lock()
	o.errors = append(o.errors, err)
	o.mu.Unlock()
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.errors)
}

func static(doc string) func() ([]byte, error) {
	return func() ([]byte, error) { return []byte(doc), nil }
}

func TestScheduleDebounces(t *testing.T) {
	store := memory.NewSnapshotStore()
	a := New(store, 30*time.Millisecond, nil, zap.NewNop())

	a.Schedule("chat", static("v1"))
	a.Schedule("chat", static("v2"))
	a.Schedule("chat", static("v3"))

	require.Eventually(t, func() bool { return store.Saves("chat") == 1 }, time.Second, 5*time.Millisecond)

	doc, ok, err := store.Load(context.Background(), "chat")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v3", string(doc))
	assert.Equal(t, 0, a.Pending())
}

func TestFlushSavesImmediately(t *testing.T) {
	store := memory.NewSnapshotStore()
	a := New(store, time.Hour, nil, zap.NewNop())

	a.Schedule("a", static("doc-a"))
	a.Schedule("b", static("doc-b"))
	require.Equal(t, 2, a.Pending())

	require.NoError(t, a.Flush(context.Background()))

	assert.Equal(t, 1, store.Saves("a"))
	assert.Equal(t, 1, store.Saves("b"))
	assert.Equal(t, 0, a.Pending())
}

func TestFailedSourceIsObserved(t *testing.T) {
	store := memory.NewSnapshotStore()
	observer := &recordingObserver{}
	a := New(store, time.Hour, observer, zap.NewNop())

	a.Schedule("chat", func() ([]byte, error) { return nil, errors.New("encode failed") })
	require.NoError(t, a.Flush(context.Background()))

	assert.Equal(t, 1, observer.count())
	assert.Equal(t, 0, store.Saves("chat"))
}

func TestUnchangedDocumentIsNotRewritten(t *testing.T) {
	store := memory.NewSnapshotStore()
	observer := &recordingObserver{}
	a := New(store, time.Hour, observer, zap.NewNop())

	a.Schedule("chat", static("same"))
	require.NoError(t, a.Flush(context.Background()))
	a.Schedule("chat", static("same"))
	require.NoError(t, a.Flush(context.Background()))

	assert.Equal(t, 1, store.Saves("chat"))
	assert.Equal(t, 1, observer.count())

	a.Schedule("chat", static("changed"))
	require.NoError(t, a.Flush(context.Background()))
	assert.Equal(t, 2, store.Saves("chat"))

	v, ok := a.Version("chat")
	require.True(t, ok)
	assert.Equal(t, 2, v.Number)
}

// gatedStore holds its first Save until release is closed
type gatedStore struct {
	*memory.SnapshotStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) Save(ctx context.Context, chatID string, doc []byte) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.SnapshotStore.Save(ctx, chatID, doc)
}

func TestSlowSaveDoesNotOverwriteNewerDocument(t *testing.T) {
	store := &gatedStore{
		SnapshotStore: memory.NewSnapshotStore(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	a := New(store, 10*time.Millisecond, nil, zap.NewNop())

	a.Schedule("chat", static("v1"))
	select {
	case <-store.entered:
	case <-time.After(time.Second):
		t.Fatal("first save never started")
	}

	a.Schedule("chat", static("v2"))
	time.Sleep(50 * time.Millisecond)
	close(store.release)

	require.NoError(t, a.Flush(context.Background()))

	doc, ok, err := store.Load(context.Background(), "chat")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", string(doc))
	assert.Equal(t, 2, store.Saves("chat"))
	v, ok := a.Version("chat")
	require.True(t, ok)
	assert.Equal(t, 2, v.Number)
}
