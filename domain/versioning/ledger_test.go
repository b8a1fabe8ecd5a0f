package versioning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	l := NewLedger()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return at }

	assert.True(t, l.Changed("chat", []byte(`{"schema":1}`)))

	v := l.Record("chat", []byte(`{"schema":1}`))
	assert.Equal(t, 1, v.Number)
	assert.Equal(t, 12, v.Size)
	assert.Equal(t, at, v.SavedAt)
	assert.Len(t, v.Checksum, 64)

	assert.False(t, l.Changed("chat", []byte(`{"schema":1}`)))
	assert.True(t, l.Changed("chat", []byte(`{"schema":1,"nodes":[]}`)))
	assert.True(t, l.Changed("other", []byte(`{"schema":1}`)))

	v = l.Record("chat", []byte(`{"schema":1,"nodes":[]}`))
	assert.Equal(t, 2, v.Number)

	latest, ok := l.Latest("chat")
	require.True(t, ok)
	assert.Equal(t, v, latest)

	l.Forget("chat")
	_, ok = l.Latest("chat")
	assert.False(t, ok)
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Checksum(nil))
	assert.NotEqual(t, Checksum([]byte("a")), Checksum([]byte("b")))
}
