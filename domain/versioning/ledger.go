// Package versioning tracks which version of each canvas document was last
// persisted, identified by a content checksum.
package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Version is one persisted state of a canvas document
type Version struct {
	ChatID   string    `json:"chat_id"`
	Number   int       `json:"number"`
	Checksum string    `json:"checksum"`
	Size     int       `json:"size"`
	SavedAt  time.Time `json:"saved_at"`
}

// Checksum returns the hex SHA-256 of doc. Documents are encoded with a
// stable ordering, so equal canvases give equal checksums
func Checksum(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

// Ledger remembers the latest version of every chat
type Ledger struct {
	mu     sync.Mutex
	latest map[string]Version
	now    func() time.Time
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{latest: make(map[string]Version), now: time.Now}
}

// Changed reports whether doc differs from the latest recorded version
func (l *Ledger) Changed(chatID string, doc []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.latest[chatID]
	return !ok || v.Checksum != Checksum(doc)
}

// Record makes doc the latest version of chatID
func (l *Ledger) Record(chatID string, doc []byte) Version {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := Version{
		ChatID:   chatID,
		Number:   l.latest[chatID].Number + 1,
		Checksum: Checksum(doc),
		Size:     len(doc),
		SavedAt:  l.now(),
	}
	l.latest[chatID] = v
	return v
}

// Latest returns the latest version of chatID
func (l *Ledger) Latest(chatID string) (Version, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.latest[chatID]
	return v, ok
}

// Forget drops what is known about chatID
func (l *Ledger) Forget(chatID string) {
	l.mu.Lock()
	delete(l.latest, chatID)
	l.mu.Unlock()
}
