// Package schema upgrades persisted canvas documents to the current layout.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// CurrentVersion is the document schema the canvas store reads
const CurrentVersion = 1

// Migration rewrites a decoded document from one schema version to the next
type Migration struct {
	FromVersion int
	ToVersion   int
	Description string
	Up          MigrationFunc
}

// MigrationFunc transforms a decoded document in place or returns a new one
type MigrationFunc func(doc map[string]any) (map[string]any, error)

// Evolution holds the ordered chain of document migrations
type Evolution struct {
	migrations []Migration
}

// NewEvolution creates an evolution with every built-in migration registered
func NewEvolution() *Evolution {
	e := &Evolution{}
	_ = e.RegisterMigration(Migration{
		FromVersion: 0,
		ToVersion:   1,
		Description: "import tldraw store snapshot",
		Up:          importStoreSnapshot,
	})
	return e
}

// RegisterMigration registers a new migration
func (e *Evolution) RegisterMigration(m Migration) error {
	if m.FromVersion >= m.ToVersion {
		return fmt.Errorf("invalid migration: from_version must be less than to_version")
	}
	if m.Up == nil {
		return fmt.Errorf("migration %d->%d has no up step", m.FromVersion, m.ToVersion)
	}
	for _, existing := range e.migrations {
		if existing.FromVersion == m.FromVersion {
			return fmt.Errorf("migration from %d already exists", m.FromVersion)
		}
	}
	e.migrations = append(e.migrations, m)
	sort.Slice(e.migrations, func(i, j int) bool {
		return e.migrations[i].FromVersion < e.migrations[j].FromVersion
	})
	return nil
}

// DetectVersion reports the schema of a decoded document. Documents written
// before versioning carry a tldraw "store" map instead of an integer schema
func DetectVersion(doc map[string]any) (int, error) {
	switch v := doc["schema"].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("schema version %q is not an integer", v)
		}
		return int(n), nil
	case float64:
		return int(v), nil
	}
	if _, ok := doc["store"]; ok {
		return 0, nil
	}
	if _, ok := doc["nodes"]; ok {
		return CurrentVersion, nil
	}
	return 0, fmt.Errorf("unrecognised canvas document")
}

// Upgrade migrates a decoded document up to CurrentVersion and reports the
// version it started from
func (e *Evolution) Upgrade(doc map[string]any) (map[string]any, int, error) {
	from, err := DetectVersion(doc)
	if err != nil {
		return nil, 0, err
	}
	if from > CurrentVersion {
		return nil, from, fmt.Errorf("document schema %d is newer than %d", from, CurrentVersion)
	}

	version := from
	for version < CurrentVersion {
		m := e.find(version)
		if m == nil {
			return nil, from, fmt.Errorf("no migration found from version %d", version)
		}
		doc, err = m.Up(doc)
		if err != nil {
			return nil, from, fmt.Errorf("migration %d->%d failed: %w", m.FromVersion, m.ToVersion, err)
		}
		version = m.ToVersion
		doc["schema"] = version
	}
	return doc, from, nil
}

// UpgradeBytes decodes data, upgrades it and re-encodes the result. Data
// already at CurrentVersion is returned untouched
func (e *Evolution) UpgradeBytes(data []byte) ([]byte, int, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("decode canvas document: %w", err)
	}

	from, err := DetectVersion(doc)
	if err != nil {
		return nil, 0, err
	}
	if from == CurrentVersion {
		return data, from, nil
	}

	upgraded, from, err := e.Upgrade(doc)
	if err != nil {
		return nil, from, err
	}
	out, err := json.Marshal(upgraded)
	if err != nil {
		return nil, from, fmt.Errorf("encode canvas document: %w", err)
	}
	return out, from, nil
}

func (e *Evolution) find(from int) *Migration {
	for i := range e.migrations {
		if e.migrations[i].FromVersion == from {
			return &e.migrations[i]
		}
	}
	return nil
}
