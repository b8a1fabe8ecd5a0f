package graph

import (
	"sync"

	"ideacanvas/domain/core/valueobjects"
	"ideacanvas/domain/nodetypes"
)

type portEntry struct {
	version uint64
	ports   map[valueobjects.PortID]nodetypes.Port
}

// PortCache memoises node ports keyed by (node id, record version).
// A version bump on the record makes the cached entry stale
type PortCache struct {
	registry *nodetypes.Registry

	mu      sync.Mutex
	entries map[valueobjects.ShapeID]portEntry
}

// NewPortCache creates an empty cache computing ports through registry
func NewPortCache(registry *nodetypes.Registry) *PortCache {
	return &PortCache{
		registry: registry,
		entries:  make(map[valueobjects.ShapeID]portEntry),
	}
}

// Ports returns the ports of node id, false if the node does not exist
func (c *PortCache) Ports(r Reader, id valueobjects.ShapeID) (map[valueobjects.PortID]nodetypes.Port, bool) {
	shape, ok := r.Shape(id)
	if !ok {
		c.Invalidate(id)
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, hit := c.entries[id]
	if !hit || entry.version != shape.Version {
		entry = portEntry{version: shape.Version, ports: c.registry.Ports(shape.Node)}
		c.entries[id] = entry
	}
	return copyPorts(entry.ports), true
}

// Port returns a single port by name
func (c *PortCache) Port(r Reader, id valueobjects.ShapeID, port valueobjects.PortID) (nodetypes.Port, bool) {
	ports, ok := c.Ports(r, id)
	if !ok {
		return nodetypes.Port{}, false
	}
	p, ok := ports[port]
	return p, ok
}

// PortFor returns the first port of node id with the given terminal role
func (c *PortCache) PortFor(r Reader, id valueobjects.ShapeID, terminal valueobjects.Terminal) (nodetypes.Port, bool) {
	ports, ok := c.Ports(r, id)
	if !ok {
		return nodetypes.Port{}, false
	}
	// input/output are the only names today; check them in a fixed order
	for _, name := range []valueobjects.PortID{valueobjects.PortInput, valueobjects.PortOutput} {
		if p, ok := ports[name]; ok && p.Terminal == terminal {
			return p, true
		}
	}
	for _, p := range ports {
		if p.Terminal == terminal {
			return p, true
		}
	}
	return nodetypes.Port{}, false
}

// Invalidate drops the entry for id
func (c *PortCache) Invalidate(id valueobjects.ShapeID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Len reports how many nodes have cached ports
func (c *PortCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func copyPorts(in map[valueobjects.PortID]nodetypes.Port) map[valueobjects.PortID]nodetypes.Port {
	out := make(map[valueobjects.PortID]nodetypes.Port, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
