package nodes

import (
	"sync"
	"time"
)

// Catalog holds the latest successful listing. It is replaced wholesale on
// every refresh and read by connect validation and rotation selection.
// Safe for concurrent use; reads never contend the orchestration lock.
type Catalog struct {
	mu        sync.RWMutex
	nodes     []Node
	summary   Summary
	updatedAt time.Time
}

func NewCatalog() *Catalog { return &Catalog{} }

// Replace swaps in a fresh listing.
func (c *Catalog) Replace(nodes []Node, summary Summary) {
	c.mu.Lock()
	c.nodes = nodes
	c.summary = summary
	c.updatedAt = time.Now()
	c.mu.Unlock()
}

// Nodes returns a copy of the current listing.
func (c *Catalog) Nodes() []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

func (c *Catalog) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summary
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

func (c *Catalog) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// HasLabel reports whether label exists in the current listing.
func (c *Catalog) HasLabel(label string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range c.nodes {
		if n.Label == label {
			return true
		}
	}
	return false
}

// FirstLabel returns the first catalog label, if any.
func (c *Catalog) FirstLabel() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.nodes) == 0 {
		return "", false
	}
	return c.nodes[0].Label, true
}

// NextAfter returns the label following current in catalog order, wrapping
// from the last back to the first. When current is empty or absent from the
// catalog, the first label is returned.
func (c *Catalog) NextAfter(current string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.nodes) == 0 {
		return "", false
	}
	for i, n := range c.nodes {
		if n.Label == current {
			return c.nodes[(i+1)%len(c.nodes)].Label, true
		}
	}
	return c.nodes[0].Label, true
}
