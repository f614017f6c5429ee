package ca

import (
	"container/list"

	"github.com/pkg/errors"

	"github.com/planetscentral/filestore/objectid"
)

// Default InternalObjectCache limits (spec.md §4.7): chosen as a
// compromise between RAM use and avoiding repeated decompression of the
// same directory trees during a tree-update chain.
const (
	DefaultMaxCachedObjects = 10000
	DefaultMaxCachedBytes   = 30 * 1000 * 1000
)

// trimFraction is how much of each limit survives a trim pass.
const trimFraction = 0.75

type cacheNode struct {
	id      objectid.ObjectId
	typ     Type
	content []byte // nil once evicted down to size-only, or if never cached with content
	size    int
	elem    *list.Element
}

// InternalObjectCache is an in-memory LRU bounded by object count and
// total payload bytes. On overflow it trims to 75% of each limit,
// preferring to keep size metadata (dropping payload) over dropping an
// entry outright — a size-only hit still saves a decompression, it just
// can't save a re-read.
type InternalObjectCache struct {
	entries    map[objectid.ObjectId]*cacheNode
	order      *list.List // front = most recently used
	numObjects int
	numBytes   int
	maxObjects int
	maxBytes   int
}

// NewInternalObjectCache creates a cache with explicit limits.
func NewInternalObjectCache(maxObjects, maxBytes int) *InternalObjectCache {
	return &InternalObjectCache{
		entries:    make(map[objectid.ObjectId]*cacheNode),
		order:      list.New(),
		maxObjects: maxObjects,
		maxBytes:   maxBytes,
	}
}

// NewDefaultObjectCache creates a cache with the default spec.md §4.7 limits.
func NewDefaultObjectCache() *InternalObjectCache {
	return NewInternalObjectCache(DefaultMaxCachedObjects, DefaultMaxCachedBytes)
}

func (c *InternalObjectCache) touch(n *cacheNode) {
	c.order.MoveToFront(n.elem)
}

func (c *InternalObjectCache) AddObject(id objectid.ObjectId, t Type, content []byte) {
	c.RemoveObject(id)

	n := &cacheNode{id: id, typ: t, content: content, size: len(content)}
	n.elem = c.order.PushFront(n)
	c.entries[id] = n
	c.numObjects++
	c.numBytes += n.size

	c.trim()
}

func (c *InternalObjectCache) AddObjectSize(id objectid.ObjectId, t Type, size int) {
	if n, ok := c.entries[id]; ok {
		c.touch(n)
		return
	}

	n := &cacheNode{id: id, typ: t, size: size}
	n.elem = c.order.PushFront(n)
	c.entries[id] = n
	c.numObjects++

	c.trim()
}

func (c *InternalObjectCache) RemoveObject(id objectid.ObjectId) {
	n, ok := c.entries[id]
	if !ok {
		return
	}
	c.numBytes -= len(n.content)
	c.numObjects--
	c.order.Remove(n.elem)
	delete(c.entries, id)
}

func (c *InternalObjectCache) GetObject(id objectid.ObjectId, t Type) ([]byte, bool, error) {
	n, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	if n.typ != t {
		return nil, true, errors.Wrapf(ErrHashCollision, "%s cached as %s, requested as %s", id, n.typ, t)
	}
	c.touch(n)
	if n.content == nil {
		return nil, false, nil
	}
	return n.content, true, nil
}

func (c *InternalObjectCache) GetObjectSize(id objectid.ObjectId, t Type) (int, bool, error) {
	n, ok := c.entries[id]
	if !ok {
		return 0, false, nil
	}
	if n.typ != t {
		return 0, true, errors.Wrapf(ErrHashCollision, "%s cached as %s, requested as %s", id, n.typ, t)
	}
	c.touch(n)
	return n.size, true, nil
}

func (c *InternalObjectCache) trim() {
	if c.numObjects <= c.maxObjects && c.numBytes <= c.maxBytes {
		return
	}

	limitObjects := int(float64(c.maxObjects) * trimFraction)
	limitBytes := int(float64(c.maxBytes) * trimFraction)

	var didObjects, didBytes int
	for e := c.order.Front(); e != nil; {
		next := e.Next()
		n := e.Value.(*cacheNode)

		switch {
		case didObjects >= limitObjects:
			c.RemoveObject(n.id)
		case didBytes >= limitBytes:
			didObjects++
			c.numBytes -= len(n.content)
			n.content = nil
		default:
			didObjects++
			didBytes += len(n.content)
		}
		e = next
	}
}
