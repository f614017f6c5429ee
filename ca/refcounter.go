package ca

import "github.com/planetscentral/filestore/objectid"

// ReferenceCounter stores the process-lifetime reference counts backing
// ObjectStore's object lifecycle (spec.md §3, "Reference count"). Counts
// are deliberately not persisted: on restart everything reachable from
// the master commit is considered referenced, and the garbage collector
// reclaims whatever else is left lying around.
//
// A ReferenceCounter is expected to fail safe: a Modify on an id it has
// no record of reports ok=false rather than guessing, so a lost count
// never causes a double-free of an object another path still needs.
type ReferenceCounter interface {
	// Set initializes id's count to value, creating the entry.
	Set(id objectid.ObjectId, value int32)

	// Modify adds delta to id's count and returns the new value. ok is
	// false if id has no recorded count. A count that reaches zero
	// removes the entry (so a later Modify on the same id again returns
	// ok=false, containing any accidental double-unlink).
	Modify(id objectid.ObjectId, delta int32) (newValue int32, ok bool)
}

// InternalReferenceCounter is a plain in-memory ReferenceCounter backed
// by a map, matching the original's "straightforward map from ObjectId
// to int32" (spec.md §4.7).
type InternalReferenceCounter struct {
	counts map[objectid.ObjectId]int32
}

// NewInternalReferenceCounter creates an empty counter.
func NewInternalReferenceCounter() *InternalReferenceCounter {
	return &InternalReferenceCounter{counts: make(map[objectid.ObjectId]int32)}
}

func (c *InternalReferenceCounter) Set(id objectid.ObjectId, value int32) {
	c.counts[id] = value
}

func (c *InternalReferenceCounter) Modify(id objectid.ObjectId, delta int32) (int32, bool) {
	v, ok := c.counts[id]
	if !ok {
		return 0, false
	}
	v += delta
	if v == 0 {
		delete(c.counts, id)
	} else {
		c.counts[id] = v
	}
	return v, true
}
