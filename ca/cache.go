package ca

import "github.com/planetscentral/filestore/objectid"

// ObjectCache decouples the store from how (or whether) object bytes and
// sizes get memoized. A minimum implementation discards everything and
// always misses; InternalObjectCache below is the bundled LRU.
//
// Implementations must treat a lookup against an id already cached under
// a different Type as a hash collision: return found=true, err=ErrHashCollision
// rather than silently answering with the wrong object.
type ObjectCache interface {
	// AddObject caches content (original, uncompressed, unframed bytes)
	// for id/t. Safe to call for an id already fully cached.
	AddObject(id objectid.ObjectId, t Type, content []byte)

	// AddObjectSize caches just the size for id/t. Safe to call for an
	// id that already has content cached — implementations should not
	// regress a full entry to a size-only one.
	AddObjectSize(id objectid.ObjectId, t Type, size int)

	// RemoveObject evicts id, called when the store deletes it.
	RemoveObject(id objectid.ObjectId)

	// GetObject returns cached content for id/t, if any.
	GetObject(id objectid.ObjectId, t Type) (content []byte, found bool, err error)

	// GetObjectSize returns a cached size for id/t, if any.
	GetObjectSize(id objectid.ObjectId, t Type) (size int, found bool, err error)
}

// NullCache is an ObjectCache that never remembers anything: every call
// to Get* misses. Useful when caching overhead isn't worth it, e.g. a
// short-lived garbage-collection pass that reads every object exactly
// once anyway.
type NullCache struct{}

func (NullCache) AddObject(objectid.ObjectId, Type, []byte)              {}
func (NullCache) AddObjectSize(objectid.ObjectId, Type, int)             {}
func (NullCache) RemoveObject(objectid.ObjectId)                         {}
func (NullCache) GetObject(objectid.ObjectId, Type) ([]byte, bool, error) {
	return nil, false, nil
}
func (NullCache) GetObjectSize(objectid.ObjectId, Type) (int, bool, error) {
	return 0, false, nil
}
