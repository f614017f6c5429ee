package ca

import (
	"bytes"
	"io"
	"strconv"

	"github.com/pjbgf/sha1cd"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/planetscentral/filestore/dirfs"
	"github.com/planetscentral/filestore/objectid"
)

// Store is the central component of the content-addressable backend: it
// stores and retrieves typed objects by content hash, aggregating an
// optional ObjectCache and a ReferenceCounter on top of a dirfs.Handler
// holding one loose-object file per ObjectId (spec.md §4.3).
//
// We do not try to combine or cancel writes across calls: updating three
// files in a directory writes the individual versions of that directory
// several times. With reference counting, the superseded versions are
// deleted again immediately — on a typical filesystem, before they ever
// reach disk.
type Store struct {
	dir     dirfs.Handler
	subdirs map[byte]dirfs.Handler
	counter ReferenceCounter
	cache   ObjectCache
	log     logrus.FieldLogger
}

// StoreOption configures NewStore.
type StoreOption func(*Store)

// WithCache overrides the default InternalObjectCache.
func WithCache(c ObjectCache) StoreOption {
	return func(s *Store) { s.cache = c }
}

// WithReferenceCounter overrides the default InternalReferenceCounter.
func WithReferenceCounter(c ReferenceCounter) StoreOption {
	return func(s *Store) { s.counter = c }
}

// WithLogger attaches a logger; hash collisions are logged at Error
// before being returned, since they indicate store corruption an
// operator needs to see immediately (SPEC_FULL.md §4.11).
func WithLogger(log logrus.FieldLogger) StoreOption {
	return func(s *Store) { s.log = log }
}

// NewStore opens dir (the "objects" directory) as an object store,
// discovering any existing two-hex-digit subdirectories.
func NewStore(dir dirfs.Handler, opts ...StoreOption) (*Store, error) {
	s := &Store{
		dir:     dir,
		subdirs: make(map[byte]dirfs.Handler),
		counter: NewInternalReferenceCounter(),
		cache:   NewDefaultObjectCache(),
		log:     discardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var readErr error
	err := dir.ReadContent(dirfs.CallbackFunc(func(info dirfs.Info) {
		if readErr != nil || info.Type != dirfs.Directory || len(info.Name) != 2 {
			return
		}
		b, ok := parseHexByte(info.Name)
		if !ok {
			return
		}
		h, err := dir.GetDirectory(info)
		if err != nil {
			readErr = err
			return
		}
		s.subdirs[b] = h
	}))
	if err != nil {
		return nil, errors.Wrap(err, "read objects directory")
	}
	if readErr != nil {
		return nil, readErr
	}

	return s, nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func parseHexByte(s string) (byte, bool) {
	if len(s) != 2 {
		return 0, false
	}
	id := objectid.FromHex(s)
	if id.ToHex()[:2] != s {
		return 0, false
	}
	return id[0], true
}

func tailName(id objectid.ObjectId) string {
	return id.ToHex()[2:]
}

func firstByteName(b byte) string {
	return objectid.ObjectId{b}.ToHex()[:2]
}

// GetObject returns the payload for id, verifying it is of type t.
// Reading Nil returns an empty payload without touching storage.
func (s *Store) GetObject(id objectid.ObjectId, t Type) ([]byte, error) {
	_, content, found, err := s.loadObject(id, t, true)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrMissingObject, "%s", id)
	}
	return content, nil
}

// GetObjectSize returns the payload size for id without necessarily
// decoding the whole payload.
func (s *Store) GetObjectSize(id objectid.ObjectId, t Type) (int, error) {
	size, _, found, err := s.loadObject(id, t, false)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.Wrapf(ErrMissingObject, "%s", id)
	}
	return size, nil
}

// GetCommitTreeID resolves id as a commit and returns the tree it points at.
func (s *Store) GetCommitTreeID(id objectid.ObjectId) (objectid.ObjectId, error) {
	payload, err := s.GetObject(id, CommitObject)
	if err != nil {
		return objectid.ObjectId{}, err
	}
	c, ok := ParseCommit(payload)
	if !ok {
		return objectid.ObjectId{}, errors.Wrapf(ErrBadObjectContent, "%s: not a valid commit", id)
	}
	return c.TreeID, nil
}

// AddObject stores data under type t, returning its ObjectId. If an
// object with that id already exists its content is verified to match
// (else ErrHashCollision) and its reference count is bumped; otherwise a
// new loose object is written with an initial count of 1.
//
// The caller is expected to have already linked (accounted a +1 for)
// every child object referenced by data, for tree/commit payloads; if
// this call turns out to be deduplicating rather than creating, it
// cancels one link per child to undo that speculative accounting.
func (s *Store) AddObject(t Type, data []byte) (objectid.ObjectId, error) {
	h := sha1cd.New()
	io.WriteString(h, t.keyword())
	io.WriteString(h, " ")
	io.WriteString(h, strconv.Itoa(len(data)))
	h.Write([]byte{0})
	h.Write(data)
	id := objectid.FromHash(h)

	_, existing, found, err := s.loadObject(id, t, true)
	if err != nil {
		return objectid.ObjectId{}, err
	}
	if found {
		if !bytes.Equal(existing, data) {
			s.log.WithField("object_id", id).Error("hash collision detected")
			return objectid.ObjectId{}, errors.Wrapf(ErrHashCollision, "%s", id)
		}
		if err := s.unlinkContent(t, data); err != nil {
			return objectid.ObjectId{}, err
		}
		s.counter.Modify(id, +1)
		return id, nil
	}

	sub, err := s.subdirForCreate(id)
	if err != nil {
		return objectid.ObjectId{}, err
	}
	framed, err := encodeLoose(t, data)
	if err != nil {
		return objectid.ObjectId{}, err
	}
	if _, err := sub.CreateFile(tailName(id), framed); err != nil {
		return objectid.ObjectId{}, err
	}

	s.counter.Set(id, 1)
	s.cache.AddObject(id, t, data)
	return id, nil
}

// LinkObject adds one to id's reference count. A no-op for Nil.
func (s *Store) LinkObject(id objectid.ObjectId) {
	if id.IsNil() {
		return
	}
	s.counter.Modify(id, +1)
}

// UnlinkObject removes one from id's reference count. At zero, the
// object is removed from storage and, if it is a tree or commit, its
// children are recursively unlinked. A no-op for Nil.
func (s *Store) UnlinkObject(t Type, id objectid.ObjectId) error {
	if id.IsNil() {
		return nil
	}

	newValue, ok := s.counter.Modify(id, -1)
	if !ok || newValue != 0 {
		return nil
	}

	if t != DataObject {
		payload, err := s.GetObject(id, t)
		if err != nil {
			return err
		}
		if err := s.unlinkContent(t, payload); err != nil {
			return err
		}
	}

	if sub, ok := s.subdirFor(id); ok {
		if err := sub.RemoveFile(tailName(id)); err != nil && !errors.Is(err, dirfs.ErrFileNotFound) {
			return err
		}
	}
	s.cache.RemoveObject(id)
	return nil
}

// unlinkContent unlinks every object that payload (of type t) refers to,
// called right before the object itself is removed.
func (s *Store) unlinkContent(t Type, payload []byte) error {
	switch t {
	case DataObject:
		return nil

	case TreeObject:
		rest := payload
		for {
			e, ok := ParseDirectoryEntry(&rest)
			if !ok {
				return nil
			}
			childType := DataObject
			if e.Type == dirfs.Directory {
				childType = TreeObject
			}
			if err := s.UnlinkObject(childType, e.ID); err != nil {
				return err
			}
		}

	case CommitObject:
		c, ok := ParseCommit(payload)
		if !ok {
			return nil
		}
		return s.UnlinkObject(TreeObject, c.TreeID)
	}
	return nil
}

// SubdirectoryHandler returns the loose-object directory for the given
// fan-out byte, if it has been created. Used by GarbageCollector to
// sweep the 256 buckets one at a time.
func (s *Store) SubdirectoryHandler(b byte) (dirfs.Handler, bool) {
	h, ok := s.subdirs[b]
	return h, ok
}

func (s *Store) subdirFor(id objectid.ObjectId) (dirfs.Handler, bool) {
	h, ok := s.subdirs[id[0]]
	return h, ok
}

func (s *Store) subdirForCreate(id objectid.ObjectId) (dirfs.Handler, error) {
	if h, ok := s.subdirs[id[0]]; ok {
		return h, nil
	}

	info, err := s.dir.CreateDirectory(firstByteName(id[0]))
	if err != nil {
		return nil, err
	}
	h, err := s.dir.GetDirectory(info)
	if err != nil {
		return nil, err
	}
	s.subdirs[id[0]] = h
	return h, nil
}

// loadObject is the shared implementation behind GetObject/GetObjectSize
// and AddObject's existence check: it tries the cache first, then falls
// back to reading and decoding the loose object file.
func (s *Store) loadObject(id objectid.ObjectId, t Type, withContent bool) (size int, content []byte, found bool, err error) {
	if id.IsNil() {
		if withContent {
			content = []byte{}
		}
		return 0, content, true, nil
	}

	if !withContent {
		if sz, ok, cerr := s.cache.GetObjectSize(id, t); cerr != nil {
			return 0, nil, false, cerr
		} else if ok {
			return sz, nil, true, nil
		}
	} else {
		if c, ok, cerr := s.cache.GetObject(id, t); cerr != nil {
			return 0, nil, false, cerr
		} else if ok {
			return len(c), c, true, nil
		}
	}

	sub, ok := s.subdirFor(id)
	if !ok {
		return 0, nil, false, nil
	}

	raw, err := sub.GetFileByName(tailName(id))
	if err != nil {
		if errors.Is(err, dirfs.ErrFileNotFound) {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}

	if withContent {
		size, payload, derr := decodeLoose(raw, t, true)
		if derr != nil {
			return 0, nil, false, derr
		}
		s.cache.AddObject(id, t, payload)
		return size, payload, true, nil
	}

	size, derr := decodeLooseSize(raw, t)
	if derr != nil {
		return 0, nil, false, derr
	}
	s.cache.AddObjectSize(id, t, size)
	return size, nil, true, nil
}
