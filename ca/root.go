package ca

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/planetscentral/filestore/dirfs"
	"github.com/planetscentral/filestore/objectid"
)

const masterRefName = "master"

// Root binds a physical directory (the on-disk "game directory") to a
// content-addressable object store rooted under "objects", and to a
// master commit id persisted at refs/heads/master (spec.md §4.10). The
// master commit is created lazily on first use.
type Root struct {
	base     dirfs.Handler
	store    *Store
	refsDir  dirfs.Handler
	previous objectid.ObjectId
	haveRef  bool
}

// OpenRoot opens base as a Root, creating the "objects" and
// "refs/heads" subdirectories if they don't already exist.
func OpenRoot(base dirfs.Handler, opts ...StoreOption) (*Root, error) {
	objectsDir, err := openOrCreateDir(base, "objects")
	if err != nil {
		return nil, errors.Wrap(err, "open objects directory")
	}
	store, err := NewStore(objectsDir, opts...)
	if err != nil {
		return nil, err
	}

	refsRoot, err := openOrCreateDir(base, "refs")
	if err != nil {
		return nil, errors.Wrap(err, "open refs directory")
	}
	refsHeads, err := openOrCreateDir(refsRoot, "heads")
	if err != nil {
		return nil, errors.Wrap(err, "open refs/heads directory")
	}

	return &Root{base: base, store: store, refsDir: refsHeads}, nil
}

func openOrCreateDir(h dirfs.Handler, name string) (dirfs.Handler, error) {
	d, err := h.GetDirectory(dirfs.Info{Name: name})
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, dirfs.ErrFileNotFound) {
		return nil, err
	}

	info, err := h.CreateDirectory(name)
	if err != nil {
		return nil, err
	}
	return h.GetDirectory(info)
}

// ObjectStore returns the object store backing this root.
func (r *Root) ObjectStore() *Store {
	return r.store
}

// GetMasterCommitId reads the current master commit id. ok is false if
// no master ref has been written yet.
func (r *Root) GetMasterCommitId() (objectid.ObjectId, bool, error) {
	data, err := r.refsDir.GetFileByName(masterRefName)
	if err != nil {
		if errors.Is(err, dirfs.ErrFileNotFound) {
			return objectid.ObjectId{}, false, nil
		}
		return objectid.ObjectId{}, false, err
	}

	hex := strings.TrimSpace(string(data))
	id := objectid.FromHex(hex)
	if id.ToHex() != hex {
		return objectid.ObjectId{}, false, errors.Errorf("refs/heads/master: not a valid object id: %q", hex)
	}
	return id, true, nil
}

// setMasterCommitId overwrites the master ref. CreateFile on most
// backends is a create-and-truncate rather than a rename into place, so
// a crash mid-write can in principle leave a short read; this mirrors
// the teacher's plain-file ref storage rather than adding a journal.
func (r *Root) setMasterCommitId(id objectid.ObjectId) error {
	_, err := r.refsDir.CreateFile(masterRefName, []byte(id.ToHex()+"\n"))
	return err
}

// commitTree wraps treeID in a new commit object. treeID is expected to
// carry exactly the one reference count this commit is about to take
// over, per the same "creator conveys ownership" convention AddObject
// uses for any freshly built tree.
func (r *Root) commitTree(treeID objectid.ObjectId) (objectid.ObjectId, error) {
	return r.store.AddObject(CommitObject, NewCommit(treeID).Store())
}

// CreateRootHandler returns a dirfs.Handler bound to the tree of the
// current master commit (creating an empty one if this is a brand new
// root), wired so that every mutation made through it eventually updates
// the master ref and unlinks the commit it superseded.
func (r *Root) CreateRootHandler() (dirfs.Handler, error) {
	commitID, ok, err := r.GetMasterCommitId()
	if err != nil {
		return nil, err
	}

	var treeID objectid.ObjectId
	if ok {
		treeID, err = r.store.GetCommitTreeID(commitID)
		if err != nil {
			return nil, err
		}
	} else {
		treeID, err = r.store.AddObject(TreeObject, []byte{})
		if err != nil {
			return nil, err
		}
		commitID, err = r.commitTree(treeID)
		if err != nil {
			return nil, err
		}
		if err := r.setMasterCommitId(commitID); err != nil {
			return nil, err
		}
	}

	r.previous = commitID
	r.haveRef = true

	return NewHandler(r.store, treeID, "", (*rootUpdater)(r)), nil
}

// rootUpdater is the ReferenceUpdater installed at the top of the chain:
// it is the only link that persists anything or unlinks a superseded
// commit (spec.md §4.4).
type rootUpdater Root

func (u *rootUpdater) UpdateDirectoryReference(_ string, newTreeID objectid.ObjectId) error {
	r := (*Root)(u)

	newCommitID, err := r.commitTree(newTreeID)
	if err != nil {
		return err
	}
	if err := r.setMasterCommitId(newCommitID); err != nil {
		return err
	}
	if r.haveRef {
		if err := r.store.UnlinkObject(CommitObject, r.previous); err != nil {
			return err
		}
	}
	r.previous = newCommitID
	r.haveRef = true
	return nil
}
