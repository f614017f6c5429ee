package ca

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/planetscentral/filestore/dirfs"
	"github.com/planetscentral/filestore/objectid"
)

// ReferenceUpdater propagates a tree mutation one level up: when a
// subtree is rewritten under a new id, its parent learns the new id
// under updateDirectoryEntry's name and rewrites itself in turn, all the
// way to the root (spec.md §4.4, "ReferenceUpdater chain"). The chain's
// last link — installed by Root.CreateRootHandler — is the one that
// actually persists anything; every link in between is just bookkeeping
// for an in-flight update.
type ReferenceUpdater interface {
	UpdateDirectoryReference(name string, newID objectid.ObjectId) error
}

// contentUpdater owns one tree object's current id and knows how to
// rewrite it — used both as the mutable state behind a Handler and, by
// implementing ReferenceUpdater itself, as the updater a child Handler
// calls back into.
type contentUpdater struct {
	store   *Store
	id      objectid.ObjectId
	name    string
	updater ReferenceUpdater
}

func newContentUpdater(store *Store, id objectid.ObjectId, name string, updater ReferenceUpdater) *contentUpdater {
	return &contentUpdater{store: store, id: id, name: name, updater: updater}
}

func (c *contentUpdater) childName(child string) string {
	return fmt.Sprintf("%s in %s %q", child, c.id, c.name)
}

func (c *contentUpdater) treeObject() ([]byte, error) {
	return c.store.GetObject(c.id, TreeObject)
}

// UpdateDirectoryReference implements ReferenceUpdater for a child
// Handler calling back into its parent.
func (c *contentUpdater) UpdateDirectoryReference(name string, newID objectid.ObjectId) error {
	if newID == c.id {
		return nil
	}
	return c.updateDirectoryEntry(name, newID, dirfs.Directory, true)
}

// updateDirectoryEntry rewrites this tree's payload so that name maps to
// newID, inserting in sorted order if name is new. Every untouched
// sibling is re-linked as it is copied forward: the rewritten tree is a
// second reference to it, alongside the still-reachable previous version
// of this tree (spec.md §4.4).
func (c *contentUpdater) updateDirectoryEntry(name string, newID objectid.ObjectId, typ dirfs.EntryType, allowReplace bool) error {
	oldBytes, err := c.treeObject()
	if err != nil {
		return err
	}
	newEntry := NewDirectoryEntry(name, newID, typ)

	var newBytes []byte
	rest := oldBytes
	did := false
	for {
		e, ok := ParseDirectoryEntry(&rest)
		if !ok {
			break
		}
		switch {
		case did:
			e.Store(&newBytes)
			c.store.LinkObject(e.ID)
		case e.Name == name:
			if e.Type != typ || !allowReplace {
				return errors.Wrapf(dirfs.ErrAlreadyExists, "%s", c.childName(name))
			}
			newEntry.Store(&newBytes)
			did = true
		case newEntry.IsBefore(e):
			newEntry.Store(&newBytes)
			did = true
			e.Store(&newBytes)
			c.store.LinkObject(e.ID)
		default:
			e.Store(&newBytes)
			c.store.LinkObject(e.ID)
		}
	}
	if !did {
		newEntry.Store(&newBytes)
	}

	return c.replaceDirectory(newBytes)
}

// removeDirectoryEntry rewrites this tree's payload with name removed.
func (c *contentUpdater) removeDirectoryEntry(name string, typ dirfs.EntryType) error {
	oldBytes, err := c.treeObject()
	if err != nil {
		return err
	}

	var newBytes []byte
	rest := oldBytes
	did := false
	for {
		e, ok := ParseDirectoryEntry(&rest)
		if !ok {
			break
		}
		if e.Name == name {
			if e.Type != typ {
				return errors.Wrapf(dirfs.ErrTypeMismatch, "%s", c.childName(name))
			}
			if typ == dirfs.Directory {
				size, err := c.store.GetObjectSize(e.ID, TreeObject)
				if err != nil {
					return err
				}
				if size != 0 {
					return errors.Wrapf(dirfs.ErrDirNotEmpty, "%s", c.childName(name))
				}
			}
			did = true
			continue
		}
		e.Store(&newBytes)
		c.store.LinkObject(e.ID)
	}
	if !did {
		return errors.Wrapf(dirfs.ErrFileNotFound, "%s", c.childName(name))
	}

	return c.replaceDirectory(newBytes)
}

// replaceDirectory commits newBytes as this tree's new content and
// propagates the new id to the parent. The superseded tree object is
// deliberately left alone: it is still reachable from the parent (and,
// transitively, the root commit) until the parent finishes its own
// update, at which point it is the root-level updater's unlink of the
// previous commit that reclaims whatever truly became unreachable.
func (c *contentUpdater) replaceDirectory(newBytes []byte) error {
	newID, err := c.store.AddObject(TreeObject, newBytes)
	if err != nil {
		return err
	}
	if err := c.updater.UpdateDirectoryReference(c.name, newID); err != nil {
		return err
	}
	c.id = newID
	return nil
}

// Handler is the content-addressable implementation of dirfs.Handler:
// a live view of one tree object, able to rewrite itself (and propagate
// the rewrite towards the root) on every mutation.
type Handler struct {
	content *contentUpdater
}

// NewHandler wraps the tree at id as a dirfs.Handler. Mutations call
// back into updater to propagate the new tree id upward.
func NewHandler(store *Store, id objectid.ObjectId, name string, updater ReferenceUpdater) *Handler {
	return &Handler{content: newContentUpdater(store, id, name, updater)}
}

func (h *Handler) Name() string {
	return fmt.Sprintf("%s %q", h.content.id, h.content.name)
}

func (h *Handler) GetFile(info dirfs.Info) ([]byte, error) {
	if info.ContentID != "" {
		id := objectid.FromHex(info.ContentID)
		if id.ToHex() == info.ContentID {
			return h.content.store.GetObject(id, DataObject)
		}
	}
	return h.GetFileByName(info.Name)
}

func (h *Handler) GetFileByName(name string) ([]byte, error) {
	payload, err := h.content.treeObject()
	if err != nil {
		return nil, err
	}
	rest := payload
	for {
		e, ok := ParseDirectoryEntry(&rest)
		if !ok {
			break
		}
		if e.Name == name && e.Type == dirfs.File {
			return h.content.store.GetObject(e.ID, DataObject)
		}
	}
	return nil, errors.Wrapf(dirfs.ErrFileNotFound, "%s", h.content.childName(name))
}

func (h *Handler) ReadContent(cb dirfs.Callback) error {
	payload, err := h.content.treeObject()
	if err != nil {
		return err
	}
	rest := payload
	for {
		e, ok := ParseDirectoryEntry(&rest)
		if !ok {
			break
		}
		info := dirfs.Info{Name: e.Name, Type: e.Type}
		if e.Type == dirfs.File {
			size, err := h.content.store.GetObjectSize(e.ID, DataObject)
			if err != nil {
				return err
			}
			info = info.WithSize(int64(size))
		}
		if e.Type != dirfs.Directory {
			info = info.WithContentID(e.ID.ToHex())
		}
		cb.AddItem(info)
	}
	return nil
}

func (h *Handler) CreateFile(name string, content []byte) (dirfs.Info, error) {
	id, err := h.content.store.AddObject(DataObject, content)
	if err != nil {
		return dirfs.Info{}, err
	}
	if err := h.content.updateDirectoryEntry(name, id, dirfs.File, true); err != nil {
		return dirfs.Info{}, err
	}
	return dirfs.Info{Name: name, Type: dirfs.File}.
		WithSize(int64(len(content))).
		WithContentID(id.ToHex()), nil
}

func (h *Handler) RemoveFile(name string) error {
	return h.content.removeDirectoryEntry(name, dirfs.File)
}

func (h *Handler) CopyFile(source dirfs.ReadOnlyHandler, sourceInfo dirfs.Info, name string) (dirfs.Info, bool, error) {
	other, ok := source.(*Handler)
	if !ok || other.content.store != h.content.store {
		return dirfs.Info{}, false, nil
	}
	if sourceInfo.ContentID == "" || sourceInfo.Type != dirfs.File {
		return dirfs.Info{}, false, nil
	}
	id := objectid.FromHex(sourceInfo.ContentID)
	if id.ToHex() != sourceInfo.ContentID {
		return dirfs.Info{}, false, nil
	}

	h.content.store.LinkObject(id)
	if err := h.content.updateDirectoryEntry(name, id, dirfs.File, true); err != nil {
		return dirfs.Info{}, false, err
	}

	info := dirfs.Info{Name: name, Type: dirfs.File, ContentID: sourceInfo.ContentID, Size: sourceInfo.Size}
	return info, true, nil
}

func (h *Handler) GetDirectory(info dirfs.Info) (dirfs.Handler, error) {
	payload, err := h.content.treeObject()
	if err != nil {
		return nil, err
	}
	rest := payload
	for {
		e, ok := ParseDirectoryEntry(&rest)
		if !ok {
			break
		}
		if e.Name == info.Name {
			if e.Type != dirfs.Directory {
				return nil, errors.Wrapf(dirfs.ErrTypeMismatch, "%s", h.content.childName(info.Name))
			}
			return NewHandler(h.content.store, e.ID, e.Name, h.content), nil
		}
	}
	return nil, errors.Wrapf(dirfs.ErrFileNotFound, "%s", h.content.childName(info.Name))
}

func (h *Handler) CreateDirectory(name string) (dirfs.Info, error) {
	id, err := h.content.store.AddObject(TreeObject, []byte{})
	if err != nil {
		return dirfs.Info{}, err
	}
	if err := h.content.updateDirectoryEntry(name, id, dirfs.Directory, false); err != nil {
		return dirfs.Info{}, err
	}
	return dirfs.Info{Name: name, Type: dirfs.Directory}, nil
}

func (h *Handler) RemoveDirectory(name string) error {
	return h.content.removeDirectoryEntry(name, dirfs.Directory)
}
