package dirfs

import (
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
)

// osHandler adapts a go-billy Filesystem, chrooted to one directory, to
// the Handler contract. It carries no content addressing of its own —
// ContentID is always empty and CopyFile always reports ok=false, which
// is exactly the "let the caller fall back to a stream copy" behavior
// spec.md §4.6 describes for cross-backend copies.
//
// This is the disk-facing half of the store: ca.Store is handed one of
// these (rooted at "objects") to hold loose objects, and ca.Root is
// handed one (rooted at the game directory) to hold refs/heads/master.
type osHandler struct {
	fs   billy.Filesystem
	name string
}

// NewOSHandler wraps fs (already chrooted/rooted at the directory this
// handler should expose) as a dirfs.Handler.
func NewOSHandler(fs billy.Filesystem) Handler {
	return &osHandler{fs: fs, name: fs.Root()}
}

func (h *osHandler) Name() string { return h.name }

func (h *osHandler) GetFile(info Info) ([]byte, error) {
	return h.GetFileByName(info.Name)
}

func (h *osHandler) GetFileByName(name string) ([]byte, error) {
	f, err := h.fs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrFileNotFound, "%s/%s", h.name, name)
		}
		return nil, errors.Wrapf(err, "open %s/%s", h.name, name)
	}
	defer f.Close()

	return io.ReadAll(f)
}

func (h *osHandler) CreateFile(name string, content []byte) (Info, error) {
	if fi, err := h.fs.Stat(name); err == nil && fi.IsDir() {
		return Info{}, errors.Wrapf(ErrAlreadyExists, "%s/%s", h.name, name)
	}

	f, err := h.fs.Create(name)
	if err != nil {
		return Info{}, errors.Wrapf(err, "create %s/%s", h.name, name)
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return Info{}, errors.Wrapf(err, "write %s/%s", h.name, name)
	}

	return Info{Name: name, Type: File}.WithSize(int64(len(content))), nil
}

func (h *osHandler) RemoveFile(name string) error {
	fi, err := h.fs.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrFileNotFound, "%s/%s", h.name, name)
		}
		return errors.Wrapf(err, "stat %s/%s", h.name, name)
	}
	if fi.IsDir() {
		return errors.Wrapf(ErrTypeMismatch, "%s/%s", h.name, name)
	}
	if err := h.fs.Remove(name); err != nil {
		return errors.Wrapf(err, "remove %s/%s", h.name, name)
	}
	return nil
}

func (h *osHandler) CopyFile(ReadOnlyHandler, Info, string) (Info, bool, error) {
	return Info{}, false, nil
}

func (h *osHandler) ReadContent(cb Callback) error {
	entries, err := h.fs.ReadDir("")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "readdir %s", h.name)
	}

	for _, e := range entries {
		info := Info{Name: e.Name(), Type: File}
		if e.IsDir() {
			info.Type = Directory
		} else {
			info = info.WithSize(e.Size())
		}
		cb.AddItem(info)
	}
	return nil
}

func (h *osHandler) GetDirectory(info Info) (Handler, error) {
	fi, err := h.fs.Stat(info.Name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrFileNotFound, "%s/%s", h.name, info.Name)
		}
		return nil, errors.Wrapf(err, "stat %s/%s", h.name, info.Name)
	}
	if !fi.IsDir() {
		return nil, errors.Wrapf(ErrTypeMismatch, "%s/%s", h.name, info.Name)
	}

	sub, err := h.fs.Chroot(info.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "chroot %s/%s", h.name, info.Name)
	}
	return NewOSHandler(sub), nil
}

func (h *osHandler) CreateDirectory(name string) (Info, error) {
	if _, err := h.fs.Stat(name); err == nil {
		return Info{}, errors.Wrapf(ErrAlreadyExists, "%s/%s", h.name, name)
	}
	if err := h.fs.MkdirAll(name, 0o755); err != nil {
		return Info{}, errors.Wrapf(err, "mkdir %s/%s", h.name, name)
	}
	return Info{Name: name, Type: Directory}, nil
}

func (h *osHandler) RemoveDirectory(name string) error {
	fi, err := h.fs.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrFileNotFound, "%s/%s", h.name, name)
		}
		return errors.Wrapf(err, "stat %s/%s", h.name, name)
	}
	if !fi.IsDir() {
		return errors.Wrapf(ErrTypeMismatch, "%s/%s", h.name, name)
	}

	entries, err := h.fs.ReadDir(name)
	if err != nil {
		return errors.Wrapf(err, "readdir %s/%s", h.name, name)
	}
	if len(entries) != 0 {
		return errors.Wrapf(ErrDirNotEmpty, "%s/%s", h.name, name)
	}
	if err := h.fs.Remove(name); err != nil {
		return errors.Wrapf(err, "remove %s/%s", h.name, name)
	}
	return nil
}
