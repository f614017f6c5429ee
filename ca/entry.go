package ca

import (
	"bytes"

	"github.com/planetscentral/filestore/dirfs"
	"github.com/planetscentral/filestore/objectid"
)

const (
	modeFile      = "100644"
	modeDirectory = "40000"
)

// DirectoryEntry is one record in a Tree object's payload:
// "<mode-octal-ascii> <name>\0<20-byte-raw-id>". Modes other than the two
// recognized ones round-trip verbatim (spec.md §3) so a tree written by
// another tool using extended modes (e.g. Git's 120000 symlinks) isn't
// silently corrupted by a pass through this store.
type DirectoryEntry struct {
	Name string
	ID   objectid.ObjectId
	Type dirfs.EntryType

	// mode is the raw mode string as parsed. Empty for entries built by
	// NewDirectoryEntry, in which case Store derives the canonical mode
	// from Type.
	mode string
}

// NewDirectoryEntry builds an entry for writing. typ must be File or
// Directory — unknown entries only arise from parsing, never construction.
func NewDirectoryEntry(name string, id objectid.ObjectId, typ dirfs.EntryType) DirectoryEntry {
	return DirectoryEntry{Name: name, ID: id, Type: typ}
}

// ParseDirectoryEntry greedily consumes one entry from the front of
// *data, advancing *data past it. It returns ok=false on an empty slice,
// or on malformed input (bad mode separator, missing name terminator,
// short id) — callers treat a parse failure as end-of-tree, per
// spec.md §4.4.
func ParseDirectoryEntry(data *[]byte) (DirectoryEntry, bool) {
	b := *data
	if len(b) == 0 {
		return DirectoryEntry{}, false
	}

	sp := bytes.IndexByte(b, ' ')
	if sp <= 0 {
		return DirectoryEntry{}, false
	}
	mode := string(b[:sp])
	b = b[sp+1:]

	nul := bytes.IndexByte(b, 0)
	if nul < 0 {
		return DirectoryEntry{}, false
	}
	name := string(b[:nul])
	b = b[nul+1:]

	if len(b) < objectid.Size {
		return DirectoryEntry{}, false
	}
	var id objectid.ObjectId
	copy(id[:], b[:objectid.Size])
	b = b[objectid.Size:]

	typ := dirfs.Unknown
	switch mode {
	case modeFile:
		typ = dirfs.File
	case modeDirectory:
		typ = dirfs.Directory
	}

	*data = b
	return DirectoryEntry{Name: name, ID: id, Type: typ, mode: mode}, true
}

// canonicalMode returns the mode string to write: the raw parsed mode
// for round-tripped unknown entries, else the mode matching Type.
func (e DirectoryEntry) canonicalMode() string {
	if e.mode != "" {
		return e.mode
	}
	if e.Type == dirfs.Directory {
		return modeDirectory
	}
	return modeFile
}

// Store appends the canonical on-disk encoding of e to *out.
func (e DirectoryEntry) Store(out *[]byte) {
	*out = append(*out, e.canonicalMode()...)
	*out = append(*out, ' ')
	*out = append(*out, e.Name...)
	*out = append(*out, 0)
	*out = append(*out, e.ID[:]...)
}

// sortKey returns the name used for ordering: directories compare as if
// suffixed with "/" (spec.md §3), so "a.b" < "a" (dir) < "a0".
func (e DirectoryEntry) sortKey() string {
	if e.Type == dirfs.Directory {
		return e.Name + "/"
	}
	return e.Name
}

// IsBefore implements the directory-suffix-aware ordering required for
// Git interoperability: exact byte-lexicographic comparison of each
// entry's sortKey.
func (e DirectoryEntry) IsBefore(other DirectoryEntry) bool {
	return e.sortKey() < other.sortKey()
}
