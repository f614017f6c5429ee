package ca

import (
	"bytes"

	"github.com/planetscentral/filestore/objectid"
)

// Commit is the minimal Git-compatible commit object this store writes:
// just enough for `git fsck` to accept it (spec.md §4.5). Only the tree
// id is semantically meaningful here; author/committer/message are
// stable filler so the bytes — and therefore the resulting ObjectId —
// are reproducible for a given tree.
type Commit struct {
	TreeID objectid.ObjectId
}

// NewCommit builds a commit pointing at treeID.
func NewCommit(treeID objectid.ObjectId) Commit {
	return Commit{TreeID: treeID}
}

// ParseCommit extracts the tree id from a commit object's payload. Only
// the first line ("tree <40-hex>\n") is interpreted; everything after is
// ignored, per spec.md §4.5. ok is false if the first line isn't a
// well-formed tree reference.
func ParseCommit(payload []byte) (Commit, bool) {
	const prefix = "tree "
	if len(payload) < len(prefix) || string(payload[:len(prefix)]) != prefix {
		return Commit{}, false
	}
	rest := payload[len(prefix):]

	end := bytes.IndexAny(rest, "\n\x00")
	var hexPart []byte
	if end < 0 {
		hexPart = rest
	} else {
		hexPart = rest[:end]
	}
	if len(hexPart) != 2*objectid.Size {
		return Commit{}, false
	}

	id := objectid.FromHex(string(hexPart))
	if id.ToHex() != string(hexPart) {
		return Commit{}, false
	}
	return Commit{TreeID: id}, true
}

// Store emits the commit body: "tree <hex>\n" followed by the minimal
// author/committer/message triad that keeps `git fsck` quiet.
func (c Commit) Store() []byte {
	var buf bytes.Buffer
	buf.WriteString("tree ")
	buf.WriteString(c.TreeID.ToHex())
	buf.WriteString("\n")
	buf.WriteString("author filestore <> 1 +0000\n")
	buf.WriteString("committer filestore <> 1 +0000\n")
	buf.WriteString("\nfilestore commit\n")
	return buf.Bytes()
}
