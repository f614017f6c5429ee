// Package pack implements read access to Git-compatible pack/index file
// pairs, the offline archival format a CA object store can be exported
// into: many loose objects condensed into one "<name>.pack" file plus a
// "<name>.idx" lookup table, with delta-compressed entries allowed
// (spec.md §4.9).
package pack

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/pjbgf/sha1cd"
	"github.com/pkg/errors"

	"github.com/planetscentral/filestore/objectid"
)

const (
	indexMagic     = 0xFF744F63
	indexVersion   = 2
	overflowMark   = 0x80000000
	maxUnsortedLen = 1024
)

// Item is one entry of an Index: the object it describes, a CRC32 of its
// on-disk (still-compressed) bytes, and its byte offset within the pack.
type Item struct {
	ID  objectid.ObjectId
	CRC uint32
	Pos uint64
}

// Index is a Git v2 pack index: a sorted table mapping ObjectId to
// (CRC, pack offset), searchable in O(log n). New entries accumulate in
// an unsorted buffer and are periodically folded into the sorted table,
// trading a little read latency for much cheaper bulk inserts while
// building an index from scratch.
type Index struct {
	sorted   []Item
	unsorted []Item
}

// NewIndex returns an empty index, ready for AddItem calls.
func NewIndex() *Index {
	return &Index{}
}

// Load reads an index file and returns the pack id from its trailer
// (the SHA1 of the matching pack file's content). The index file's own
// trailing self-hash is not verified; Load checks the fixed header and
// that the object ids are strictly increasing.
func (idx *Index) Load(r io.Reader) (objectid.ObjectId, error) {
	var header struct {
		Magic, Version uint32
		Fanout         [256]uint32
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return objectid.ObjectId{}, errors.Wrapf(ErrUnsupportedFormat, "read index header: %v", err)
	}
	if header.Magic != indexMagic || header.Version != indexVersion {
		return objectid.ObjectId{}, errors.Wrap(ErrUnsupportedFormat, "pack index header")
	}

	n := int(header.Fanout[255])
	items := make([]Item, n)

	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, items[i].ID[:]); err != nil {
			return objectid.ObjectId{}, errors.Wrap(err, "read index object ids")
		}
		if i > 0 && !items[i-1].ID.Less(items[i].ID) {
			return objectid.ObjectId{}, errors.Wrap(ErrUnsupportedFormat, "pack index: objects not sorted")
		}
	}
	for i := 0; i < n; i++ {
		if err := binary.Read(r, binary.BigEndian, &items[i].CRC); err != nil {
			return objectid.ObjectId{}, errors.Wrap(err, "read index crcs")
		}
	}

	rawPos := make([]uint32, n)
	maxOverflow := uint32(0)
	for i := 0; i < n; i++ {
		if err := binary.Read(r, binary.BigEndian, &rawPos[i]); err != nil {
			return objectid.ObjectId{}, errors.Wrap(err, "read index positions")
		}
		if rawPos[i]&overflowMark != 0 {
			if need := (rawPos[i] &^ overflowMark) + 1; need > maxOverflow {
				maxOverflow = need
			}
		}
	}

	var overflow []uint64
	if maxOverflow > 0 {
		overflow = make([]uint64, maxOverflow)
		if err := binary.Read(r, binary.BigEndian, &overflow); err != nil {
			return objectid.ObjectId{}, errors.Wrap(err, "read index overflow table")
		}
	}
	for i := 0; i < n; i++ {
		if rawPos[i]&overflowMark != 0 {
			items[i].Pos = overflow[rawPos[i]&^overflowMark]
		} else {
			items[i].Pos = uint64(rawPos[i])
		}
	}

	idx.sorted = items
	idx.unsorted = nil

	var packID objectid.ObjectId
	if _, err := io.ReadFull(r, packID[:]); err != nil {
		return objectid.ObjectId{}, errors.Wrap(err, "read index trailer")
	}
	return packID, nil
}

// Save merges any pending AddItem calls and writes the index out,
// recording packID (the pack file's own content hash) in the trailer
// along with a hash of everything written before it.
func (idx *Index) Save(w io.Writer, packID objectid.ObjectId) error {
	idx.merge()

	h := sha1cd.New()
	mw := io.MultiWriter(w, h)

	var header struct {
		Magic, Version uint32
		Fanout         [256]uint32
	}
	header.Magic = indexMagic
	header.Version = indexVersion
	buildFanout(&header.Fanout, idx.sorted)
	if err := binary.Write(mw, binary.BigEndian, &header); err != nil {
		return errors.Wrap(err, "write index header")
	}

	for _, it := range idx.sorted {
		if _, err := mw.Write(it.ID[:]); err != nil {
			return errors.Wrap(err, "write index object ids")
		}
	}
	for _, it := range idx.sorted {
		if err := binary.Write(mw, binary.BigEndian, it.CRC); err != nil {
			return errors.Wrap(err, "write index crcs")
		}
	}

	var overflow []uint64
	for _, it := range idx.sorted {
		if it.Pos > 0x7FFFFFFF {
			v := uint32(overflowMark) + uint32(len(overflow))
			overflow = append(overflow, it.Pos)
			if err := binary.Write(mw, binary.BigEndian, v); err != nil {
				return errors.Wrap(err, "write index positions")
			}
		} else {
			if err := binary.Write(mw, binary.BigEndian, uint32(it.Pos)); err != nil {
				return errors.Wrap(err, "write index positions")
			}
		}
	}
	if err := binary.Write(mw, binary.BigEndian, overflow); err != nil {
		return errors.Wrap(err, "write index overflow table")
	}

	if _, err := mw.Write(packID[:]); err != nil {
		return errors.Wrap(err, "write index trailer")
	}

	indexID := objectid.FromHash(h)
	if _, err := w.Write(indexID[:]); err != nil {
		return errors.Wrap(err, "write index self-hash")
	}
	return nil
}

func buildFanout(fanout *[256]uint32, items []Item) {
	index := 0
	for b := 0; b < 256; b++ {
		for index < len(items) && int(items[index].ID[0]) == b {
			index++
		}
		fanout[b] = uint32(index)
	}
}

// FindItem looks up id, checking the sorted table (binary search) then
// the not-yet-merged unsorted buffer (linear search).
func (idx *Index) FindItem(id objectid.ObjectId) (Item, bool) {
	if it, ok := findSorted(idx.sorted, id); ok {
		return it, true
	}
	for _, it := range idx.unsorted {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func findSorted(items []Item, id objectid.ObjectId) (Item, bool) {
	i := sort.Search(len(items), func(i int) bool { return !items[i].ID.Less(id) })
	if i < len(items) && items[i].ID == id {
		return items[i], true
	}
	return Item{}, false
}

// AddItem records a new entry. The caller must ensure id isn't already present.
func (idx *Index) AddItem(id objectid.ObjectId, crc uint32, pos uint64) {
	idx.unsorted = append(idx.unsorted, Item{ID: id, CRC: crc, Pos: pos})
	if len(idx.unsorted) >= maxUnsortedLen {
		idx.merge()
	}
}

func (idx *Index) merge() {
	if len(idx.unsorted) == 0 {
		return
	}
	idx.sorted = append(idx.sorted, idx.unsorted...)
	idx.unsorted = nil
	sort.Slice(idx.sorted, func(i, j int) bool { return idx.sorted[i].ID.Less(idx.sorted[j].ID) })
}
