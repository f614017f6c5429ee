package pack

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/planetscentral/filestore/objectid"
)

const (
	packMagic   = 0x5041434B
	packVersion = 2
)

// Object type tags used in a pack entry's header byte, per Git's pack
// format (spec.md §4.9).
const (
	objCommit   = 1
	objTree     = 2
	objBlob     = 3
	objTag      = 4
	objOfsDelta = 6
	objRefDelta = 7
)

var (
	// ErrNotFound is returned by Pack.GetObject when id has no index entry.
	ErrNotFound = errors.New("object not found in pack")

	// ErrUnsupportedFormat is returned for a magic/version mismatch or a
	// truncated header in either the index or the pack file.
	ErrUnsupportedFormat = errors.New("unsupported pack/index format")

	// ErrBadReference is returned for an invalid delta offset or a delta
	// base-size mismatch.
	ErrBadReference = errors.New("bad pack reference")
)

// Requester resolves a REF_DELTA base object that may live outside this
// pack entirely (in another pack, or as a loose object).
type Requester interface {
	GetObject(id objectid.ObjectId, maxLevel int) ([]byte, error)
}

// Pack is a read-only view of one pack/index file pair, fully loaded
// into memory: packs built by this store are meant for archival export
// rather than as the live working set, so there is no benefit chasing
// the teacher's streaming, bounded-buffer read loop here.
type Pack struct {
	name  string
	index *Index
	data  []byte
}

// Open parses idxBytes and packBytes as a matched index/pack pair,
// verifying the pack's trailing self-hash against the id the index
// recorded for it.
func Open(name string, idxBytes, packBytes []byte) (*Pack, error) {
	index := NewIndex()
	packID, err := index.Load(bytes.NewReader(idxBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: load index", name)
	}

	if len(packBytes) < 12+objectid.Size {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s: pack file too short", name)
	}

	var header struct {
		Magic, Version, NumObjects uint32
	}
	if err := binary.Read(bytes.NewReader(packBytes[:12]), binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "%s: read pack header", name)
	}
	if header.Magic != packMagic || header.Version != packVersion {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", name)
	}

	var trailer objectid.ObjectId
	copy(trailer[:], packBytes[len(packBytes)-objectid.Size:])
	if trailer != packID {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s: index and pack file mismatch", name)
	}

	return &Pack{name: name, index: index, data: packBytes}, nil
}

// GetObject returns the decompressed payload for id, resolving any
// chain of OFS_DELTA/REF_DELTA entries up to maxLevel indirections. A
// maxLevel of 0 rejects delta objects outright (so the top-level caller
// controls how deep a chain it tolerates).
func (p *Pack) GetObject(id objectid.ObjectId, req Requester, maxLevel int) ([]byte, error) {
	item, ok := p.index.FindItem(id)
	if !ok {
		return nil, ErrNotFound
	}
	return p.loadObject(int64(item.Pos), req, maxLevel)
}

func (p *Pack) loadObject(pos int64, req Requester, maxLevel int) ([]byte, error) {
	if pos < 0 || pos >= int64(len(p.data)) {
		return nil, errors.Wrapf(ErrBadReference, "%s: object offset out of range", p.name)
	}
	r := bytes.NewReader(p.data[pos:])

	typeAndSize, err := readVarInt(r)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read object header", p.name)
	}
	size := int((typeAndSize>>7)<<4 | (typeAndSize & 0xF))
	objType := byte((typeAndSize >> 4) & 7)

	switch objType {
	case objCommit, objTree, objBlob, objTag:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: open object stream", p.name)
		}
		defer zr.Close()

		out := make([]byte, size)
		if _, err := io.ReadFull(zr, out); err != nil {
			return nil, errors.Wrapf(err, "%s: inflate object", p.name)
		}
		return out, nil

	case objOfsDelta:
		if maxLevel == 0 {
			return nil, errors.Wrapf(ErrBadReference, "%s: too many nested objects", p.name)
		}
		backRef, err := readOfsInt(r)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: read delta offset", p.name)
		}
		if backRef >= uint64(pos) {
			return nil, errors.Wrapf(ErrBadReference, "%s: bad offset", p.name)
		}

		base, err := p.loadObject(pos-int64(backRef), req, maxLevel-1)
		if err != nil {
			return nil, err
		}
		return p.expandDelta(r, base)

	case objRefDelta:
		if maxLevel == 0 {
			return nil, errors.Wrapf(ErrBadReference, "%s: too many nested objects", p.name)
		}
		var refID objectid.ObjectId
		if _, err := io.ReadFull(r, refID[:]); err != nil {
			return nil, errors.Wrapf(err, "%s: read delta base id", p.name)
		}

		base, err := req.GetObject(refID, maxLevel-1)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: resolve delta base %s", p.name, refID)
		}
		return p.expandDelta(r, base)

	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s: unsupported object encoding %d", p.name, objType)
	}
}

// expandDelta applies a Git delta instruction stream (read, zlib
// compressed, from r) against base, per spec.md §4.9's "Delta
// decoding". An instruction byte with its high bit set is a copy from
// base — up to seven following parameter bytes give a sparse
// little-endian (offset, length); high bit clear is a literal insert of
// the low 7 bits' worth of following bytes.
func (p *Pack) expandDelta(r io.Reader, base []byte) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: open delta stream", p.name)
	}
	defer zr.Close()
	br := newByteReader(zr)

	baseSize, err := readVarInt(br)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read delta base size", p.name)
	}
	if baseSize != uint64(len(base)) {
		return nil, errors.Wrapf(ErrBadReference, "%s: delta base size mismatch", p.name)
	}

	resultSize, err := readVarInt(br)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read delta result size", p.name)
	}

	result := make([]byte, 0, resultSize)
	for uint64(len(result)) < resultSize {
		opcode, err := br.ReadByte()
		if err != nil {
			return nil, errors.Wrapf(err, "%s: read delta opcode", p.name)
		}

		if isCopyFromBase(opcode) {
			var params [7]byte
			for i := 0; i < 7; i++ {
				if opcode&(1<<uint(i)) != 0 {
					b, err := br.ReadByte()
					if err != nil {
						return nil, errors.Wrapf(err, "%s: read copy parameter", p.name)
					}
					params[i] = b
				}
			}
			offset := uint32(params[0]) | uint32(params[1])<<8 | uint32(params[2])<<16 | uint32(params[3])<<24
			length := uint32(params[4]) | uint32(params[5])<<8 | uint32(params[6])<<16
			if length == 0 {
				length = 0x10000
			}
			if uint64(offset) > uint64(len(base)) || uint64(length) > uint64(len(base))-uint64(offset) {
				return nil, errors.Wrapf(ErrBadReference, "%s: invalid delta copy instruction", p.name)
			}
			result = append(result, base[offset:offset+length]...)
		} else {
			if opcode == 0 {
				return nil, errors.Wrapf(ErrBadReference, "%s: invalid delta opcode 0", p.name)
			}
			toAdd := make([]byte, opcode)
			if _, err := io.ReadFull(br, toAdd); err != nil {
				return nil, errors.Wrapf(err, "%s: read delta literal", p.name)
			}
			result = append(result, toAdd...)
		}
	}
	return result, nil
}

func isCopyFromBase(opcode byte) bool {
	return opcode&0x80 != 0
}

// readVarInt decodes Git's little-endian-by-group 7-bit varint: each
// byte contributes its low 7 bits, most significant bit signals another
// byte follows.
func readVarInt(r io.ByteReader) (uint64, error) {
	var value uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			return value, nil
		}
	}
}

// readOfsInt decodes the OFS_DELTA back-reference encoding: big-endian
// 7-bit groups, with an implicit +1 added before each continuation so
// that encodings are unique (this is what lets offsets nest without
// ambiguity; see git's pack-format documentation for "offset encoding").
func readOfsInt(r io.ByteReader) (uint64, error) {
	var value uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value = (value << 7) | uint64(b&0x7F)
		if b&0x80 == 0 {
			return value, nil
		}
		value++
	}
}

// byteReader adapts an io.Reader lacking ReadByte (zlib.Reader) to
// io.ByteReader without pulling in bufio's larger buffering machinery.
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func newByteReader(r io.Reader) *byteReader { return &byteReader{r: r} }

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

func (b *byteReader) Read(p []byte) (int, error) { return b.r.Read(p) }
