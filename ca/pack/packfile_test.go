package pack

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetscentral/filestore/objectid"
)

// writeVarInt encodes v as readVarInt's little-endian-by-group 7-bit varint.
func writeVarInt(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

// writeTypeAndSize encodes objType/size the way readVarInt's caller
// decodes them: a single varint whose low 4 bits are size&0xF, next 3
// bits are the type, and the rest is size>>4.
func writeTypeAndSize(objType byte, size int) []byte {
	raw := uint64(size&0xF) | uint64(objType&7)<<4 | uint64(size>>4)<<7
	return writeVarInt(raw)
}

// writeOfsInt encodes v as readOfsInt's big-endian, implicit-plus-one
// back-reference encoding.
func writeOfsInt(v uint64) []byte {
	buf := []byte{byte(v & 0x7F)}
	v >>= 7
	for v != 0 {
		v--
		buf = append(buf, 0x80|byte(v&0x7F))
		v >>= 7
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}

func mustZlib(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

type noBases struct{}

func (noBases) GetObject(objectid.ObjectId, int) ([]byte, error) { return nil, ErrNotFound }

// scenario 5: a pack holding one base blob and one OFS_DELTA entry that
// copies the base in full and appends literal bytes; reading the delta
// object must reproduce the base plus the appended suffix.
func TestGetObjectResolvesOfsDeltaChain(t *testing.T) {
	base := []byte("hello world\n")
	suffix := []byte(" v2\n")
	want := append(append([]byte{}, base...), suffix...)

	deltaPlain := append(writeVarInt(uint64(len(base))), writeVarInt(uint64(len(want)))...)
	deltaPlain = append(deltaPlain, 0x90, byte(len(base))) // copy opcode: length byte0 only, offset 0
	deltaPlain = append(deltaPlain, byte(len(suffix)))     // literal insert opcode
	deltaPlain = append(deltaPlain, suffix...)

	var body bytes.Buffer
	require.NoError(t, binary.Write(&body, binary.BigEndian, struct{ Magic, Version, NumObjects uint32 }{packMagic, packVersion, 2}))

	baseID := objectid.FromHex("f3a34851d44d6b97c90fbb99dd3d18c261b9a237")
	basePos := int64(body.Len())
	body.Write(writeTypeAndSize(objBlob, len(base)))
	body.Write(mustZlib(t, base))

	deltaID := objectid.FromHex("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	deltaPos := int64(body.Len())
	body.Write(writeTypeAndSize(objOfsDelta, len(want)))
	body.Write(writeOfsInt(uint64(deltaPos - basePos)))
	body.Write(mustZlib(t, deltaPlain))

	packID := objectid.FromHex("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	body.Write(packID[:])

	idx := NewIndex()
	idx.AddItem(baseID, 0, uint64(basePos))
	idx.AddItem(deltaID, 0, uint64(deltaPos))
	var idxBuf bytes.Buffer
	require.NoError(t, idx.Save(&idxBuf, packID))

	p, err := Open("test", idxBuf.Bytes(), body.Bytes())
	require.NoError(t, err)

	got, err := p.GetObject(deltaID, noBases{}, 4)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetObjectUnknownIdReturnsNotFound(t *testing.T) {
	idx := NewIndex()
	var idxBuf bytes.Buffer
	packID := objectid.Nil
	require.NoError(t, idx.Save(&idxBuf, packID))

	var body bytes.Buffer
	require.NoError(t, binary.Write(&body, binary.BigEndian, struct{ Magic, Version, NumObjects uint32 }{packMagic, packVersion, 0}))
	body.Write(packID[:])

	p, err := Open("test", idxBuf.Bytes(), body.Bytes())
	require.NoError(t, err)

	_, err = p.GetObject(objectid.FromHex("cccccccccccccccccccccccccccccccccccccccc"), noBases{}, 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	idx := NewIndex()
	var idxBuf bytes.Buffer
	require.NoError(t, idx.Save(&idxBuf, objectid.Nil))

	body := make([]byte, 12+objectid.Size)
	_, err := Open("test", idxBuf.Bytes(), body)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
