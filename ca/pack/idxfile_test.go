package pack

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetscentral/filestore/objectid"
)

func idFor(b byte) objectid.ObjectId {
	var id objectid.ObjectId
	id[0] = b
	id[19] = b ^ 0xFF
	return id
}

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	idx := NewIndex()
	items := []Item{
		{ID: idFor(0x00), CRC: 1, Pos: 12},
		{ID: idFor(0x01), CRC: 2, Pos: 4096},
		{ID: idFor(0xFF), CRC: 3, Pos: 0x90000000}, // needs the overflow table
	}
	for _, it := range items {
		idx.AddItem(it.ID, it.CRC, it.Pos)
	}

	packID := objectid.FromHex("abababababababababababababababababababab")

	var buf bytes.Buffer
	require.NoError(t, idx.Save(&buf, packID))

	loaded := NewIndex()
	gotPackID, err := loaded.Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, packID, gotPackID)

	for _, want := range items {
		got, ok := loaded.FindItem(want.ID)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestIndexMergesPastThreshold(t *testing.T) {
	idx := NewIndex()
	for i := 0; i < maxUnsortedLen+10; i++ {
		var id objectid.ObjectId
		id[0] = byte(i >> 8)
		id[1] = byte(i)
		idx.AddItem(id, uint32(i), uint64(i))
	}
	assert.Len(t, idx.sorted, maxUnsortedLen)
	assert.Len(t, idx.unsorted, 10)

	for i := 0; i < maxUnsortedLen+10; i++ {
		var id objectid.ObjectId
		id[0] = byte(i >> 8)
		id[1] = byte(i)
		got, ok := idx.FindItem(id)
		require.True(t, ok)
		assert.EqualValues(t, i, got.Pos)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	idx := NewIndex()
	_, err := idx.Load(bytes.NewReader(make([]byte, 4+4+256*4)))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
