package ca

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetscentral/filestore/dirfs"
	"github.com/planetscentral/filestore/objectid"
)

func TestDirectoryEntryRoundTrip(t *testing.T) {
	id := objectid.FromHex("f3a34851d44d6b97c90fbb99dd3d18c261b9a237")
	e := NewDirectoryEntry("f", id, dirfs.File)

	var buf []byte
	e.Store(&buf)

	rest := buf
	got, ok := ParseDirectoryEntry(&rest)
	require.True(t, ok)
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.Type, got.Type)
	assert.Empty(t, rest)
}

func TestDirectoryEntryUnknownModeRoundTripsVerbatim(t *testing.T) {
	raw := append([]byte("120000 link\x00"), make([]byte, objectid.Size)...)
	rest := raw
	e, ok := ParseDirectoryEntry(&rest)
	require.True(t, ok)
	assert.Equal(t, dirfs.Unknown, e.Type)

	var out []byte
	e.Store(&out)
	assert.Equal(t, raw, out)
}

func TestDirectorySuffixAwareOrdering(t *testing.T) {
	fileAB := NewDirectoryEntry("a.b", objectid.Nil, dirfs.File)
	dirA := NewDirectoryEntry("a", objectid.Nil, dirfs.Directory)
	fileA0 := NewDirectoryEntry("a0", objectid.Nil, dirfs.File)

	assert.True(t, fileAB.IsBefore(dirA))
	assert.True(t, dirA.IsBefore(fileA0))
	assert.False(t, fileA0.IsBefore(dirA))
}

func TestParseDirectoryEntryEmptyIsEndOfTree(t *testing.T) {
	var empty []byte
	_, ok := ParseDirectoryEntry(&empty)
	assert.False(t, ok)
}
