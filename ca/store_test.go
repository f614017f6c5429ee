package ca

import (
	"crypto/sha1"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetscentral/filestore/dirfs"
	"github.com/planetscentral/filestore/objectid"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	h := dirfs.NewOSHandler(memfs.New())
	s, err := NewStore(h)
	require.NoError(t, err)
	return s
}

func TestAddObjectHashLaw(t *testing.T) {
	s := newMemStore(t)

	payload := []byte("text")
	id, err := s.AddObject(DataObject, payload)
	require.NoError(t, err)

	h := sha1.New()
	h.Write([]byte("blob 4\x00text"))
	want := objectid.FromHash(h)
	assert.Equal(t, want, id)
}

func TestGetObjectOnNilReturnsEmpty(t *testing.T) {
	s := newMemStore(t)

	content, err := s.GetObject(objectid.Nil, DataObject)
	require.NoError(t, err)
	assert.Empty(t, content)

	content, err = s.GetObject(objectid.Nil, TreeObject)
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestAddObjectEmptyPayloadIsNonNilForFramedTypes(t *testing.T) {
	s := newMemStore(t)

	treeID, err := s.AddObject(TreeObject, []byte{})
	require.NoError(t, err)
	assert.False(t, treeID.IsNil())

	content, err := s.GetObject(treeID, TreeObject)
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestAddObjectDedupBumpsRefcountInsteadOfWriting(t *testing.T) {
	s := newMemStore(t)

	id1, err := s.AddObject(DataObject, []byte("text"))
	require.NoError(t, err)

	id2, err := s.AddObject(DataObject, []byte("text"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// two references now: unlinking once must not remove the object.
	require.NoError(t, s.UnlinkObject(DataObject, id1))
	content, err := s.GetObject(id2, DataObject)
	require.NoError(t, err)
	assert.Equal(t, []byte("text"), content)

	require.NoError(t, s.UnlinkObject(DataObject, id2))
	_, err = s.GetObject(id1, DataObject)
	assert.ErrorIs(t, err, ErrMissingObject)
}

func TestUnlinkTreeCascadesToChildren(t *testing.T) {
	s := newMemStore(t)

	fileID, err := s.AddObject(DataObject, []byte("text"))
	require.NoError(t, err)

	var treeBytes []byte
	NewDirectoryEntry("f", fileID, dirfs.File).Store(&treeBytes)
	treeID, err := s.AddObject(TreeObject, treeBytes)
	require.NoError(t, err)

	require.NoError(t, s.UnlinkObject(TreeObject, treeID))

	_, err = s.GetObject(treeID, TreeObject)
	assert.ErrorIs(t, err, ErrMissingObject)
	_, err = s.GetObject(fileID, DataObject)
	assert.ErrorIs(t, err, ErrMissingObject)
}

func TestGetObjectWrongTypeIsRejected(t *testing.T) {
	s := newMemStore(t)

	id, err := s.AddObject(DataObject, []byte("text"))
	require.NoError(t, err)

	_, err = s.GetObject(id, TreeObject)
	assert.Error(t, err)
}
