package ca

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetscentral/filestore/dirfs"
)

// scenario 3: replace shrinks store.
func TestScenario3ReplaceShrinksStore(t *testing.T) {
	root := newMemRoot(t)
	h, err := root.CreateRootHandler()
	require.NoError(t, err)

	_, err = h.CreateDirectory("d")
	require.NoError(t, err)
	d, err := h.GetDirectory(dirfs.Info{Name: "d"})
	require.NoError(t, err)
	_, err = d.CreateFile("f", []byte("text"))
	require.NoError(t, err)
	_, err = d.CreateFile("g", []byte("text"))
	require.NoError(t, err)

	_, err = d.CreateFile("f", []byte("moretext"))
	require.NoError(t, err)

	commitID, ok, err := root.GetMasterCommitId()
	require.NoError(t, err)
	require.True(t, ok)

	gc := NewGarbageCollector(root.ObjectStore(), nil)
	gc.AddCommit(commitID)
	for gc.CheckObject() {
	}
	assert.Equal(t, 5, gc.NumObjectsToKeep()) // commit, root tree, d tree, text, moretext
	assert.Equal(t, 0, gc.NumErrors())

	for gc.RemoveGarbageObjects() {
	}
	assert.Equal(t, 0, gc.NumErrors())
}

// scenario 4: live GC safety — a mutation interleaved between the mark and
// sweep phases must not cause the sweep to remove anything still live.
func TestScenario4LiveGCSafety(t *testing.T) {
	root := newMemRoot(t)
	h, err := root.CreateRootHandler()
	require.NoError(t, err)

	_, err = h.CreateDirectory("d")
	require.NoError(t, err)
	d, err := h.GetDirectory(dirfs.Info{Name: "d"})
	require.NoError(t, err)
	_, err = d.CreateFile("f", []byte("text"))
	require.NoError(t, err)
	_, err = d.CreateFile("g", []byte("text"))
	require.NoError(t, err)

	commitID, ok, err := root.GetMasterCommitId()
	require.NoError(t, err)
	require.True(t, ok)

	gc := NewGarbageCollector(root.ObjectStore(), nil)
	gc.AddCommit(commitID)
	for gc.CheckObject() {
	}

	// interleave: replace d/f, which unlinks the old d tree and the old
	// root tree but the new master commit is what addCommit now marks.
	_, err = d.CreateFile("f", []byte("moretext"))
	require.NoError(t, err)

	newCommitID, ok, err := root.GetMasterCommitId()
	require.NoError(t, err)
	require.True(t, ok)
	gc.AddCommit(newCommitID)
	for gc.CheckObject() {
	}

	for gc.RemoveGarbageObjects() {
	}
	assert.Equal(t, 0, gc.NumErrors())
	assert.Equal(t, 0, gc.NumObjectsRemoved())

	content, err := d.GetFileByName("f")
	require.NoError(t, err)
	assert.Equal(t, []byte("moretext"), content)

	textContent, err := d.GetFileByName("g")
	require.NoError(t, err)
	assert.Equal(t, []byte("text"), textContent)
}
