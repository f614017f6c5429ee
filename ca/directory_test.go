package ca

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetscentral/filestore/dirfs"
)

func newMemRoot(t *testing.T) *Root {
	t.Helper()
	r, err := OpenRoot(dirfs.NewOSHandler(memfs.New()))
	require.NoError(t, err)
	return r
}

// scenario 1: create-read round trip.
func TestScenario1CreateReadRoundTrip(t *testing.T) {
	root := newMemRoot(t)
	h, err := root.CreateRootHandler()
	require.NoError(t, err)

	info, err := h.CreateFile("f", []byte("text"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), *info.Size)
	assert.Regexp(t, `^f3a34851d44d6b97c90fbb99dd3d18c261b9a237`, info.ContentID)

	var seen []dirfs.Info
	require.NoError(t, h.ReadContent(dirfs.CallbackFunc(func(i dirfs.Info) { seen = append(seen, i) })))
	require.Len(t, seen, 1)
	assert.Equal(t, "f", seen[0].Name)
	assert.EqualValues(t, 4, *seen[0].Size)

	content, err := h.GetFileByName("f")
	require.NoError(t, err)
	assert.Equal(t, []byte("text"), content)
}

// scenario 2: dedup by content — exactly 3 live objects regardless of how
// many names reference the shared blob.
func TestScenario2DedupByContent(t *testing.T) {
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
	// root tree, d tree, one data object == 3, plus the commit itself.
	assert.Equal(t, 4, gc.NumObjectsToKeep())
}

// scenario 6: directory sort order, bit-exact.
func TestScenario6DirectorySortOrder(t *testing.T) {
	root := newMemRoot(t)
	h, err := root.CreateRootHandler()
	require.NoError(t, err)

	_, err = h.CreateFile("a.b", []byte("x"))
	require.NoError(t, err)
	_, err = h.CreateFile("a0", []byte("y"))
	require.NoError(t, err)
	_, err = h.CreateDirectory("a")
	require.NoError(t, err)

	commitID, ok, err := root.GetMasterCommitId()
	require.NoError(t, err)
	require.True(t, ok)
	treeID, err := root.ObjectStore().GetCommitTreeID(commitID)
	require.NoError(t, err)
	payload, err := root.ObjectStore().GetObject(treeID, TreeObject)
	require.NoError(t, err)

	var names []string
	rest := payload
	for {
		e, ok := ParseDirectoryEntry(&rest)
		if !ok {
			break
		}
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a.b", "a", "a0"}, names)
}

func TestCreateFileOverExistingDirectoryIsAlreadyExists(t *testing.T) {
	root := newMemRoot(t)
	h, err := root.CreateRootHandler()
	require.NoError(t, err)

	_, err = h.CreateDirectory("sub")
	require.NoError(t, err)

	_, err = h.CreateFile("sub", []byte("x"))
	assert.ErrorIs(t, err, dirfs.ErrAlreadyExists)
}

func TestRemoveNonEmptyDirectoryFails(t *testing.T) {
	root := newMemRoot(t)
	h, err := root.CreateRootHandler()
	require.NoError(t, err)

	_, err = h.CreateDirectory("sub")
	require.NoError(t, err)
	sub, err := h.GetDirectory(dirfs.Info{Name: "sub"})
	require.NoError(t, err)
	_, err = sub.CreateFile("f", []byte("x"))
	require.NoError(t, err)

	err = h.RemoveDirectory("sub")
	assert.ErrorIs(t, err, dirfs.ErrDirNotEmpty)
}

// universal invariant: ending empty leaves only the commit and empty root tree.
func TestCreateThenRemoveLeavesNoLeakedObjects(t *testing.T) {
	root := newMemRoot(t)
	h, err := root.CreateRootHandler()
	require.NoError(t, err)

	_, err = h.CreateFile("f", []byte("text"))
	require.NoError(t, err)
	require.NoError(t, h.RemoveFile("f"))

	commitID, ok, err := root.GetMasterCommitId()
	require.NoError(t, err)
	require.True(t, ok)

	gc := NewGarbageCollector(root.ObjectStore(), nil)
	gc.AddCommit(commitID)
	for gc.CheckObject() {
	}
	assert.Equal(t, 2, gc.NumObjectsToKeep()) // commit + empty root tree
}
