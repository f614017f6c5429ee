package ca

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetscentral/filestore/objectid"
)

func TestCommitRoundTrip(t *testing.T) {
	treeID := objectid.FromHex("f3a34851d44d6b97c90fbb99dd3d18c261b9a237")
	c := NewCommit(treeID)

	parsed, ok := ParseCommit(c.Store())
	require.True(t, ok)
	assert.Equal(t, treeID, parsed.TreeID)
}

func TestParseCommitRejectsMissingTreeLine(t *testing.T) {
	_, ok := ParseCommit([]byte("author filestore <> 1 +0000\n"))
	assert.False(t, ok)
}
