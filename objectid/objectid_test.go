package objectid

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilIsEmptySHA1(t *testing.T) {
	h := sha1.New()
	want := FromHash(h)
	assert.Equal(t, want, Nil)
}

func TestHexRoundTrip(t *testing.T) {
	h := sha1.New()
	h.Write([]byte("hello world"))
	id := FromHash(h)

	hex := id.ToHex()
	require.Len(t, hex, 40)
	assert.Equal(t, id, FromHex(hex))
	assert.Equal(t, hex, FromHex(hex).ToHex())
}

func TestFromHexShortPadsWithZero(t *testing.T) {
	id := FromHex("abcd")
	var want ObjectId
	want[0] = 0xab
	want[1] = 0xcd
	assert.Equal(t, want, id)
}

func TestFromHexLongIsTruncated(t *testing.T) {
	long := "f3a34851d44d6b97c90fbb99dd3d18c261b9a237ffffffff"
	short := FromHex(long[:40])
	assert.Equal(t, short, FromHex(long))
}

func TestFromHexBadCaseYieldsDifferentId(t *testing.T) {
	lower := FromHex("abcd")
	upper := FromHex("ABCD")
	assert.NotEqual(t, lower, upper)
}

func TestLessIsStrictByteLexicographic(t *testing.T) {
	a := FromHex("00")
	b := FromHex("01")
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, 1, Compare(b, a))
	assert.Equal(t, 0, Compare(a, a))
}

func TestCreateFileContentIdMatchesScenario1(t *testing.T) {
	// spec.md §8 scenario 1: blob framing "blob 4\x00text" hashes to
	// f3a34851d44d6b97c90fbb99dd3d18c261b9a237.
	h := sha1.New()
	h.Write([]byte("blob 4\x00text"))
	id := FromHash(h)
	assert.Equal(t, "f3a34851d44d6b97c90fbb99dd3d18c261b9a237", id.ToHex())
}
