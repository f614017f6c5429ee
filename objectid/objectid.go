// Package objectid implements the 20-byte content-address used
// throughout the CA store, in a form bit-compatible with Git's SHA-1
// object ids: hex form round-trips exactly, and the "nil" id is the
// SHA-1 of the empty string (not the all-zero value).
package objectid

import (
	"encoding/hex"
	"hash"
)

// Size is the length of an ObjectId in bytes.
const Size = 20

// ObjectId is a fixed 20-byte content address. The zero value is NOT
// equal to Nil — use Nil explicitly when the empty-object id is meant.
type ObjectId [Size]byte

// Nil is the id of the empty object: SHA-1("").
var Nil = ObjectId{
	0xda, 0x39, 0xa3, 0xee, 0x5e, 0x6b, 0x4b, 0x0d, 0x32, 0x55,
	0xbf, 0xef, 0x95, 0x60, 0x18, 0x90, 0xaf, 0xd8, 0x07, 0x09,
}

// FromHash consumes a hash's current sum. If the hash produces fewer
// than Size bytes the remainder is zero-padded; if it produces more,
// only the first Size bytes are kept.
func FromHash(h hash.Hash) ObjectId {
	var id ObjectId
	sum := h.Sum(nil)
	copy(id[:], sum)
	return id
}

// FromHex parses up to 40 hex digits. Input shorter than 40 digits is
// zero-padded at the tail; input longer than 40 digits has the excess
// ignored. Malformed input (odd length after truncation, non-hex
// characters) still yields a well-defined id: bad nibbles decode as 0,
// never causing a panic. Case-sensitive — only lowercase digits match
// the canonical hex form produced by ToHex.
func FromHex(s string) ObjectId {
	if len(s) > 2*Size {
		s = s[:2*Size]
	}

	var id ObjectId
	// Decode byte-by-byte so a malformed trailing nibble can't corrupt
	// bytes that were valid, and an odd-length string still decodes its
	// whole last nibble pair as far as it goes.
	for i := 0; i+1 < len(s)+1 && i/2 < Size; i += 2 {
		hi := s[i]
		var lo byte
		if i+1 < len(s) {
			lo = s[i+1]
		}
		h, okHi := hexNibble(hi)
		l, okLo := hexNibble(lo)
		if !okHi {
			h = 0
		}
		if !okLo {
			l = 0
		}
		id[i/2] = h<<4 | l
	}
	return id
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}

// ToHex renders the canonical 40-lowercase-hex-digit form.
func (id ObjectId) ToHex() string {
	return hex.EncodeToString(id[:])
}

// String implements fmt.Stringer as the hex form, for use in logs and
// error messages.
func (id ObjectId) String() string { return id.ToHex() }

// IsNil reports whether id is the empty-object id.
func (id ObjectId) IsNil() bool { return id == Nil }

// Less implements the strict byte-lexicographic total order required by
// the pack index's sorted object table and the garbage collector's
// ordered keep/to-check sets.
func (id ObjectId) Less(other ObjectId) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Compare returns -1, 0, or 1 as id is less than, equal to, or greater
// than other — the shape expected by sorted-container libraries such as
// emirpasic/gods' TreeSet comparators.
func Compare(a, b ObjectId) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
