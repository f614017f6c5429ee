package ca

import "errors"

// Sentinel errors for the object-store layer. Handler-level errors
// (file-not-found, type-mismatch, already-exists, dir-not-empty) are
// dirfs's sentinels — ca.Handler returns those directly so a caller
// written against dirfs.Handler never needs to know it's talking to a
// content-addressable backend.
var (
	// ErrMissingObject is returned when a referenced ObjectId is not
	// present in the store.
	ErrMissingObject = errors.New("missing object")

	// ErrBadObjectType is returned when a loose object's framed type
	// keyword does not match what the caller expected.
	ErrBadObjectType = errors.New("bad object type")

	// ErrBadObjectSize is returned when a loose object's size header is
	// malformed or exceeds the hard cap.
	ErrBadObjectSize = errors.New("bad object size")

	// ErrBadObjectContent is returned when a loose object's inflated
	// payload length does not match its announced size.
	ErrBadObjectContent = errors.New("bad object content")

	// ErrHashCollision is returned when two distinct payloads hash to
	// the same ObjectId, or a cache/store lookup finds an id already in
	// use for a different object type.
	ErrHashCollision = errors.New("hash collision")
)
