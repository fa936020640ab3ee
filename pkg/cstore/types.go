package cstore

import "errors"

// Item is a decoded value together with its key.
type Item[T any] struct {
	Key   string
	Value T
	// ETag is set when the backend reports one.
	ETag string
}

// ListResult is one page of decoded items.
type ListResult[T any] struct {
	Items      []Item[T]
	NextCursor string
}

var (
	// ErrKeyRequired is returned for blank keys.
	ErrKeyRequired = errors.New("cstore: key is required")
	// ErrNilClient is returned when a nil client or backend is used.
	ErrNilClient = errors.New("cstore: client is nil")
)
