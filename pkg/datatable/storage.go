package datatable

import "context"

// StorageClient is the transport a table writes through.
type StorageClient interface {
	// Get returns the stored bytes, or nil and no error when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// KeyLister is implemented by storage clients that can enumerate keys.
type KeyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}
