// Package zstdstore compresses values on their way into a
// datatable.StorageClient and decompresses them on the way out.
package zstdstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/iota-pico/iota-pico-storage-sub001/pkg/datatable"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/errs"
)

var (
	_ datatable.StorageClient = (*Store)(nil)
	_ datatable.KeyLister     = (*Store)(nil)

	magic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Store wraps another StorageClient. Values read back without a zstd frame
// header are returned as stored, so uncompressed data written earlier stays
// readable.
type Store struct {
	next datatable.StorageClient
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Option configures the encoder.
type Option func(*[]zstd.EOption)

// WithLevel sets the compression level.
func WithLevel(level zstd.EncoderLevel) Option {
	return func(opts *[]zstd.EOption) {
		*opts = append(*opts, zstd.WithEncoderLevel(level))
	}
}

// New wraps next.
func New(next datatable.StorageClient, opts ...Option) (*Store, error) {
	if next == nil {
		return nil, fmt.Errorf("zstdstore: storage client is required")
	}
	var eopts []zstd.EOption
	for _, opt := range opts {
		opt(&eopts)
	}
	enc, err := zstd.NewWriter(nil, eopts...)
	if err != nil {
		return nil, fmt.Errorf("zstdstore: encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstdstore: decoder: %w", err)
	}
	return &Store{next: next, enc: enc, dec: dec}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.next.Get(ctx, key)
	if err != nil || !bytes.HasPrefix(data, magic) {
		return data, err
	}
	out, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstdstore: decompress %s: %w", key, err)
	}
	return out, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.next.Put(ctx, key, s.enc.EncodeAll(value, nil))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.next.Delete(ctx, key)
}

// Keys delegates to the wrapped client when it can list keys.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	lister, ok := s.next.(datatable.KeyLister)
	if !ok {
		return nil, errs.Storage(errs.CodeUnsupported, "storage client cannot list keys", nil)
	}
	return lister.Keys(ctx, prefix)
}

// Close releases the decoder.
func (s *Store) Close() {
	s.dec.Close()
}
