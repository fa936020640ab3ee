package zstdstore_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/testutil"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore/mock"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/datatable"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/errs"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/zstdstore"
)

type plainStore struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (p *plainStore) Get(ctx context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.items[key], nil
}

func (p *plainStore) Put(ctx context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[key] = value
	return nil
}

func (p *plainStore) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, key)
	return nil
}

func TestCompressesAtRest(t *testing.T) {
	ctx := context.Background()
	inner := &plainStore{items: map[string][]byte{}}
	s, err := zstdstore.New(inner, zstdstore.WithLevel(zstd.SpeedBestCompression))
	require.NoError(t, err)
	defer s.Close()

	value := []byte(strings.Repeat(`{"k":"v"},`, 200))
	require.NoError(t, s.Put(ctx, "a", value))

	stored := inner.items["a"]
	require.True(t, bytes.HasPrefix(stored, []byte{0x28, 0xb5, 0x2f, 0xfd}))
	require.Less(t, len(stored), len(value))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestPassesThroughUncompressedAndAbsent(t *testing.T) {
	ctx := context.Background()
	inner := &plainStore{items: map[string][]byte{"old": []byte(`{"v":1}`)}}
	s, err := zstdstore.New(inner)
	require.NoError(t, err)

	got, err := s.Get(ctx, "old")
	require.NoError(t, err)
	require.Equal(t, `{"v":1}`, string(got))

	got, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCorruptFrameFails(t *testing.T) {
	inner := &plainStore{items: map[string][]byte{"bad": {0x28, 0xb5, 0x2f, 0xfd, 0x01}}}
	s, err := zstdstore.New(inner)
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "bad")
	require.ErrorContains(t, err, "decompress bad")
}

func TestKeysRequireListingClient(t *testing.T) {
	s, err := zstdstore.New(&plainStore{items: map[string][]byte{}})
	require.NoError(t, err)
	table, err := datatable.New[int](s, "n")
	require.NoError(t, err)

	_, err = table.IDs(context.Background())
	require.Equal(t, errs.CodeUnsupported, errs.CodeOf(err))

	_, err = zstdstore.New(nil)
	require.Error(t, err)
}

func TestSignedTableThroughCompressedRemoteStore(t *testing.T) {
	ctx := context.Background()
	s, err := zstdstore.New(cstore.NewStore(cstore.NewWithBackend(mock.New())))
	require.NoError(t, err)
	kp := testutil.RSAKeyPair(t, 0)

	table, err := datatable.NewSigned[[]string](s, "lists", kp.Private, kp.Public)
	require.NoError(t, err)
	require.NoError(t, table.Save(ctx, "x", []string{"a", "b"}))

	got, err := table.Get(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, *got)

	ids, err := table.IDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, ids)
}
