package mock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore/mock"
)

func TestMockPutGetList(t *testing.T) {
	ctx := context.Background()
	m := mock.New()

	raw, err := m.GetRaw(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, raw)

	etag, err := m.PutRaw(ctx, "b", []byte(`{"n":2}`))
	require.NoError(t, err)
	require.NotEmpty(t, etag)
	require.Equal(t, etag, m.ETag("b"))

	_, err = m.PutRaw(ctx, "a", []byte(`{"n":1}`))
	require.NoError(t, err)

	raw, err = m.GetRaw(ctx, "b")
	require.NoError(t, err)
	require.JSONEq(t, `{"n":2}`, string(raw))

	keys, err := m.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, keys)
}

func TestMockRewriteChangesETag(t *testing.T) {
	ctx := context.Background()
	m := mock.New()
	first, err := m.PutRaw(ctx, "k", []byte(`1`))
	require.NoError(t, err)
	second, err := m.PutRaw(ctx, "k", []byte(`2`))
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Equal(t, 1, m.Len())
}

func TestMockCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := mock.New()
	in := []byte(`"x"`)
	_, err := m.PutRaw(ctx, "k", in)
	require.NoError(t, err)
	in[1] = 'y'

	out, err := m.GetRaw(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, `"x"`, string(out))
}

func TestMockRejectsBlankKeysAndCancelledContext(t *testing.T) {
	m := mock.New()
	_, err := m.PutRaw(context.Background(), " ", nil)
	require.ErrorIs(t, err, cstore.ErrKeyRequired)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.GetRaw(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}
