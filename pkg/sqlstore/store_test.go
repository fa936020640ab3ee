package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/testutil"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/datatable"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/errs"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/sqlstore"
)

func openMemory(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRejectsUnknownDriverAndEmptyDSN(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), "oracle", "x")
	require.ErrorContains(t, err, "unsupported driver")

	_, err = sqlstore.Open(context.Background(), sqlstore.DriverSQLite, " ")
	require.ErrorContains(t, err, "dsn is required")
}

func TestStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	got, err := s.Get(ctx, "t:1")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.Put(ctx, "t:1", []byte(`{"v":1}`)))
	require.NoError(t, s.Put(ctx, "t:1", []byte(`{"v":2}`)))
	got, err = s.Get(ctx, "t:1")
	require.NoError(t, err)
	require.Equal(t, `{"v":2}`, string(got))

	require.NoError(t, s.Delete(ctx, "t:1"))
	require.NoError(t, s.Delete(ctx, "t:1"))
	got, err = s.Get(ctx, "t:1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStoreKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	for _, k := range []string{"b:1", "a:2", "a:1", "ab:1"} {
		require.NoError(t, s.Put(ctx, k, []byte("1")))
	}

	keys, err := s.Keys(ctx, "a:")
	require.NoError(t, err)
	require.Equal(t, []string{"a:1", "a:2"}, keys)

	keys, err = s.Keys(ctx, "")
	require.NoError(t, err)
	require.Len(t, keys, 4)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "rows.db")

	s, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "t:1", []byte("payload")))
	require.NoError(t, s.Close())

	s, err = sqlstore.Open(ctx, sqlstore.DriverSQLite, dsn)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "t:1")
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
}

type account struct {
	Owner   string `json:"owner"`
	Balance int64  `json:"balance"`
}

func TestSignedTableOverSQL(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	kp := testutil.RSAKeyPair(t, 0)

	table, err := datatable.NewSigned[account](s, "accounts", kp.Private, kp.Public)
	require.NoError(t, err)
	require.NoError(t, table.Save(ctx, "alice", account{Owner: "alice", Balance: 10}))

	got, err := table.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, &account{Owner: "alice", Balance: 10}, got)

	_, err = s.DB().NewRaw("UPDATE datatable_rows SET payload = ? WHERE row_key = ?",
		[]byte(`{"payload":"eyJvd25lciI6ImFsaWNlIiwiYmFsYW5jZSI6OTk5fQ==","signature":"00"}`), "accounts:alice").Exec(ctx)
	require.NoError(t, err)

	_, err = table.Get(ctx, "alice")
	require.ErrorIs(t, err, errs.ErrSignatureMismatch)

	ids, err := table.IDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, ids)
}
