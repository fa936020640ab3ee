package devseed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/devseed"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore/mock"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/datatable"
)

const seedYAML = `
- table: users
  id: alice
  value: {name: Alice, age: 30}
- key: config:flags
  value: [a, b]
`

type user struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestLoadAndApplyYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	entries, err := devseed.Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	ctx := context.Background()
	store := cstore.NewStore(cstore.NewWithBackend(mock.New()))
	n, err := devseed.Apply(ctx, store, entries)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	users, err := datatable.New[user](store, "users")
	require.NoError(t, err)
	got, err := users.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, &user{Name: "Alice", Age: 30}, got)

	raw, err := store.Get(ctx, "config:flags")
	require.NoError(t, err)
	require.Equal(t, `["a","b"]`, string(raw))
}

func TestParseJSON(t *testing.T) {
	entries, err := devseed.Parse([]byte(`[{"table":"t","id":"1","value":{"n":1}}]`))
	require.NoError(t, err)
	key, err := entries[0].StorageKey()
	require.NoError(t, err)
	require.Equal(t, "t:1", key)
}

func TestParseRejectsIncompleteEntries(t *testing.T) {
	_, err := devseed.Parse([]byte(`[{"table":"t","value":1}]`))
	require.Error(t, err)

	_, err = devseed.Parse([]byte(`[{"key":"k","table":"t","id":"1"}]`))
	require.Error(t, err)

	_, err = devseed.Parse([]byte(`[{"table":"a:b","id":"1","value":1}]`))
	require.ErrorContains(t, err, "must not contain")

	_, err = devseed.Parse([]byte(`{not: [valid`))
	require.Error(t, err)

	_, err = devseed.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
