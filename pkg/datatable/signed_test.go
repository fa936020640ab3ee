package datatable_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/testutil"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/asymcrypto"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/datatable"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/errs"
)

func newSignedTable(t *testing.T, store datatable.StorageClient, opts ...datatable.Option) *datatable.SignedTable[row] {
	t.Helper()
	kp := testutil.RSAKeyPair(t, 0)
	table, err := datatable.NewSigned[row](store, "signed", kp.Private, kp.Public, opts...)
	require.NoError(t, err)
	return table
}

func storedItem(t *testing.T, store *memStore, key string) datatable.SignedItem {
	t.Helper()
	var item datatable.SignedItem
	require.NoError(t, json.Unmarshal(store.raw(key), &item))
	return item
}

func putItem(t *testing.T, store *memStore, key string, item datatable.SignedItem) {
	t.Helper()
	data, err := json.Marshal(item)
	require.NoError(t, err)
	store.set(key, data)
}

func TestSignedRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	table := newSignedTable(t, store)

	require.NoError(t, table.Save(ctx, "row-1", row{Value: 42}))

	got, err := table.Get(ctx, "row-1")
	require.NoError(t, err)
	require.Equal(t, &row{Value: 42}, got)

	item := storedItem(t, store, "signed:row-1")
	require.Equal(t, `{"value":42}`, string(item.Payload))
	require.Len(t, item.Signature, 512)

	ok, err := asymcrypto.NewRSAProvider().Verify(testutil.RSAKeyPair(t, 0).Public, string(item.Payload), item.Signature)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignedFlippedSignatureScenario(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	table := newSignedTable(t, store)

	require.NoError(t, table.Save(ctx, "row-1", row{Value: 42}))

	item := storedItem(t, store, "signed:row-1")
	sig := []byte(item.Signature)
	if sig[10] == 'a' {
		sig[10] = 'b'
	} else {
		sig[10] = 'a'
	}
	item.Signature = string(sig)
	putItem(t, store, "signed:row-1", item)

	got, err := table.Get(ctx, "row-1")
	require.Nil(t, got)
	require.ErrorIs(t, err, errs.ErrStorage)
	require.ErrorIs(t, err, errs.ErrSignatureMismatch)
}

func TestSignedTamperedPayload(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	core, logs := observer.New(zapcore.WarnLevel)
	table := newSignedTable(t, store, datatable.WithLogger(zap.New(core)))

	require.NoError(t, table.Save(ctx, "row-1", row{Value: 42}))

	item := storedItem(t, store, "signed:row-1")
	item.Payload = []byte(`{"value":43}`)
	putItem(t, store, "signed:row-1", item)

	got, err := table.Get(ctx, "row-1")
	require.Nil(t, got)
	require.ErrorIs(t, err, errs.ErrSignatureMismatch)
	payload, ok := errs.DetailOf(err, "payload")
	require.True(t, ok)
	require.Equal(t, []byte(`{"value":43}`), payload)
	require.Equal(t, 1, logs.FilterMessage("signature mismatch").Len())

	found, err := table.Verify(ctx, "row-1")
	require.True(t, found)
	require.ErrorIs(t, err, errs.ErrSignatureMismatch)
}

func TestSignedCorruptRecordIsMismatch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	table := newSignedTable(t, store)
	require.NoError(t, table.Save(ctx, "row-1", row{Value: 42}))
	stored := store.raw("signed:row-1")

	badBase64 := bytes.Replace(stored, []byte(`"payload":"`), []byte(`"payload":"!`), 1)
	truncated := stored[:len(stored)/2]

	for name, raw := range map[string][]byte{"bad base64": badBase64, "truncated": truncated} {
		t.Run(name, func(t *testing.T) {
			store.set("signed:row-1", raw)

			got, err := table.Get(ctx, "row-1")
			require.Nil(t, got)
			require.ErrorIs(t, err, errs.ErrSignatureMismatch)
			payload, ok := errs.DetailOf(err, "payload")
			require.True(t, ok)
			require.Equal(t, raw, payload)

			found, err := table.Verify(ctx, "row-1")
			require.True(t, found)
			require.ErrorIs(t, err, errs.ErrSignatureMismatch)
		})
	}
}

func TestSignedMissingSignatureIsMismatch(t *testing.T) {
	store := newMemStore()
	table := newSignedTable(t, store)
	putItem(t, store, "signed:row-1", datatable.SignedItem{Payload: []byte(`{"value":1}`)})

	_, err := table.Get(context.Background(), "row-1")
	require.ErrorIs(t, err, errs.ErrSignatureMismatch)
}

func TestSignedUnsignedRowIsRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	plain, err := datatable.New[row](store, "signed")
	require.NoError(t, err)
	require.NoError(t, plain.Save(ctx, "row-1", row{Value: 1}))

	table := newSignedTable(t, store)
	_, err = table.Get(ctx, "row-1")
	require.ErrorIs(t, err, errs.ErrSignatureMismatch)
}

func TestSignedOtherKeyPairIsMismatch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	writer := newSignedTable(t, store)
	require.NoError(t, writer.Save(ctx, "row-1", row{Value: 7}))

	other := testutil.RSAKeyPair(t, 1)
	reader, err := datatable.NewSignedReader[row](store, "signed", other.Public)
	require.NoError(t, err)

	_, err = reader.Get(ctx, "row-1")
	require.ErrorIs(t, err, errs.ErrSignatureMismatch)
}

func TestSignedReaderVerifiesButCannotSave(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	writer := newSignedTable(t, store)
	require.NoError(t, writer.Save(ctx, "row-1", row{Value: 7}))

	reader, err := datatable.NewSignedReader[row](store, "signed", testutil.RSAKeyPair(t, 0).Public)
	require.NoError(t, err)
	require.True(t, reader.ReadOnly())

	got, err := reader.Get(ctx, "row-1")
	require.NoError(t, err)
	require.Equal(t, &row{Value: 7}, got)

	err = reader.Save(ctx, "row-2", row{Value: 8})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	require.Equal(t, errs.CodeReadOnly, errs.CodeOf(err))
	require.Nil(t, store.raw("signed:row-2"))
}

func TestSignedConstructorErrors(t *testing.T) {
	kp := testutil.RSAKeyPair(t, 0)
	store := newMemStore()

	_, err := datatable.NewSigned[row](store, "signed", "", kp.Public)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	require.Contains(t, err.Error(), "read-write table requires a private key")

	_, err = datatable.NewSigned[row](store, "signed", kp.Private, "")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = datatable.NewSignedReader[row](store, "signed", "")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	require.Contains(t, err.Error(), "read-only table requires a public key")

	_, err = datatable.NewSigned[row](store, "signed", "not a key", kp.Public)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	require.Equal(t, errs.CodeMalformedKey, errs.CodeOf(err))

	_, err = datatable.NewSigned[row](nil, "signed", kp.Private, kp.Public)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestSignedAbsentAndRemove(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	table := newSignedTable(t, store)

	got, err := table.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, got)

	found, err := table.Verify(ctx, "nope")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, table.Remove(ctx, "nope"))
	require.NoError(t, table.Save(ctx, "x", row{Value: 1}))
	require.NoError(t, table.Remove(ctx, "x"))
	got, err = table.Get(ctx, "x")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSignedTransportErrorIsNotMismatch(t *testing.T) {
	store := newMemStore()
	table := newSignedTable(t, store)
	store.failErr = errors.New("timeout")

	_, err := table.Get(context.Background(), "row-1")
	require.ErrorIs(t, err, errs.ErrStorage)
	require.NotErrorIs(t, err, errs.ErrSignatureMismatch)
	require.Equal(t, errs.CodeIO, errs.CodeOf(err))
}

type failingSigner struct {
	asymcrypto.Provider
}

func (failingSigner) Sign(privateKey, data string) (string, error) {
	return "", errors.New("hsm offline")
}

func TestSignedSignFailureWritesNothing(t *testing.T) {
	store := newMemStore()
	table := newSignedTable(t, store, datatable.WithProvider(failingSigner{asymcrypto.NewRSAProvider()}))

	err := table.Save(context.Background(), "row-1", row{Value: 1})
	require.ErrorIs(t, err, errs.ErrCrypto)
	require.Equal(t, errs.CodeSign, errs.CodeOf(err))
	require.Nil(t, store.raw("signed:row-1"))
}

func TestSignedGetMany(t *testing.T) {
	ctx := context.Background()
	table := newSignedTable(t, newMemStore())
	require.NoError(t, table.Save(ctx, "a", row{Value: 1}))
	require.NoError(t, table.Save(ctx, "b", row{Value: 2}))

	rows, err := table.GetMany(ctx, []string{"a", "zz", "b"})
	require.NoError(t, err)
	require.Equal(t, []datatable.Row[row]{{ID: "a", Value: row{Value: 1}}, {ID: "b", Value: row{Value: 2}}}, rows)
}
