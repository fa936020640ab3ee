package datatable

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/iota-pico/iota-pico-storage-sub001/pkg/asymcrypto"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/errs"
)

// SignedItem is the persisted form of a signed row. Payload is the exact
// serialized row and Signature the hex signature over it.
type SignedItem struct {
	Payload   []byte `json:"payload"`
	Signature string `json:"signature"`
}

// SignedTable signs rows on save and verifies them on load.
type SignedTable[T any] struct {
	inner      *Table[SignedItem]
	provider   asymcrypto.Provider
	privateKey string
	publicKey  string
	logger     *zap.Logger
}

// NewSigned returns a read-write signed table. Both keys are PEM strings of
// the same pair.
func NewSigned[T any](client StorageClient, name, privateKey, publicKey string, opts ...Option) (*SignedTable[T], error) {
	if strings.TrimSpace(privateKey) == "" {
		return nil, errs.InvalidArgument(errs.CodeEmpty, "read-write table requires a private key to sign rows")
	}
	if strings.TrimSpace(publicKey) == "" {
		return nil, errs.InvalidArgument(errs.CodeEmpty, "read-write table requires a public key to verify rows")
	}
	return newSigned[T](client, name, privateKey, publicKey, opts)
}

// NewSignedReader returns a read-only signed table. Save fails on it.
func NewSignedReader[T any](client StorageClient, name, publicKey string, opts ...Option) (*SignedTable[T], error) {
	if strings.TrimSpace(publicKey) == "" {
		return nil, errs.InvalidArgument(errs.CodeEmpty, "read-only table requires a public key to verify rows")
	}
	return newSigned[T](client, name, "", publicKey, opts)
}

func newSigned[T any](client StorageClient, name, privateKey, publicKey string, opts []Option) (*SignedTable[T], error) {
	inner, err := New[SignedItem](client, name, opts...)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	// Keys are parsed up front for the built-in provider so a bad PEM fails
	// here rather than on first use.
	if _, ok := o.provider.(*asymcrypto.RSAProvider); ok {
		if privateKey != "" {
			if _, err := asymcrypto.ParsePrivateKey(privateKey); err != nil {
				return nil, err
			}
		}
		if _, err := asymcrypto.ParsePublicKey(publicKey); err != nil {
			return nil, err
		}
	}

	return &SignedTable[T]{
		inner:      inner,
		provider:   o.provider,
		privateKey: privateKey,
		publicKey:  publicKey,
		logger:     inner.logger,
	}, nil
}

// Name returns the table namespace.
func (t *SignedTable[T]) Name() string {
	return t.inner.Name()
}

// ReadOnly reports whether the table was built without a private key.
func (t *SignedTable[T]) ReadOnly() bool {
	return t.privateKey == ""
}

// Save serializes row, signs the serialized bytes and stores both. Nothing
// is written if signing fails.
func (t *SignedTable[T]) Save(ctx context.Context, id string, row T) error {
	if t.ReadOnly() {
		return t.inner.fail(errs.InvalidArgument(errs.CodeReadOnly, "table is read-only: saving requires a private key"), id, stageSign)
	}
	if err := t.inner.checkID(id); err != nil {
		return err
	}
	payload, err := encodeRow(row)
	if err != nil {
		return t.inner.fail(errs.Storage(errs.CodeEncode, "encode row", err), id, stageEncode)
	}
	signature, err := t.provider.Sign(t.privateKey, string(payload))
	if err != nil {
		return t.inner.fail(wrapStage(err, errs.KindCrypto, errs.CodeSign, "sign row"), id, stageSign)
	}
	return t.inner.Save(ctx, id, SignedItem{Payload: payload, Signature: signature})
}

// Get loads and verifies the row stored under id. It returns nil and no
// error when the row does not exist, and errs.ErrSignatureMismatch when the
// stored signature does not match the stored payload.
func (t *SignedTable[T]) Get(ctx context.Context, id string) (*T, error) {
	item, err := t.load(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	var row T
	if err := json.Unmarshal(item.Payload, &row); err != nil {
		e := errs.Storage(errs.CodeDecode, "decode row", err).With(map[string]any{"payload": item.Payload})
		return nil, t.inner.fail(e, id, stageDecode)
	}
	return &row, nil
}

// Verify checks the stored signature of id without decoding the row. found
// is false when no row exists.
func (t *SignedTable[T]) Verify(ctx context.Context, id string) (found bool, err error) {
	item, err := t.load(ctx, id)
	return item != nil, err
}

// GetMany loads and verifies the rows stored under ids in order, skipping
// absent ones. The first failure aborts the batch.
func (t *SignedTable[T]) GetMany(ctx context.Context, ids []string) ([]Row[T], error) {
	rows := make([]Row[T], 0, len(ids))
	for _, id := range ids {
		row, err := t.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if row != nil {
			rows = append(rows, Row[T]{ID: id, Value: *row})
		}
	}
	return rows, nil
}

// Remove deletes the row stored under id. Removing a missing row succeeds.
func (t *SignedTable[T]) Remove(ctx context.Context, id string) error {
	return t.inner.Remove(ctx, id)
}

// IDs lists the identifiers stored in the table. Rows are not verified.
func (t *SignedTable[T]) IDs(ctx context.Context) ([]string, error) {
	return t.inner.IDs(ctx)
}

// load fetches the signed item and verifies it. A verified item is returned
// with a nil error. A tampered one, including a record that no longer parses
// as a signed item, is returned with the mismatch error.
func (t *SignedTable[T]) load(ctx context.Context, id string) (*SignedItem, error) {
	item, err := t.inner.Get(ctx, id)
	if isEnvelopeDecode(err) {
		raw, _ := errs.DetailOf(err, "payload")
		return &SignedItem{}, t.mismatch(id, raw, "", err)
	}
	if err != nil || item == nil {
		return nil, err
	}
	if len(item.Payload) == 0 || item.Signature == "" {
		return item, t.mismatch(id, item.Payload, item.Signature, nil)
	}
	ok, err := t.provider.Verify(t.publicKey, string(item.Payload), item.Signature)
	if err != nil {
		return nil, t.inner.fail(wrapStage(err, errs.KindCrypto, errs.CodeNone, "verify row"), id, stageVerify)
	}
	if !ok {
		return item, t.mismatch(id, item.Payload, item.Signature, nil)
	}
	return item, nil
}

// isEnvelopeDecode reports whether err is the inner table failing to decode
// the stored record itself.
func isEnvelopeDecode(err error) bool {
	stage, _ := errs.DetailOf(err, "stage")
	return errs.CodeOf(err) == errs.CodeDecode && stage == stageDecode
}

func (t *SignedTable[T]) mismatch(id string, payload any, signature string, cause error) error {
	t.logger.Warn("signature mismatch", zap.String("id", id))
	detail := map[string]any{"payload": payload}
	if signature != "" {
		detail["signature"] = signature
	}
	e := errs.Storage(errs.CodeSignatureMismatch, "stored signature does not match payload", cause).With(detail)
	return t.inner.fail(e, id, stageVerify)
}
