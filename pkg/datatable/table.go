package datatable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/iota-pico/iota-pico-storage-sub001/pkg/errs"
)

const keySeparator = ":"

// Operation stages recorded in error detail.
const (
	stageEncode = "encode"
	stageDecode = "decode"
	stagePut    = "put"
	stageGet    = "get"
	stageDelete = "delete"
	stageList   = "list"
	stageSign   = "sign"
	stageVerify = "verify"
)

// Row pairs a decoded value with its identifier.
type Row[T any] struct {
	ID    string
	Value T
}

// Table reads and writes rows of type T under a namespace.
type Table[T any] struct {
	client StorageClient
	name   string
	logger *zap.Logger
}

// New returns a table named name over client.
func New[T any](client StorageClient, name string, opts ...Option) (*Table[T], error) {
	if client == nil {
		return nil, errs.InvalidArgument(errs.CodeEmpty, "storage client is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errs.InvalidArgument(errs.CodeEmpty, "table name is required")
	}
	// Names are key prefixes; a separator would let one table read another.
	if strings.Contains(name, keySeparator) {
		return nil, errs.InvalidArgument(errs.CodeMalformedInput, "table name must not contain "+strconv.Quote(keySeparator)).
			With(map[string]any{"table": name})
	}
	o := buildOptions(opts)
	return &Table[T]{
		client: client,
		name:   name,
		logger: o.logger.With(zap.String("table", name)),
	}, nil
}

// Name returns the table namespace.
func (t *Table[T]) Name() string {
	return t.name
}

// Key returns the storage key used for id.
func (t *Table[T]) Key(id string) string {
	return t.name + keySeparator + id
}

// Save serializes row and writes it under id.
func (t *Table[T]) Save(ctx context.Context, id string, row T) error {
	if err := t.checkID(id); err != nil {
		return err
	}
	payload, err := encodeRow(row)
	if err != nil {
		return t.fail(errs.Storage(errs.CodeEncode, "encode row", err), id, stageEncode)
	}
	if err := t.client.Put(ctx, t.Key(id), payload); err != nil {
		return t.fail(errs.Storage(errs.CodeIO, "put row", err), id, stagePut)
	}
	t.logger.Debug("row saved", zap.String("id", id), zap.Int("bytes", len(payload)))
	return nil
}

// Get loads the row stored under id. It returns nil and no error when the
// row does not exist.
func (t *Table[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := t.checkID(id); err != nil {
		return nil, err
	}
	data, err := t.client.Get(ctx, t.Key(id))
	if err != nil {
		return nil, t.fail(wrapStage(err, errs.KindStorage, errs.CodeIO, "get row"), id, stageGet)
	}
	if isAbsent(data) {
		t.logger.Debug("row absent", zap.String("id", id))
		return nil, nil
	}
	var row T
	if err := json.Unmarshal(data, &row); err != nil {
		e := errs.Storage(errs.CodeDecode, "decode row", err).With(map[string]any{"payload": data})
		return nil, t.fail(e, id, stageDecode)
	}
	return &row, nil
}

// GetMany loads the rows stored under ids in order, skipping absent ones.
// The first failure aborts the batch.
func (t *Table[T]) GetMany(ctx context.Context, ids []string) ([]Row[T], error) {
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
func (t *Table[T]) Remove(ctx context.Context, id string) error {
	if err := t.checkID(id); err != nil {
		return err
	}
	if err := t.client.Delete(ctx, t.Key(id)); err != nil {
		return t.fail(errs.Storage(errs.CodeIO, "delete row", err), id, stageDelete)
	}
	t.logger.Debug("row removed", zap.String("id", id))
	return nil
}

// IDs lists the identifiers stored in the table, sorted. The storage client
// must implement KeyLister.
func (t *Table[T]) IDs(ctx context.Context) ([]string, error) {
	lister, ok := t.client.(KeyLister)
	if !ok {
		return nil, t.fail(errs.Storage(errs.CodeUnsupported, "storage client cannot list keys", nil), "", stageList)
	}
	prefix := t.name + keySeparator
	keys, err := lister.Keys(ctx, prefix)
	if err != nil {
		return nil, t.fail(wrapStage(err, errs.KindStorage, errs.CodeIO, "list keys"), "", stageList)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := strings.CutPrefix(k, prefix); ok && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *Table[T]) checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return t.fail(errs.InvalidArgument(errs.CodeEmpty, "row id is required"), id, "")
	}
	return nil
}

// fail attaches the table, id and stage to e.
func (t *Table[T]) fail(e *errs.Error, id, stage string) *errs.Error {
	detail := map[string]any{"table": t.name}
	if id != "" {
		detail["id"] = id
	}
	if stage != "" {
		detail["stage"] = stage
	}
	return e.With(detail)
}

// wrapStage re-surfaces err under message, keeping the kind and code of the
// first *errs.Error in its chain.
func wrapStage(err error, fallback errs.Kind, code errs.Code, message string) *errs.Error {
	var inner *errs.Error
	if errors.As(err, &inner) {
		return errs.Wrap(inner.Kind, inner.Code, message, err)
	}
	return errs.Wrap(fallback, code, message, err)
}

func isAbsent(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// encodeRow produces the canonical payload for a row: JSON without HTML
// escaping or a trailing newline.
func encodeRow[T any](row T) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(row); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
