package cstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/iota-pico/iota-pico-storage-sub001/pkg/datatable"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/errs"
)

var (
	_ datatable.StorageClient = (*Store)(nil)
	_ datatable.KeyLister     = (*Store)(nil)
)

// blob wraps opaque bytes in a JSON document. The payload travels base64
// encoded so compressed or binary values survive the string-typed wire value.
type blob struct {
	Data []byte `json:"data"`
}

// Store exposes a Client as a datatable.StorageClient.
type Store struct {
	client *Client
}

// NewStore wraps c.
func NewStore(c *Client) *Store {
	return &Store{client: c}
}

// Client returns the wrapped client.
func (s *Store) Client() *Client {
	return s.client
}

// Get returns the bytes stored under key, or nil when the key is missing or
// deleted. A document not written by Store fails with errs.CodeDecode.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.getRaw(ctx, key)
	if err != nil || isAbsent(raw) {
		return nil, err
	}
	data, err := decodeBlob(raw)
	if err != nil {
		return nil, errs.Storage(errs.CodeDecode, "stored document is not a datatable value", err).
			With(map[string]any{"key": key, "payload": raw})
	}
	return data, nil
}

// decodeBlob accepts only documents of the form {"data": <base64>}.
func decodeBlob(raw []byte) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	field, ok := doc["data"]
	if !ok || len(doc) != 1 {
		return nil, errors.New(`want a single "data" field`)
	}
	var data []byte
	if err := json.Unmarshal(field, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Put stores value under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := Put(ctx, s.client, key, blob{Data: value})
	return err
}

// Delete replaces key with a tombstone.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, key)
}

// Keys returns the sorted live keys under prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.client.Keys(ctx, prefix)
}
