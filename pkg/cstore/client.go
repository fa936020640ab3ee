package cstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/cstoreapi"
	"github.com/iota-pico/iota-pico-storage-sub001/internal/httpx"
)

var null = []byte("null")

// Backend moves raw JSON documents to and from a store.
type Backend interface {
	// GetRaw returns the document stored at key, or nil when there is none.
	GetRaw(ctx context.Context, key string) ([]byte, error)
	// PutRaw stores the document at key and returns its ETag, if any.
	PutRaw(ctx context.Context, key string, raw []byte) (string, error)
	// ListKeys returns every key the store knows, tombstones included.
	ListKeys(ctx context.Context) ([]string, error)
}

// Client provides typed access to a Backend.
type Client struct {
	backend Backend
}

// New returns a Client talking to the HTTP API at baseURL.
func New(baseURL string, opts ...httpx.Option) (*Client, error) {
	cl, err := httpx.NewClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return NewWithHTTPClient(cl), nil
}

// NewWithHTTPClient wraps an existing httpx.Client.
func NewWithHTTPClient(httpClient *httpx.Client) *Client {
	return &Client{backend: &httpBackend{client: httpClient}}
}

// NewWithBackend returns a Client over b, typically an in-memory mock.
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// Get fetches key and decodes it into T. It returns nil, nil when the key is
// missing or deleted.
func Get[T any](ctx context.Context, c *Client, key string) (*Item[T], error) {
	data, err := c.getRaw(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeItem[T](key, data)
}

// Put encodes value as JSON and stores it under key.
func Put[T any](ctx context.Context, c *Client, key string, value T) (*Item[T], error) {
	raw, err := httpx.MarshalJSON(value)
	if err != nil {
		return nil, fmt.Errorf("cstore: encode value: %w", err)
	}
	etag, err := c.putRaw(ctx, key, raw)
	if err != nil {
		return nil, err
	}
	return &Item[T]{Key: key, Value: value, ETag: etag}, nil
}

// List returns up to limit live items under prefix whose key sorts after
// cursor. A non-empty NextCursor means more items remain.
func List[T any](ctx context.Context, c *Client, prefix, cursor string, limit int) (*ListResult[T], error) {
	keys, err := c.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	start := sort.SearchStrings(keys, cursor)
	for start < len(keys) && keys[start] <= cursor {
		start++
	}
	end := len(keys)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	res := &ListResult[T]{Items: make([]Item[T], 0, end-start)}
	for _, key := range keys[start:end] {
		item, err := Get[T](ctx, c, key)
		if err != nil {
			return nil, err
		}
		if item != nil {
			res.Items = append(res.Items, *item)
		}
	}
	if end < len(keys) && end > start {
		res.NextCursor = keys[end-1]
	}
	return res, nil
}

// Delete overwrites key with JSON null. Deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.putRaw(ctx, key, null)
	return err
}

// Keys returns the sorted live keys under prefix. Deleted keys are skipped,
// which costs one read per listed key.
func (c *Client) Keys(ctx context.Context, prefix string) ([]string, error) {
	if c == nil || c.backend == nil {
		return nil, ErrNilClient
	}
	all, err := c.backend.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		data, err := c.backend.GetRaw(ctx, k)
		if err != nil {
			return nil, err
		}
		if !isAbsent(data) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *Client) getRaw(ctx context.Context, key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrKeyRequired
	}
	if c == nil || c.backend == nil {
		return nil, ErrNilClient
	}
	return c.backend.GetRaw(ctx, key)
}

func (c *Client) putRaw(ctx context.Context, key string, raw []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrKeyRequired
	}
	if c == nil || c.backend == nil {
		return "", ErrNilClient
	}
	return c.backend.PutRaw(ctx, key, raw)
}

func isAbsent(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, null)
}

func decodeItem[T any](key string, data []byte) (*Item[T], error) {
	if isAbsent(data) {
		return nil, nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("cstore: decode value: %w", err)
	}
	return &Item[T]{Key: key, Value: value}, nil
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) GetRaw(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   cstoreapi.PathGet,
		Query:  url.Values{"key": {key}},
	})
	if err != nil {
		return nil, err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, err
	}
	return cstoreapi.Unwrap(data)
}

func (b *httpBackend) PutRaw(ctx context.Context, key string, raw []byte) (string, error) {
	req, err := httpx.JSONRequest(http.MethodPost, cstoreapi.PathSet, cstoreapi.SetRequest{
		Key:   key,
		Value: string(raw),
		Peers: []string{},
	})
	if err != nil {
		return "", err
	}
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return "", err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return "", err
	}
	if _, err := cstoreapi.Unwrap(data); err != nil {
		return "", err
	}
	return resp.Header.Get("ETag"), nil
}

func (b *httpBackend) ListKeys(ctx context.Context) ([]string, error) {
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   cstoreapi.PathStatus,
	})
	if err != nil {
		return nil, err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, err
	}
	var status cstoreapi.StatusResult
	if err := cstoreapi.Decode(data, &status); err != nil {
		return nil, fmt.Errorf("cstore: decode get_status response: %w", err)
	}
	return status.Keys, nil
}
