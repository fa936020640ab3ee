// Package cstoreapi holds the wire envelope shared by the remote key/value
// store client and the sandbox server.
package cstoreapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Endpoint paths exposed by the store API.
const (
	PathGet    = "/get"
	PathSet    = "/set"
	PathStatus = "/get_status"
)

// Envelope wraps every store API response.
type Envelope struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// SetRequest is the body of a PathSet call. Value is the JSON document to
// store, carried as a string.
type SetRequest struct {
	Key   string   `json:"key"`
	Value string   `json:"value"`
	Peers []string `json:"chainstore_peers"`
}

// StatusResult is the result of a PathStatus call.
type StatusResult struct {
	Keys []string `json:"keys"`
}

// APIError is returned when the envelope carries an error message.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "cstore api: " + e.Message
}

// ErrMissingResult is returned by Unwrap when the body is an object without
// a result field.
var ErrMissingResult = errors.New("cstore api: response has no result")

// Unwrap returns the JSON payload held in the "result" field of body. A
// result that is itself a (possibly repeatedly) quoted JSON document is
// decoded to the inner document; any other string is returned as a JSON
// string. A bare non-object body is returned unchanged and an empty body
// yields nil.
func Unwrap(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return clone(trimmed), nil
	}

	var env struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	if env.Error != "" {
		return nil, &APIError{Message: env.Error}
	}
	if env.Result == nil {
		return nil, ErrMissingResult
	}

	var s string
	if err := json.Unmarshal(env.Result, &s); err != nil || bytes.Equal(env.Result, []byte("null")) {
		return clone(env.Result), nil
	}
	// Keep the innermost layer that is still a JSON document.
	var doc []byte
	for {
		if json.Valid([]byte(s)) {
			doc = []byte(s)
		}
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			break
		}
		s = unquoted
	}
	if doc != nil {
		return doc, nil
	}
	return clone(env.Result), nil
}

// Decode unwraps body into out. An empty body decodes as JSON null.
func Decode(body []byte, out any) error {
	payload, err := Unwrap(body)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return json.Unmarshal(payload, out)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
