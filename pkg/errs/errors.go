// Package errs provides the structured error type shared by the crypto and
// data table packages. Every failure carries a Kind that callers can switch
// on, an optional Code refining it, free-form Detail for diagnostics and the
// wrapped Cause.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the coarse error category.
type Kind string

const (
	// KindInvalidArgument marks empty or malformed caller input. Never retried.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	// KindCrypto marks an algorithm-level failure (key mismatch, corrupt ciphertext).
	KindCrypto Kind = "CRYPTO"
	// KindStorage marks transport, (de)serialization and verification failures
	// of stored records.
	KindStorage Kind = "STORAGE"
)

// Code refines a Kind.
type Code string

const (
	CodeNone              Code = ""
	CodeEmpty             Code = "EMPTY"
	CodeMalformedKey      Code = "MALFORMED_KEY"
	CodeMalformedInput    Code = "MALFORMED_INPUT"
	CodeReadOnly          Code = "READ_ONLY"
	CodeDecrypt           Code = "DECRYPT"
	CodeEncrypt           Code = "ENCRYPT"
	CodeSign              Code = "SIGN"
	CodeIO                Code = "IO"
	CodeEncode            Code = "ENCODE"
	CodeDecode            Code = "DECODE"
	CodeSignatureMismatch Code = "SIGNATURE_MISMATCH"
	CodeUnsupported       Code = "UNSUPPORTED"
)

// Sentinels for errors.Is. They match any Error with the same kind and code.
var (
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrCrypto            = &Error{Kind: KindCrypto}
	ErrStorage           = &Error{Kind: KindStorage}
	ErrSignatureMismatch = &Error{Kind: KindStorage, Code: CodeSignatureMismatch}
)

// Error is the domain error type with structured metadata.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Detail  map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(string(e.Kind)))
	if e.Code != CodeNone {
		b.WriteString("/")
		b.WriteString(strings.ToLower(string(e.Code)))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if ctx := e.context(); ctx != "" {
		b.WriteString(" [")
		b.WriteString(ctx)
		b.WriteString("]")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// context renders the string-valued detail entries; raw payloads stay out of
// the message.
func (e *Error) context() string {
	if len(e.Detail) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Detail))
	for k, v := range e.Detail {
		if _, ok := v.(string); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, e.Detail[k]))
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind, and by code when the
// target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == CodeNone || e.Code == t.Code
}

// New creates an error with a kind, code and message.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates an error that wraps an underlying cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// InvalidArgument is shorthand for New(KindInvalidArgument, code, message).
func InvalidArgument(code Code, message string) *Error {
	return New(KindInvalidArgument, code, message)
}

// Crypto is shorthand for Wrap(KindCrypto, code, message, cause).
func Crypto(code Code, message string, cause error) *Error {
	return Wrap(KindCrypto, code, message, cause)
}

// Storage is shorthand for Wrap(KindStorage, code, message, cause).
func Storage(code Code, message string, cause error) *Error {
	return Wrap(KindStorage, code, message, cause)
}

// With returns e after merging the supplied detail entries into it.
func (e *Error) With(kv map[string]any) *Error {
	if len(kv) == 0 {
		return e
	}
	if e.Detail == nil {
		e.Detail = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		e.Detail[k] = v
	}
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeNone
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// DetailOf returns the detail value stored under key on the first *Error in
// err's chain.
func DetailOf(err error, key string) (any, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Detail == nil {
		return nil, false
	}
	v, ok := e.Detail[key]
	return v, ok
}
