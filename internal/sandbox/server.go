// Package sandbox serves the remote store HTTP API from an in-memory mock so
// clients can be exercised locally, with optional latency and failure
// injection.
package sandbox

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/cstoreapi"
	"github.com/iota-pico/iota-pico-storage-sub001/internal/logging"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore/mock"
)

// Failure injects errors into a fraction of requests.
type Failure struct {
	Rate float64
	Code int
}

// Options tunes the sandbox handler.
type Options struct {
	Latency time.Duration
	Failure Failure
	Logger  *zap.Logger
}

// NewHandler returns an http.Handler exposing store over the store API.
func NewHandler(store *mock.Mock, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.L()
	}
	s := &server{store: store, logger: opts.Logger}
	mux := http.NewServeMux()
	mux.HandleFunc(cstoreapi.PathGet, s.handleGet)
	mux.HandleFunc(cstoreapi.PathSet, s.handleSet)
	mux.HandleFunc(cstoreapi.PathStatus, s.handleStatus)
	return withMiddleware(opts, mux)
}

type server struct {
	store  *mock.Mock
	logger *zap.Logger
}

func withMiddleware(opts Options, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts.Logger.Debug("sandbox request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		if opts.Latency > 0 {
			select {
			case <-time.After(opts.Latency):
			case <-r.Context().Done():
				return
			}
		}
		if opts.Failure.Rate > 0 && rand.Float64() < opts.Failure.Rate {
			status := opts.Failure.Code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			http.Error(w, "failure injected", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing key parameter")
		return
	}
	raw, err := s.store.GetRaw(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if raw == nil {
		writeJSON(w, cstoreapi.Envelope{Result: nil})
		return
	}
	w.Header().Set("ETag", s.store.ETag(key))
	writeJSON(w, cstoreapi.Envelope{Result: string(raw)})
}

func (s *server) handleSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cstoreapi.SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if !json.Valid([]byte(req.Value)) {
		writeError(w, http.StatusBadRequest, "value must be a JSON document")
		return
	}
	etag, err := s.store.PutRaw(r.Context(), req.Key, []byte(req.Value))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, cstoreapi.Envelope{Result: true})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.ListKeys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, cstoreapi.Envelope{Result: cstoreapi.StatusResult{Keys: keys}})
}

func writeJSON(w http.ResponseWriter, env cstoreapi.Envelope) {
	writeJSONStatus(w, http.StatusOK, env)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, cstoreapi.Envelope{Error: msg})
}

func writeJSONStatus(w http.ResponseWriter, status int, env cstoreapi.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// ParseFailure parses "rate=<float>,code=<status>". An empty string disables
// injection.
func ParseFailure(raw string) (Failure, error) {
	if strings.TrimSpace(raw) == "" {
		return Failure{}, nil
	}
	f := Failure{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return Failure{}, fmt.Errorf("sandbox: invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "rate":
			rate, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return Failure{}, fmt.Errorf("sandbox: fail rate: %w", err)
			}
			if rate < 0 || rate > 1 {
				return Failure{}, fmt.Errorf("sandbox: fail rate %v out of range [0,1]", rate)
			}
			f.Rate = rate
		case "code":
			code, err := strconv.Atoi(val)
			if err != nil {
				return Failure{}, fmt.Errorf("sandbox: fail code: %w", err)
			}
			f.Code = code
		default:
			return Failure{}, fmt.Errorf("sandbox: unknown fail key %q", key)
		}
	}
	return f, nil
}
