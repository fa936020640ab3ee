// Package storeenv builds the storage client a process should use from its
// environment: the remote HTTP store, an in-memory mock or a SQL database,
// optionally behind zstd compression.
package storeenv

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/config"
	"github.com/iota-pico/iota-pico-storage-sub001/internal/devseed"
	"github.com/iota-pico/iota-pico-storage-sub001/internal/httpx"
	"github.com/iota-pico/iota-pico-storage-sub001/internal/logging"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore/mock"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/datatable"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/sqlstore"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/zstdstore"
)

// Env is a ready storage client and the mode it was built for.
type Env struct {
	Storage datatable.StorageClient
	Mode    string
	closers []func() error
}

// Close releases connections held by the storage client.
func (e *Env) Close() error {
	var firstErr error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.closers = nil
	return firstErr
}

// NewFromEnv loads config.Config from the environment and calls New.
func NewFromEnv(ctx context.Context) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// New builds the storage client described by cfg.
func New(ctx context.Context, cfg config.Config) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.L()
	e := &Env{Mode: cfg.ResolvedMode()}

	switch e.Mode {
	case config.ModeHTTP:
		client, err := cstore.New(cfg.CStoreURL,
			httpx.WithTimeout(cfg.HTTPTimeout),
			httpx.WithLogger(logger),
			httpx.WithRetryPolicy(httpx.RetryPolicy{
				MaxRetries: cfg.HTTPRetries,
				BaseDelay:  httpx.DefaultRetryPolicy.BaseDelay,
				MaxDelay:   httpx.DefaultRetryPolicy.MaxDelay,
				Jitter:     httpx.DefaultRetryPolicy.Jitter,
			}))
		if err != nil {
			return nil, fmt.Errorf("storeenv: init http client: %w", err)
		}
		e.Storage = cstore.NewStore(client)
	case config.ModeSQL:
		s, err := sqlstore.Open(ctx, cfg.SQLDriver, cfg.SQLDSN, sqlstore.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("storeenv: init sql store: %w", err)
		}
		e.Storage = s
		e.closers = append(e.closers, s.Close)
	default:
		e.Storage = cstore.NewStore(cstore.NewWithBackend(mock.New()))
	}

	if cfg.Compress {
		z, err := zstdstore.New(e.Storage)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("storeenv: init compression: %w", err)
		}
		e.Storage = z
		e.closers = append(e.closers, func() error { z.Close(); return nil })
	}

	if e.Mode == config.ModeMock {
		if path := strings.TrimSpace(cfg.MockSeed); path != "" {
			if err := seed(ctx, e.Storage, path); err != nil {
				_ = e.Close()
				return nil, err
			}
		}
	}

	logger.Info("storage ready", zap.String("mode", e.Mode), zap.Bool("compress", cfg.Compress))
	return e, nil
}

func seed(ctx context.Context, client datatable.StorageClient, path string) error {
	entries, err := devseed.Load(path)
	if err != nil {
		return fmt.Errorf("storeenv: load mock seed: %w", err)
	}
	if _, err := devseed.Apply(ctx, client, entries); err != nil {
		return fmt.Errorf("storeenv: apply mock seed: %w", err)
	}
	return nil
}
