package datatable

import (
	"go.uber.org/zap"

	"github.com/iota-pico/iota-pico-storage-sub001/internal/logging"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/asymcrypto"
)

// Option configures a Table or SignedTable.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	provider asymcrypto.Provider
}

// WithLogger sets the logger used for per-operation debug and warning logs.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProvider overrides the crypto provider of a SignedTable. The default is
// asymcrypto.NewRSAProvider().
func WithProvider(p asymcrypto.Provider) Option {
	return func(o *options) {
		if p != nil {
			o.provider = p
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.L()
	}
	if o.provider == nil {
		o.provider = asymcrypto.NewRSAProvider()
	}
	return o
}
