// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	xglog "github.com/sersery88/flight-ibe/internal/log"
)

// Backend identifiers accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Redis      RedisConfig
	BadgerPath string
}

// Open builds the configured store. An unreachable backend is not fatal: the
// error is logged and a no-op store returned so the service keeps answering,
// only slower.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) Store {
	store, err := open(ctx, opts, logger)
	if err != nil {
		logger.Warn().Err(err).
			Str("backend", opts.Backend).
			Str(xglog.FieldEvent, "cache.disabled").
			Msg("cache backend unavailable, continuing without cache")
		return NewNoopStore()
	}
	return store
}

func open(ctx context.Context, opts Options, logger zerolog.Logger) (Store, error) {
	switch opts.Backend {
	case "", BackendNone:
		return NewNoopStore(), nil
	case BackendMemory:
		return NewMemoryStore(defaultJanitorInterval), nil
	case BackendRedis:
		if opts.Redis.Addr == "" && opts.Redis.URL == "" {
			return nil, fmt.Errorf("%w: redis address not configured", ErrUnavailable)
		}
		return NewRedisStore(ctx, opts.Redis, logger)
	case BackendBadger:
		return OpenBadgerStore(opts.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
