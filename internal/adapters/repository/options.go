package repository

import (
	"time"

	"github.com/okian/adrec/pkg/logger"
)

// Default store configuration constants.
const (
	defaultSlowThreshold = time.Second
	defaultMaxOpenConns  = 20
	defaultMaxIdleConns  = 5
	defaultConnLifetime  = 30 * time.Minute
)

// Option applies a configuration option to the GormStore.
type Option func(*GormStore)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *GormStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSlowThreshold sets the duration above which queries are logged as slow.
func WithSlowThreshold(d time.Duration) Option {
	return func(s *GormStore) {
		if d > 0 {
			s.slowThreshold = d
		}
	}
}

// WithPool sets connection pool limits.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(s *GormStore) {
		if maxOpen > 0 {
			s.maxOpen = maxOpen
		}
		if maxIdle >= 0 {
			s.maxIdle = maxIdle
		}
		if lifetime > 0 {
			s.connLifetime = lifetime
		}
	}
}
