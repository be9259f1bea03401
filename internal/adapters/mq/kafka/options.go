package kafka

import (
	"context"
	"time"

	"github.com/okian/adrec/pkg/logger"
)

// Option applies a configuration option to the Publisher.
type Option func(*Publisher)

// WithCheckInterval sets how long a broker reachability result is reused.
func WithCheckInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.checkInterval = d
		}
	}
}

// WithFailureThreshold sets how many consecutive publish failures open the breaker.
func WithFailureThreshold(n uint32) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.failureThreshold = n
		}
	}
}

// WithBreakerTimeout sets how long the breaker stays open before probing again.
func WithBreakerTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.breakerTimeout = d
		}
	}
}

// WithWriteTimeout bounds a single broker write.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the publisher.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// withWriter replaces the broker writer. Used by tests.
func withWriter(w messageWriter) Option {
	return func(p *Publisher) {
		p.writer = w
	}
}

// withCheck replaces the reachability check. Used by tests.
func withCheck(fn func(ctx context.Context) error) Option {
	return func(p *Publisher) {
		p.check = fn
	}
}
