package sink

import (
	"time"

	"github.com/okian/adrec/pkg/logger"
)

// Option applies a configuration option to the Chain.
type Option func(*Chain)

// WithBuffer configures the second tier. Without it the chain goes straight
// from the queue to the file.
func WithBuffer(b Buffer) Option {
	return func(c *Chain) {
		c.buffer = b
	}
}

// WithPublishTimeout bounds the wait for a queue acknowledgement.
func WithPublishTimeout(d time.Duration) Option {
	return func(c *Chain) {
		if d > 0 {
			c.publishTimeout = d
		}
	}
}

// WithStrictDelivery controls whether a file-only write reports Unavailable
// (strict, the default) or PersistedFallback.
func WithStrictDelivery(strict bool) Option {
	return func(c *Chain) {
		c.strict = strict
	}
}

// WithLogger sets a custom logger for the chain.
func WithLogger(l logger.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}
