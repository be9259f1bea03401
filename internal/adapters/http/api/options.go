package api

import "github.com/okian/adrec/pkg/logger"

type handlerConfig struct {
	defaultLimit int
	maxLimit     int
}

// Option applies a configuration option to the Server.
type Option func(*Server, *handlerConfig)

// WithRecommendationLimits sets the default and maximum ?limit of /recommend.
func WithRecommendationLimits(defaultLimit, maxLimit int) Option {
	return func(_ *Server, c *handlerConfig) {
		if maxLimit > 0 {
			c.maxLimit = maxLimit
		}
		if defaultLimit > 0 {
			c.defaultLimit = defaultLimit
		}
		if c.defaultLimit > c.maxLimit {
			c.defaultLimit = c.maxLimit
		}
	}
}

// WithCORSOrigins restricts the allowed CORS origins. Empty allows all.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server, _ *handlerConfig) {
		s.corsOrigins = origins
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server, _ *handlerConfig) {
		if l != nil {
			s.logger = l
		}
	}
}
