// Package buffer implements the secondary delivery tier on a Redis list.
package buffer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/adrec/pkg/logger"
	"github.com/okian/adrec/pkg/metrics"
)

// Default buffer configuration constants.
const (
	defaultList        = "event_queue"
	defaultDialTimeout = 2 * time.Second
	defaultPingTimeout = 2 * time.Second
)

// ErrAppend wraps every failure to push onto the list.
var ErrAppend = errors.New("buffer append failed")

// listClient is the subset of the Redis client the buffer uses.
type listClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Redis appends serialized events to the tail of a Redis list.
type Redis struct {
	client      listClient
	list        string
	pingTimeout time.Duration
	logger      logger.Logger
}

// Option applies a configuration option to the Redis buffer.
type Option func(*Redis)

// WithList sets the list key events are pushed onto.
func WithList(list string) Option {
	return func(r *Redis) {
		if list != "" {
			r.list = list
		}
	}
}

// WithPingTimeout bounds health checks.
func WithPingTimeout(d time.Duration) Option {
	return func(r *Redis) {
		if d > 0 {
			r.pingTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the buffer.
func WithLogger(l logger.Logger) Option {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}

// Connect dials Redis at addr and verifies it answers a PING.
func Connect(ctx context.Context, addr, password string, db int, opts ...Option) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: defaultDialTimeout,
	})
	r := newRedis(client, opts...)

	pingCtx, cancel := context.WithTimeout(ctx, r.pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		metrics.UpdateDependencyStatus("redis", false)
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	metrics.UpdateDependencyStatus("redis", true)
	r.logger.Info(ctx, "connected to redis", logger.String("addr", addr), logger.String("list", r.list))
	return r, nil
}

func newRedis(client listClient, opts ...Option) *Redis {
	r := &Redis{
		client:      client,
		list:        defaultList,
		pingTimeout: defaultPingTimeout,
		logger:      logger.Get().Named("buffer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append pushes payload onto the list.
func (r *Redis) Append(ctx context.Context, payload []byte) error {
	if err := r.client.RPush(ctx, r.list, payload).Err(); err != nil {
		return fmt.Errorf("%w: rpush %s: %w", ErrAppend, r.list, err)
	}
	return nil
}

// Healthy reports whether Redis answers a PING within the ping timeout.
func (r *Redis) Healthy(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, r.pingTimeout)
	defer cancel()
	ok := r.client.Ping(pingCtx).Err() == nil
	metrics.UpdateDependencyStatus("redis", ok)
	return ok
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
