// Package service wires the store, the delivery backends and the domain
// components together and exposes the operations required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/adrec/internal/adapters/buffer"
	"github.com/okian/adrec/internal/adapters/fallback"
	"github.com/okian/adrec/internal/adapters/mq/kafka"
	eventqueue "github.com/okian/adrec/internal/adapters/mq/queue"
	"github.com/okian/adrec/internal/adapters/mq/stream"
	workerpool "github.com/okian/adrec/internal/adapters/mq/worker"
	"github.com/okian/adrec/internal/adapters/repository"
	"github.com/okian/adrec/internal/config"
	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/internal/domain/recommend"
	"github.com/okian/adrec/internal/domain/report"
	"github.com/okian/adrec/internal/domain/sink"
	"github.com/okian/adrec/pkg/logger"
	"github.com/okian/adrec/pkg/metrics"
)

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("service not started")

// publisher is a queue backend owned by the service.
type publisher interface {
	sink.Publisher
	Close() error
}

// Service implements the API dependencies for the ad platform.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	store       repository.Store
	ownsStore   bool
	queue       publisher
	memQueue    *eventqueue.InMemoryQueue
	workerPool  *workerpool.Pool
	buffer      *buffer.Redis
	file        *fallback.File
	chain       *sink.Chain
	recommender *recommend.Recommender

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStore injects an already opened store. The service does not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start connects the store and the delivery backends. Only the store is
// required; an unreachable queue or buffer is logged and skipped so that
// events degrade to the next tier.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting ad service...")

	if err := s.openStore(ctx); err != nil {
		return err
	}

	s.startQueue(ctx)
	s.connectBuffer(ctx)

	s.file = fallback.New(s.cfg.FallbackFile)

	chainOpts := []sink.Option{
		sink.WithPublishTimeout(s.cfg.PublishTimeout()),
		sink.WithStrictDelivery(s.cfg.StrictDelivery),
	}
	if s.buffer != nil {
		chainOpts = append(chainOpts, sink.WithBuffer(s.buffer))
	}
	var queue sink.Publisher
	if s.queue != nil {
		queue = s.queue
	}
	s.chain = sink.NewChain(queue, s.file, chainOpts...)

	s.recommender = recommend.New(s.store,
		recommend.WithDefaultTopN(s.cfg.DefaultRecommendations),
		recommend.WithCTRWeight(s.cfg.CTRWeight),
	)

	s.started = true
	s.logger.Info(ctx, "ad service started",
		logger.String("db_driver", s.cfg.DBDriver),
		logger.String("queue_backend", s.cfg.QueueBackend),
		logger.Bool("buffer", s.buffer != nil),
		logger.String("fallback_file", s.cfg.FallbackFile),
		logger.Bool("strict_delivery", s.cfg.StrictDelivery),
	)

	return nil
}

func (s *Service) openStore(ctx context.Context) error {
	if s.store != nil {
		return nil
	}

	store, err := repository.Open(ctx, repository.Connection{
		Driver:   s.cfg.DBDriver,
		Host:     s.cfg.DBHost,
		Port:     s.cfg.DBPort,
		Database: s.cfg.DBDatabase,
		Username: s.cfg.DBUsername,
		Password: s.cfg.DBPassword,
		Path:     s.cfg.DBPath,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if s.cfg.DBAutoMigrate {
		if err := store.AutoMigrate(ctx); err != nil {
			_ = store.Close()
			return err
		}
	}

	s.store = store
	s.ownsStore = true
	return nil
}

func (s *Service) startQueue(ctx context.Context) {
	switch s.cfg.QueueBackend {
	case config.QueueKafka:
		s.queue = kafka.New(s.cfg.KafkaBrokers(), s.cfg.KafkaTopic)
	case config.QueueNATS:
		p, err := stream.Connect(ctx, s.cfg.NATSURL, s.cfg.NATSSubject)
		if err != nil {
			s.logger.Warn(ctx, "queue unavailable, events will use fallback tiers",
				logger.String("backend", config.QueueNATS), logger.Error(err))
			metrics.UpdateDependencyStatus(config.QueueNATS, false)
			return
		}
		s.queue = p
	case config.QueueMemory:
		s.memQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.EventQueueSize))
		// Workers outlive the start request.
		s.workerPool = workerpool.NewPool(s.cfg.WorkerCount, s.memQueue, s.store)
		s.workerPool.Start(context.WithoutCancel(ctx))
		s.queue = s.memQueue
	default:
		s.logger.Info(ctx, "queue tier disabled")
	}
}

func (s *Service) connectBuffer(ctx context.Context) {
	addr := s.cfg.RedisAddr()
	if addr == "" {
		s.logger.Info(ctx, "buffer tier disabled")
		return
	}

	b, err := buffer.Connect(ctx, addr, s.cfg.RedisPassword, s.cfg.RedisDB,
		buffer.WithList(s.cfg.RedisList),
	)
	if err != nil {
		s.logger.Warn(ctx, "buffer unavailable, events will use the fallback file",
			logger.String("addr", addr), logger.Error(err))
		return
	}
	s.buffer = b
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping ad service...")

	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
		s.workerPool = nil
		s.memQueue = nil
	}

	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn(ctx, "close queue", logger.Error(err))
		}
		s.queue = nil
	}

	if s.buffer != nil {
		if err := s.buffer.Close(); err != nil {
			s.logger.Warn(ctx, "close buffer", logger.Error(err))
		}
		s.buffer = nil
	}

	if s.ownsStore {
		if closer, ok := s.store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
		s.store = nil
		s.ownsStore = false
	}

	s.chain = nil
	s.recommender = nil
	s.started = false
	s.logger.Info(ctx, "ad service stopped")
}

// Recommend returns up to limit ads for the user.
func (s *Service) Recommend(ctx context.Context, userID int64, limit int) (recommend.Recommendation, error) {
	s.mu.RLock()
	r := s.recommender
	started := s.started
	s.mu.RUnlock()

	if !started {
		return recommend.Recommendation{}, ErrNotStarted
	}
	return r.Recommend(ctx, userID, limit)
}

// LogEvent records one interaction through the sink chain.
func (s *Service) LogEvent(ctx context.Context, e model.Event) (sink.Outcome, error) { //nolint:gocritic // hugeParam: Event is passed by value across layers
	s.mu.RLock()
	chain := s.chain
	started := s.started
	s.mu.RUnlock()

	if !started {
		return sink.Unavailable, ErrNotStarted
	}

	s.logger.Debug(ctx, "received event",
		logger.Int64("ad_id", e.AdID),
		logger.Int64("tenant_id", e.TenantID),
		logger.String("event_type", string(e.Kind)),
	)
	return chain.Record(ctx, e)
}

// Health checks the queue and buffer tiers.
func (s *Service) Health(ctx context.Context) sink.Health {
	s.mu.RLock()
	chain := s.chain
	s.mu.RUnlock()

	if chain == nil {
		return sink.Health{}
	}
	h := chain.Health(ctx)
	metrics.UpdateDependencyStatus("queue", h.Queue)
	return h
}

// Conversions reports impressions, clicks and the conversion rate, optionally
// restricted to one tenant.
func (s *Service) Conversions(ctx context.Context, tenantID *int64) (report.ConversionReport, error) {
	events, err := s.tenantEvents(ctx, tenantID)
	if err != nil {
		return report.ConversionReport{}, err
	}
	return report.Conversion(events), nil
}

// DailyEvents reports per-day event counts keyed by date.
func (s *Service) DailyEvents(ctx context.Context, tenantID *int64) (map[string]report.DailyCounts, error) {
	events, err := s.tenantEvents(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return report.Daily(events), nil
}

func (s *Service) tenantEvents(ctx context.Context, tenantID *int64) ([]model.Event, error) {
	s.mu.RLock()
	store := s.store
	started := s.started
	s.mu.RUnlock()

	if !started {
		return nil, ErrNotStarted
	}
	return store.ListEventsForTenant(ctx, tenantID)
}

// ListAds returns one page of the tenant's ads and the tenant's total ad count.
func (s *Service) ListAds(ctx context.Context, tenantID int64, page, perPage int) ([]model.Ad, int64, error) {
	store, err := s.adStore()
	if err != nil {
		return nil, 0, err
	}
	return store.ListTenantAds(ctx, tenantID, page, perPage)
}

// GetAd returns the tenant's ad with the given id.
func (s *Service) GetAd(ctx context.Context, tenantID, id int64) (model.Ad, error) {
	store, err := s.adStore()
	if err != nil {
		return model.Ad{}, err
	}
	return store.GetAd(ctx, tenantID, id)
}

// CreateAd persists a new ad and returns it as stored.
func (s *Service) CreateAd(ctx context.Context, a model.Ad) (model.Ad, error) { //nolint:gocritic // hugeParam: Ad is passed by value across layers
	store, err := s.adStore()
	if err != nil {
		return model.Ad{}, err
	}
	id, err := store.InsertAd(ctx, a)
	if err != nil {
		return model.Ad{}, err
	}
	s.logger.Info(ctx, "ad created", logger.Int64("ad_id", id), logger.Int64("tenant_id", a.TenantID))
	return store.GetAd(ctx, a.TenantID, id)
}

// UpdateAd replaces the editable fields of an existing ad.
func (s *Service) UpdateAd(ctx context.Context, a model.Ad) (model.Ad, error) { //nolint:gocritic // hugeParam: Ad is passed by value across layers
	store, err := s.adStore()
	if err != nil {
		return model.Ad{}, err
	}
	return store.UpdateAd(ctx, a)
}

// DeleteAd removes the tenant's ad with the given id.
func (s *Service) DeleteAd(ctx context.Context, tenantID, id int64) error {
	store, err := s.adStore()
	if err != nil {
		return err
	}
	if err := store.DeleteAd(ctx, tenantID, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "ad deleted", logger.Int64("ad_id", id), logger.Int64("tenant_id", tenantID))
	return nil
}

func (s *Service) adStore() (repository.AdStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"queueBackend":     s.cfg.QueueBackend,
		"bufferEnabled":    s.buffer != nil,
		"fallbackFile":     s.cfg.FallbackFile,
		"strictDelivery":   s.cfg.StrictDelivery,
		"publishTimeout":   s.cfg.PublishTimeout().String(),
		"maxRecommend":     s.cfg.MaxRecommendations,
		"defaultRecommend": s.cfg.DefaultRecommendations,
		"ctrWeight":        s.cfg.CTRWeight,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	}

	if s.started && s.memQueue != nil {
		queueLen := s.memQueue.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["queueCapacity"] = s.memQueue.Cap()
		stats["workerCount"] = s.workerPool.Size()
		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}
