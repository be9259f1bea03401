package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/pkg/logger"
	"github.com/okian/adrec/pkg/metrics"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Query names used in metrics.
const (
	queryListAds         = "list_ads"
	queryListAllEvents   = "list_all_events"
	queryListUserEvents  = "list_user_events"
	queryListTenantEvent = "list_tenant_events"
	queryInsertEvent     = "insert_event"
	queryInsertAd        = "insert_ad"
	queryListTenantAds   = "list_tenant_ads"
	queryGetAd           = "get_ad"
	queryUpdateAd        = "update_ad"
	queryDeleteAd        = "delete_ad"
)

// Connection describes how to reach the database.
type Connection struct {
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// Path is the sqlite file (or a file: URI for in-memory databases).
	Path string
}

// Dialector returns the gorm dialector for the connection's driver.
func (c Connection) Dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.Username, c.Password, c.Host, c.Port, c.Database)
		return mysql.Open(dsn), nil
	case DriverPostgres:
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			c.Username, c.Password, c.Host, c.Port, c.Database)
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(c.Path), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}
}

// GormStore implements Store on a relational database through gorm.
type GormStore struct {
	db            *gorm.DB
	driver        string
	slowThreshold time.Duration
	maxOpen       int
	maxIdle       int
	connLifetime  time.Duration
	logger        logger.Logger
}

// Open connects to the database described by conn.
func Open(ctx context.Context, conn Connection, opts ...Option) (*GormStore, error) {
	s := &GormStore{
		driver:        conn.Driver,
		slowThreshold: defaultSlowThreshold,
		maxOpen:       defaultMaxOpenConns,
		maxIdle:       defaultMaxIdleConns,
		connLifetime:  defaultConnLifetime,
		logger:        logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	dialector, err := conn.Dialector()
	if err != nil {
		return nil, err
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             s.slowThreshold,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", ErrStoreUnavailable, conn.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if conn.Driver == DriverSQLite {
		// sqlite serializes writers; a single connection also keeps
		// in-memory databases shared across queries.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(s.maxOpen)
		sqlDB.SetMaxIdleConns(s.maxIdle)
		sqlDB.SetConnMaxLifetime(s.connLifetime)
	}

	s.db = db
	s.logger.Info(ctx, "connected to store", logger.String("driver", conn.Driver))
	return s, nil
}

// AutoMigrate creates or updates the ads and events tables.
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&AdRecord{}, &EventRecord{}); err != nil {
		return fmt.Errorf("%w: migrate: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListAds returns the full ad catalog ordered by id.
func (s *GormStore) ListAds(ctx context.Context) ([]model.Ad, error) {
	start := time.Now()
	var rows []AdRecord
	err := s.db.WithContext(ctx).Order("id").Find(&rows).Error
	if err := s.observe(ctx, queryListAds, start, err); err != nil {
		return nil, err
	}

	ads := make([]model.Ad, len(rows))
	for i := range rows {
		ads[i] = rows[i].toModel()
	}
	return ads, nil
}

// ListAllEvents returns every recorded event.
func (s *GormStore) ListAllEvents(ctx context.Context) ([]model.Event, error) {
	start := time.Now()
	var rows []EventRecord
	err := s.db.WithContext(ctx).Find(&rows).Error
	if err := s.observe(ctx, queryListAllEvents, start, err); err != nil {
		return nil, err
	}
	return toEvents(rows), nil
}

// ListEventsForUser returns the user's events, newest first.
func (s *GormStore) ListEventsForUser(ctx context.Context, userID int64) ([]model.Event, error) {
	start := time.Now()
	var rows []EventRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err := s.observe(ctx, queryListUserEvents, start, err); err != nil {
		return nil, err
	}
	return toEvents(rows), nil
}

// ListEventsForTenant returns one tenant's events, or all events when tenantID is nil.
func (s *GormStore) ListEventsForTenant(ctx context.Context, tenantID *int64) ([]model.Event, error) {
	start := time.Now()
	var rows []EventRecord
	q := s.db.WithContext(ctx).Order("occurred_at")
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	err := q.Find(&rows).Error
	if err := s.observe(ctx, queryListTenantEvent, start, err); err != nil {
		return nil, err
	}
	return toEvents(rows), nil
}

// InsertEvent persists one event.
func (s *GormStore) InsertEvent(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: Event is passed by value across layers
	start := time.Now()
	rec := eventRecordFrom(e)
	err := s.db.WithContext(ctx).Create(&rec).Error
	return s.observe(ctx, queryInsertEvent, start, err)
}

// InsertAd persists one ad and returns its id.
func (s *GormStore) InsertAd(ctx context.Context, a model.Ad) (int64, error) { //nolint:gocritic // hugeParam: Ad is passed by value across layers
	start := time.Now()
	rec := adRecordFrom(a)
	err := s.db.WithContext(ctx).Create(&rec).Error
	if err := s.observe(ctx, queryInsertAd, start, err); err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// ListTenantAds returns one page of a tenant's ads ordered by id, along with
// the tenant's total ad count. Pages start at 1.
func (s *GormStore) ListTenantAds(ctx context.Context, tenantID int64, page, perPage int) ([]model.Ad, int64, error) {
	start := time.Now()
	var (
		total int64
		rows  []AdRecord
	)
	q := s.db.WithContext(ctx).Model(&AdRecord{}).Where("tenant_id = ?", tenantID).Session(&gorm.Session{})
	err := q.Count(&total).Error
	if err == nil {
		err = q.Order("id").Offset((page - 1) * perPage).Limit(perPage).Find(&rows).Error
	}
	if err := s.observe(ctx, queryListTenantAds, start, err); err != nil {
		return nil, 0, err
	}

	ads := make([]model.Ad, len(rows))
	for i := range rows {
		ads[i] = rows[i].toModel()
	}
	return ads, total, nil
}

// GetAd returns the tenant's ad with the given id, or model.ErrAdNotFound.
func (s *GormStore) GetAd(ctx context.Context, tenantID, id int64) (model.Ad, error) {
	start := time.Now()
	rec, err := s.findAd(ctx, tenantID, id)
	if errors.Is(err, model.ErrAdNotFound) {
		return model.Ad{}, err
	}
	if err := s.observe(ctx, queryGetAd, start, err); err != nil {
		return model.Ad{}, err
	}
	return rec.toModel(), nil
}

// UpdateAd overwrites the editable fields of an existing ad. The ad is
// matched on both id and tenant.
func (s *GormStore) UpdateAd(ctx context.Context, a model.Ad) (model.Ad, error) { //nolint:gocritic // hugeParam: Ad is passed by value across layers
	start := time.Now()
	rec, err := s.findAd(ctx, a.TenantID, a.ID)
	if errors.Is(err, model.ErrAdNotFound) {
		return model.Ad{}, err
	}
	if err == nil {
		next := adRecordFrom(a)
		rec.Name = next.Name
		rec.Content = next.Content
		rec.StartTime = next.StartTime
		rec.EndTime = next.EndTime
		rec.TargetAudience = next.TargetAudience
		err = s.db.WithContext(ctx).Model(&rec).Select("name", "content", "start_time", "end_time", "target_audience").Updates(&rec).Error
	}
	if err := s.observe(ctx, queryUpdateAd, start, err); err != nil {
		return model.Ad{}, err
	}
	return rec.toModel(), nil
}

// DeleteAd removes the tenant's ad with the given id, or returns
// model.ErrAdNotFound.
func (s *GormStore) DeleteAd(ctx context.Context, tenantID, id int64) error {
	start := time.Now()
	res := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&AdRecord{})
	if err := s.observe(ctx, queryDeleteAd, start, res.Error); err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", model.ErrAdNotFound, id)
	}
	return nil
}

func (s *GormStore) findAd(ctx context.Context, tenantID, id int64) (AdRecord, error) {
	var rec AdRecord
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AdRecord{}, fmt.Errorf("%w: %d", model.ErrAdNotFound, id)
	}
	return rec, err
}

// observe records query latency and wraps failures.
func (s *GormStore) observe(ctx context.Context, query string, start time.Time, err error) error {
	elapsed := time.Since(start)
	metrics.RecordStoreQueryLatency(query, float64(elapsed.Milliseconds()))
	if err == nil {
		return nil
	}
	metrics.RecordStoreError(query)
	metrics.RecordErrorByComponent("store", query)
	s.logger.Error(ctx, "store query failed",
		logger.String("query", query),
		logger.Duration("elapsed", elapsed),
		logger.Error(err),
	)
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, query, err)
}

func toEvents(rows []EventRecord) []model.Event {
	events := make([]model.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].toModel()
	}
	return events
}
