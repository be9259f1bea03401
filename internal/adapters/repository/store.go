// Package repository provides access to ads and interaction events held in
// the relational store.
package repository

import (
	"context"

	"github.com/okian/adrec/internal/domain/model"
)

// Store provides read/write access to ads and events.
type Store interface {
	// ListAds returns the full ad catalog.
	ListAds(ctx context.Context) ([]model.Ad, error)
	// ListAllEvents returns every recorded event.
	ListAllEvents(ctx context.Context) ([]model.Event, error)
	// ListEventsForUser returns the user's events ordered by occurrence, newest first.
	ListEventsForUser(ctx context.Context, userID int64) ([]model.Event, error)
	// ListEventsForTenant returns a tenant's events; nil selects all tenants.
	ListEventsForTenant(ctx context.Context, tenantID *int64) ([]model.Event, error)
	// InsertEvent persists one event.
	InsertEvent(ctx context.Context, e model.Event) error
	AdStore
}

// AdStore manages a tenant's ads. Lookups by id match the tenant too and
// report model.ErrAdNotFound otherwise.
type AdStore interface {
	ListTenantAds(ctx context.Context, tenantID int64, page, perPage int) ([]model.Ad, int64, error)
	GetAd(ctx context.Context, tenantID, id int64) (model.Ad, error)
	InsertAd(ctx context.Context, a model.Ad) (int64, error)
	UpdateAd(ctx context.Context, a model.Ad) (model.Ad, error)
	DeleteAd(ctx context.Context, tenantID, id int64) error
}
