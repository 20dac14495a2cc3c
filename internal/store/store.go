// Package store is the persistence collaborator: row-level CRUD calls that
// succeed or fail independently. No call spans more than one row and no
// transaction is offered to callers.
package store

import (
	"context"
	"errors"

	"github.com/beesaferoot/kost-manager/internal/models"
)

var (
	// ErrNotFound is returned when no row matches the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by conditional writes when the stored
	// row_version no longer matches the expected one.
	ErrVersionConflict = errors.New("row version conflict")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate key")
)

// RoomFilter narrows ListRooms. PropertyID is mandatory.
type RoomFilter struct {
	PropertyID string
	Status     *models.RoomStatus
}

// TenantFilter narrows ListTenants. PropertyID is mandatory.
type TenantFilter struct {
	PropertyID string
	Status     *models.TenantStatus
	Unassigned bool
}

type Store interface {
	ListProperties(ctx context.Context) ([]models.Property, error)
	InsertProperty(ctx context.Context, p *models.Property) error

	ListRooms(ctx context.Context, filter RoomFilter) ([]models.Room, error)
	GetRoom(ctx context.Context, id string) (models.Room, error)
	InsertRoom(ctx context.Context, r *models.Room) error
	// UpdateRoom writes every column of r when the stored row still carries
	// expectedVersion; the returned row holds the bumped version.
	UpdateRoom(ctx context.Context, r models.Room, expectedVersion int64) (models.Room, error)

	ListTenants(ctx context.Context, filter TenantFilter) ([]models.Tenant, error)
	GetTenant(ctx context.Context, id string) (models.Tenant, error)
	InsertTenant(ctx context.Context, t *models.Tenant) error
	UpdateTenant(ctx context.Context, t models.Tenant, expectedVersion int64) (models.Tenant, error)
	DeleteTenant(ctx context.Context, id string, expectedVersion int64) error
}
