package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/store"
	"github.com/beesaferoot/kost-manager/migration"
	"github.com/beesaferoot/kost-manager/migration/driver"
	_ "github.com/beesaferoot/kost-manager/migration/versions"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = driver.NewMigrator(db, migration.GetRegisteredMigrations()...).Up(context.Background())
	require.NoError(t, err)
	return db
}

func seed(t *testing.T, s *store.GormStore) (models.Property, models.Room, models.Tenant) {
	t.Helper()
	ctx := context.Background()

	p := models.Property{ID: "p1", Name: "Kost Melati", Address: "Jl. Kenanga 5"}
	require.NoError(t, s.InsertProperty(ctx, &p))

	r := models.Room{
		ID: "r101", PropertyID: p.ID, Number: "101", Floor: "1", Type: models.RoomTypeSingle,
		Price: 1500000, Facilities: models.NewFacilities("AC", "WiFi"), Status: models.RoomVacant,
	}
	require.NoError(t, s.InsertRoom(ctx, &r))

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tn := models.Tenant{
		ID: "t1", PropertyID: p.ID, Name: "Ani", Phone: "0812", Email: "ani@example.com",
		StartDate: start, EndDate: start.AddDate(1, 0, 0), Status: models.TenantActive,
		PaymentStatus: models.PaymentPending, LastPaymentDate: start,
	}
	require.NoError(t, s.InsertTenant(ctx, &tn))
	return p, r, tn
}

func TestGormStore_RoundTrip(t *testing.T) {
	s := store.NewGormStore(setupTestDB(t))
	ctx := context.Background()
	p, r, tn := seed(t, s)

	props, err := s.ListProperties(ctx)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "Kost Melati", props[0].Name)

	got, err := s.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Facilities{"AC", "WiFi"}, got.Facilities)
	assert.Equal(t, int64(1), got.RowVersion)
	assert.Nil(t, got.TenantID)

	vacant := models.RoomVacant
	rooms, err := s.ListRooms(ctx, store.RoomFilter{PropertyID: p.ID, Status: &vacant})
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	gotTenant, err := s.GetTenant(ctx, tn.ID)
	require.NoError(t, err)
	assert.True(t, gotTenant.StartDate.Equal(tn.StartDate))

	unassigned, err := s.ListTenants(ctx, store.TenantFilter{PropertyID: p.ID, Unassigned: true})
	require.NoError(t, err)
	assert.Len(t, unassigned, 1)
}

func TestGormStore_ConditionalUpdate(t *testing.T) {
	s := store.NewGormStore(setupTestDB(t))
	ctx := context.Background()
	_, r, tn := seed(t, s)

	r.Status = models.RoomOccupied
	r.TenantID = &tn.ID
	updated, err := s.UpdateRoom(ctx, r, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.RowVersion)

	stale := r
	stale.Status = models.RoomVacant
	stale.TenantID = nil
	_, err = s.UpdateRoom(ctx, stale, 1)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	stored, err := s.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomOccupied, stored.Status)
	require.NotNil(t, stored.TenantID)
	assert.Equal(t, tn.ID, *stored.TenantID)

	_, err = s.UpdateRoom(ctx, models.Room{ID: "missing"}, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGormStore_UpdateAndDeleteTenant(t *testing.T) {
	s := store.NewGormStore(setupTestDB(t))
	ctx := context.Background()
	_, r, tn := seed(t, s)

	tn.RoomID = &r.ID
	updated, err := s.UpdateTenant(ctx, tn, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.RowVersion)

	err = s.DeleteTenant(ctx, tn.ID, 1)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	require.NoError(t, s.DeleteTenant(ctx, tn.ID, 2))
	_, err = s.GetTenant(ctx, tn.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.DeleteTenant(ctx, tn.ID, 2)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGormStore_UniqueRoomLink(t *testing.T) {
	s := store.NewGormStore(setupTestDB(t))
	ctx := context.Background()
	p, r, tn := seed(t, s)

	tn.RoomID = &r.ID
	_, err := s.UpdateTenant(ctx, tn, 1)
	require.NoError(t, err)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	other := models.Tenant{
		ID: "t2", PropertyID: p.ID, Name: "Budi", Phone: "0813", RoomID: &r.ID,
		StartDate: start, EndDate: start, Status: models.TenantActive, PaymentStatus: models.PaymentPaid,
	}
	assert.Error(t, s.InsertTenant(ctx, &other), "two tenants cannot reference the same room")
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := store.Open("oracle", "")
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = store.Open("postgres", "")
	assert.ErrorContains(t, err, "DATABASE_URL not set")
}
