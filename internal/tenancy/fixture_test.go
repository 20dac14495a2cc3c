package tenancy_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beesaferoot/kost-manager/internal/metrics"
	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/property"
	"github.com/beesaferoot/kost-manager/internal/store"
	"github.com/beesaferoot/kost-manager/internal/store/memstore"
	"github.com/beesaferoot/kost-manager/internal/tenancy"
)

var (
	scope      = property.Scope{PropertyID: "p1"}
	noScope    = property.Scope{}
	fixedNow   = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	fixedToday = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	st      *memstore.Store
	reg     *tenancy.Registry
	metrics *metrics.Metrics
}

func ptr[T any](v T) *T { return &v }

func seedRoom(id, number string) models.Room {
	return models.Room{
		ID:         id,
		PropertyID: "p1",
		Number:     number,
		Floor:      "1",
		Type:       models.RoomTypeSingle,
		Price:      1500000,
		Facilities: models.NewFacilities("AC", "WiFi"),
		Status:     models.RoomVacant,
	}
}

func seedTenant(id, name string) models.Tenant {
	return models.Tenant{
		ID:              id,
		PropertyID:      "p1",
		Name:            name,
		Phone:           "081234567890",
		StartDate:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:          models.TenantActive,
		PaymentStatus:   models.PaymentPaid,
		LastPaymentDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

// newFixture seeds property p1 with vacant rooms r101 and r102, and the
// unassigned active tenants Ani and Budi, then loads both registries.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memstore.New()
	st.PutProperty(models.Property{ID: "p1", Name: "Kost Melati"})
	st.PutProperty(models.Property{ID: "p2", Name: "Kost Mawar"})
	st.PutRoom(seedRoom("r101", "R101"))
	st.PutRoom(seedRoom("r102", "R102"))
	st.PutTenant(seedTenant("ani", "Ani"))
	st.PutTenant(seedTenant("budi", "Budi"))

	other := seedRoom("r201", "R201")
	other.PropertyID = "p2"
	st.PutRoom(other)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	reg := tenancy.New(st,
		tenancy.WithMetrics(m),
		tenancy.WithClock(func() time.Time { return fixedNow }),
	)

	ctx := context.Background()
	_, err := reg.Rooms.List(ctx, scope)
	require.NoError(t, err)
	_, err = reg.Tenants.List(ctx, scope)
	require.NoError(t, err)

	st.ResetCalls()
	return &fixture{st: st, reg: reg, metrics: m}
}

// occupy assigns through the engine and forgets the recorded calls.
func (f *fixture) occupy(t *testing.T, roomID, tenantID string) {
	t.Helper()
	_, err := f.reg.Engine.Assign(context.Background(), scope, roomID, tenantID)
	require.NoError(t, err)
	f.st.ResetCalls()
}

func (f *fixture) room(t *testing.T, id string) models.Room {
	t.Helper()
	r, ok := f.st.Room(id)
	require.True(t, ok, "room %s missing", id)
	return r
}

func (f *fixture) tenant(t *testing.T, id string) models.Tenant {
	t.Helper()
	tn, ok := f.st.Tenant(id)
	require.True(t, ok, "tenant %s missing", id)
	return tn
}

func (f *fixture) writes() int {
	return f.st.CallCount(memstore.OpUpdateRoom) +
		f.st.CallCount(memstore.OpUpdateTenant) +
		f.st.CallCount(memstore.OpInsertRoom) +
		f.st.CallCount(memstore.OpInsertTenant) +
		f.st.CallCount(memstore.OpDeleteTenant)
}

// assertConsistent checks the stored rooms and tenants point at each other.
func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	rooms, err := f.st.ListRooms(ctx, store.RoomFilter{PropertyID: "p1"})
	require.NoError(t, err)
	tenants, err := f.st.ListTenants(ctx, store.TenantFilter{PropertyID: "p1"})
	require.NoError(t, err)

	byID := make(map[string]models.Tenant, len(tenants))
	for _, tn := range tenants {
		byID[tn.ID] = tn
	}
	for _, r := range rooms {
		if r.Status != models.RoomOccupied {
			assert.False(t, r.HasTenant(), "room %s is %s but has a tenant", r.ID, r.Status)
			continue
		}
		require.True(t, r.HasTenant(), "room %s occupied without tenant", r.ID)
		tn, ok := byID[*r.TenantID]
		require.True(t, ok, "room %s links to missing tenant", r.ID)
		require.True(t, tn.HasRoom(), "tenant %s does not link back to %s", tn.ID, r.ID)
		assert.Equal(t, r.ID, *tn.RoomID)
	}

	roomsByID := make(map[string]models.Room, len(rooms))
	for _, r := range rooms {
		roomsByID[r.ID] = r
	}
	for _, tn := range tenants {
		if !tn.HasRoom() {
			continue
		}
		r, ok := roomsByID[*tn.RoomID]
		require.True(t, ok, "tenant %s links to missing room", tn.ID)
		require.True(t, r.HasTenant(), "room %s does not link back to %s", r.ID, tn.ID)
		assert.Equal(t, tn.ID, *r.TenantID)
	}
}
