// Package tenancy keeps rooms and tenants of the active property consistent.
//
// RoomRegistry and TenantRegistry cache the scoped lists and perform
// single-entity writes. Engine performs the paired room/tenant writes of an
// assignment or release with compensation on partial failure. All three share
// one cache so a paired write is committed under a single lock and observers
// see exactly one snapshot per successful operation.
package tenancy

import (
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/beesaferoot/kost-manager/internal/logging"
	"github.com/beesaferoot/kost-manager/internal/metrics"
	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/store"
)

// Snapshot is an immutable copy of the cached state of one property.
type Snapshot struct {
	PropertyID string
	Rooms      []models.Room
	Tenants    []models.Tenant
}

type Option func(*core)

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *core) { c.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *core) { c.metrics = m }
}

// WithClock overrides the time source used for create defaults.
func WithClock(now func() time.Time) Option {
	return func(c *core) { c.now = now }
}

// Registry bundles the room and tenant registries and the assignment engine
// over one store.
type Registry struct {
	Rooms   *RoomRegistry
	Tenants *TenantRegistry
	Engine  *Engine

	core *core
}

func New(st store.Store, opts ...Option) *Registry {
	c := &core{
		store:    st,
		validate: validator.New(),
		log:      logging.Discard(),
		now:      time.Now,
		rooms:    make(map[string]models.Room),
		tenants:  make(map[string]models.Tenant),
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}

	r := &Registry{core: c}
	r.Rooms = &RoomRegistry{core: c}
	r.Tenants = &TenantRegistry{core: c}
	r.Engine = &Engine{core: c, rooms: r.Rooms, tenants: r.Tenants}
	return r
}

// Subscribe registers fn to receive a snapshot after every committed change.
// The returned func unsubscribes.
func (r *Registry) Subscribe(fn func(Snapshot)) func() {
	return r.core.subscribe(fn)
}

func (r *Registry) Snapshot() Snapshot {
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()
	return r.core.snapshotLocked()
}

type core struct {
	store    store.Store
	validate *validator.Validate
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu      sync.RWMutex
	scope   string
	rooms   map[string]models.Room
	tenants map[string]models.Tenant
	subs    map[int]func(Snapshot)
	nextSub int
}

// change is one batch of cache updates.
type change struct {
	rooms          []models.Room
	tenants        []models.Tenant
	removedTenants []string
}

// commit applies ch when scope is still the cached one and publishes a
// snapshot. Results for a property that is no longer cached are dropped, and
// so is any row older than the cached copy.
func (c *core) commit(scope string, ch change) {
	c.mu.Lock()
	if c.scope == "" {
		c.scope = scope
	}
	if c.scope != scope {
		c.mu.Unlock()
		return
	}
	for _, r := range ch.rooms {
		if cur, ok := c.rooms[r.ID]; ok && cur.RowVersion > r.RowVersion {
			continue
		}
		c.rooms[r.ID] = r.Clone()
	}
	for _, t := range ch.tenants {
		if cur, ok := c.tenants[t.ID]; ok && cur.RowVersion > t.RowVersion {
			continue
		}
		c.tenants[t.ID] = t.Clone()
	}
	for _, id := range ch.removedTenants {
		delete(c.tenants, id)
	}
	c.publishLocked()
}

func (c *core) replaceRooms(scope string, list []models.Room) {
	c.mu.Lock()
	c.switchScopeLocked(scope)
	c.rooms = make(map[string]models.Room, len(list))
	for _, r := range list {
		c.rooms[r.ID] = r.Clone()
	}
	c.publishLocked()
}

func (c *core) replaceTenants(scope string, list []models.Tenant) {
	c.mu.Lock()
	c.switchScopeLocked(scope)
	c.tenants = make(map[string]models.Tenant, len(list))
	for _, t := range list {
		c.tenants[t.ID] = t.Clone()
	}
	c.publishLocked()
}

func (c *core) switchScopeLocked(scope string) {
	if c.scope == scope {
		return
	}
	c.scope = scope
	c.rooms = make(map[string]models.Room)
	c.tenants = make(map[string]models.Tenant)
}

// publishLocked releases the lock and notifies subscribers.
func (c *core) publishLocked() {
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *core) snapshotLocked() Snapshot {
	return Snapshot{
		PropertyID: c.scope,
		Rooms:      sortedRooms(c.rooms, nil),
		Tenants:    sortedTenants(c.tenants, nil),
	}
}

func (c *core) subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *core) today() time.Time {
	now := c.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (c *core) record(op string, err error) {
	c.metrics.RecordOperation(op, outcome(err))
}

func sortedRooms(m map[string]models.Room, keep func(models.Room) bool) []models.Room {
	out := make([]models.Room, 0, len(m))
	for _, r := range m {
		if keep == nil || keep(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedTenants(m map[string]models.Tenant, keep func(models.Tenant) bool) []models.Tenant {
	out := make([]models.Tenant, 0, len(m))
	for _, t := range m {
		if keep == nil || keep(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
