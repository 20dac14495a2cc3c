// Package memstore is an in-process store.Store. Besides backing the
// "memory" driver it lets tests inject per-call failures and interleave
// concurrent writers through hooks.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/store"
)

// Op names one store call.
type Op string

const (
	OpListProperties Op = "ListProperties"
	OpInsertProperty Op = "InsertProperty"
	OpListRooms      Op = "ListRooms"
	OpGetRoom        Op = "GetRoom"
	OpInsertRoom     Op = "InsertRoom"
	OpUpdateRoom     Op = "UpdateRoom"
	OpListTenants    Op = "ListTenants"
	OpGetTenant      Op = "GetTenant"
	OpInsertTenant   Op = "InsertTenant"
	OpUpdateTenant   Op = "UpdateTenant"
	OpDeleteTenant   Op = "DeleteTenant"
)

// Call records one invocation.
type Call struct {
	Op Op
	ID string
}

// FaultFunc decides whether a call fails. Returning nil lets it through.
type FaultFunc func(op Op, id string) error

// Store is a goroutine-safe map-backed store.Store.
type Store struct {
	mu         sync.Mutex
	properties map[string]models.Property
	rooms      map[string]models.Room
	tenants    map[string]models.Tenant
	calls      []Call
	faults     []FaultFunc
	before     map[Op]func(id string)
	nowFn      func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		properties: make(map[string]models.Property),
		rooms:      make(map[string]models.Room),
		tenants:    make(map[string]models.Tenant),
		before:     make(map[Op]func(string)),
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// FailWhen installs a fault. Faults are consulted in order, first non-nil wins.
func (s *Store) FailWhen(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fn)
}

// FailOnce makes the next call of op on id (any id when empty) return err.
func (s *Store) FailOnce(op Op, id string, err error) {
	var fired bool
	s.FailWhen(func(o Op, got string) error {
		if fired || o != op || (id != "" && got != id) {
			return nil
		}
		fired = true
		return err
	})
}

// FailAlways makes every call of op on id (any id when empty) return err.
func (s *Store) FailAlways(op Op, id string, err error) {
	s.FailWhen(func(o Op, got string) error {
		if o == op && (id == "" || got == id) {
			return err
		}
		return nil
	})
}

// ClearFaults removes every installed fault.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// Before runs fn (outside the store lock) right before op executes.
func (s *Store) Before(op Op, fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.before[op] = fn
}

// Calls returns every call recorded so far.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns the number of recorded calls of op.
func (s *Store) CallCount(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls forgets recorded calls.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// enter records the call, runs the hook and returns with the lock held unless
// a fault fired.
func (s *Store) enter(op Op, id string) error {
	s.mu.Lock()
	hook := s.before[op]
	s.mu.Unlock()
	if hook != nil {
		hook(id)
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Op: op, ID: id})
	for _, fault := range s.faults {
		if err := fault(op, id); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	return nil
}

func (s *Store) ListProperties(_ context.Context) ([]models.Property, error) {
	if err := s.enter(OpListProperties, ""); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := make([]models.Property, 0, len(s.properties))
	for _, p := range s.properties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) InsertProperty(_ context.Context, p *models.Property) error {
	if err := s.enter(OpInsertProperty, p.ID); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.properties[p.ID]; ok {
		return store.ErrDuplicate
	}
	now := s.nowFn()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.properties[p.ID] = *p
	return nil
}

func (s *Store) ListRooms(_ context.Context, filter store.RoomFilter) ([]models.Room, error) {
	if err := s.enter(OpListRooms, filter.PropertyID); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var out []models.Room
	for _, r := range s.rooms {
		if r.PropertyID != filter.PropertyID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) GetRoom(_ context.Context, id string) (models.Room, error) {
	if err := s.enter(OpGetRoom, id); err != nil {
		return models.Room{}, err
	}
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return models.Room{}, store.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) InsertRoom(_ context.Context, r *models.Room) error {
	if err := s.enter(OpInsertRoom, r.ID); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.rooms[r.ID]; ok {
		return store.ErrDuplicate
	}
	for _, other := range s.rooms {
		if other.PropertyID == r.PropertyID && other.Number == r.Number {
			return store.ErrDuplicate
		}
	}
	now := s.nowFn()
	r.RowVersion = 1
	r.CreatedAt, r.UpdatedAt = now, now
	s.rooms[r.ID] = r.Clone()
	return nil
}

func (s *Store) UpdateRoom(_ context.Context, r models.Room, expectedVersion int64) (models.Room, error) {
	if err := s.enter(OpUpdateRoom, r.ID); err != nil {
		return models.Room{}, err
	}
	defer s.mu.Unlock()
	cur, ok := s.rooms[r.ID]
	if !ok {
		return models.Room{}, store.ErrNotFound
	}
	if cur.RowVersion != expectedVersion {
		return models.Room{}, store.ErrVersionConflict
	}
	if r.HasTenant() {
		for id, other := range s.rooms {
			if id != r.ID && other.HasTenant() && *other.TenantID == *r.TenantID {
				return models.Room{}, store.ErrDuplicate
			}
		}
	}
	r.PropertyID = cur.PropertyID
	r.CreatedAt = cur.CreatedAt
	r.RowVersion = expectedVersion + 1
	r.UpdatedAt = s.nowFn()
	s.rooms[r.ID] = r.Clone()
	return r.Clone(), nil
}

func (s *Store) ListTenants(_ context.Context, filter store.TenantFilter) ([]models.Tenant, error) {
	if err := s.enter(OpListTenants, filter.PropertyID); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var out []models.Tenant
	for _, t := range s.tenants {
		if t.PropertyID != filter.PropertyID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Unassigned && t.HasRoom() {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetTenant(_ context.Context, id string) (models.Tenant, error) {
	if err := s.enter(OpGetTenant, id); err != nil {
		return models.Tenant{}, err
	}
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return models.Tenant{}, store.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Store) InsertTenant(_ context.Context, t *models.Tenant) error {
	if err := s.enter(OpInsertTenant, t.ID); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; ok {
		return store.ErrDuplicate
	}
	now := s.nowFn()
	t.RowVersion = 1
	t.CreatedAt, t.UpdatedAt = now, now
	s.tenants[t.ID] = t.Clone()
	return nil
}

func (s *Store) UpdateTenant(_ context.Context, t models.Tenant, expectedVersion int64) (models.Tenant, error) {
	if err := s.enter(OpUpdateTenant, t.ID); err != nil {
		return models.Tenant{}, err
	}
	defer s.mu.Unlock()
	cur, ok := s.tenants[t.ID]
	if !ok {
		return models.Tenant{}, store.ErrNotFound
	}
	if cur.RowVersion != expectedVersion {
		return models.Tenant{}, store.ErrVersionConflict
	}
	if t.HasRoom() {
		for id, other := range s.tenants {
			if id != t.ID && other.HasRoom() && *other.RoomID == *t.RoomID {
				return models.Tenant{}, store.ErrDuplicate
			}
		}
	}
	t.PropertyID = cur.PropertyID
	t.CreatedAt = cur.CreatedAt
	t.RowVersion = expectedVersion + 1
	t.UpdatedAt = s.nowFn()
	s.tenants[t.ID] = t.Clone()
	return t.Clone(), nil
}

func (s *Store) DeleteTenant(_ context.Context, id string, expectedVersion int64) error {
	if err := s.enter(OpDeleteTenant, id); err != nil {
		return err
	}
	defer s.mu.Unlock()
	cur, ok := s.tenants[id]
	if !ok {
		return store.ErrNotFound
	}
	if cur.RowVersion != expectedVersion {
		return store.ErrVersionConflict
	}
	delete(s.tenants, id)
	return nil
}

// PutRoom stores r as-is, bypassing faults and version checks. For seeding.
func (s *Store) PutRoom(r models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.RowVersion == 0 {
		r.RowVersion = 1
	}
	s.rooms[r.ID] = r.Clone()
}

// PutTenant stores t as-is, bypassing faults and version checks. For seeding.
func (s *Store) PutTenant(t models.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.RowVersion == 0 {
		t.RowVersion = 1
	}
	s.tenants[t.ID] = t.Clone()
}

// PutProperty stores p as-is. For seeding.
func (s *Store) PutProperty(p models.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.ID] = p
}

// Room returns the stored room without recording a call.
func (s *Store) Room(id string) (models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r.Clone(), ok
}

// Tenant returns the stored tenant without recording a call.
func (s *Store) Tenant(id string) (models.Tenant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	return t.Clone(), ok
}
