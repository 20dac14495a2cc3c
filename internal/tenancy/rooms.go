package tenancy

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/beesaferoot/kost-manager/internal/apperrors"
	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/property"
	"github.com/beesaferoot/kost-manager/internal/store"
)

// RoomDraft carries a room create or edit. Nil fields are left unchanged on
// edit; ID empty means create.
type RoomDraft struct {
	ID         string
	Number     *string            `validate:"omitnil,min=1,max=32"`
	Floor      *string            `validate:"omitnil,max=32"`
	Type       *models.RoomType   `validate:"omitnil,oneof=single double deluxe"`
	Price      *int64             `validate:"omitnil,gt=0"`
	Facilities []string           `validate:"omitempty,dive,max=64"`
	Status     *models.RoomStatus `validate:"omitnil,oneof=vacant occupied maintenance"`
}

// RoomFilter narrows the cached room list. Query matches the room number or
// floor, case-insensitively.
type RoomFilter struct {
	Status *models.RoomStatus
	Query  string
}

type RoomRegistry struct {
	core *core
}

// List reads the rooms of scope and replaces the cache with them.
func (r *RoomRegistry) List(ctx context.Context, scope property.Scope) ([]models.Room, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rooms, err := r.core.store.ListRooms(ctx, store.RoomFilter{PropertyID: scope.PropertyID})
	if err != nil {
		return nil, &apperrors.RemoteError{Op: "list rooms", Err: err}
	}
	r.core.replaceRooms(scope.PropertyID, rooms)
	return rooms, nil
}

// ListVacant reads the vacant rooms of scope and refreshes them in the cache.
func (r *RoomRegistry) ListVacant(ctx context.Context, scope property.Scope) ([]models.Room, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	vacant := models.RoomVacant
	rooms, err := r.core.store.ListRooms(ctx, store.RoomFilter{PropertyID: scope.PropertyID, Status: &vacant})
	if err != nil {
		return nil, &apperrors.RemoteError{Op: "list vacant rooms", Err: err}
	}
	r.core.commit(scope.PropertyID, change{rooms: rooms})
	return rooms, nil
}

// Upsert creates a room when draft.ID is empty and edits it otherwise.
func (r *RoomRegistry) Upsert(ctx context.Context, scope property.Scope, draft RoomDraft) (room models.Room, err error) {
	op := "room_update"
	if draft.ID == "" {
		op = "room_create"
	}
	defer func() { r.core.record(op, err) }()

	if err := scope.Validate(); err != nil {
		return models.Room{}, err
	}
	if err := r.core.validate.StructCtx(ctx, draft); err != nil {
		return models.Room{}, apperrors.FromValidator(apperrors.EntityRoom, err)
	}
	if draft.ID == "" {
		return r.create(ctx, scope, draft)
	}
	return r.update(ctx, scope, draft)
}

func (r *RoomRegistry) create(ctx context.Context, scope property.Scope, draft RoomDraft) (models.Room, error) {
	room := models.Room{
		ID:         uuid.NewString(),
		PropertyID: scope.PropertyID,
		Type:       models.RoomTypeSingle,
		Facilities: models.Facilities{},
		Status:     models.RoomVacant,
		RowVersion: 1,
	}
	applyRoomDraft(&room, draft)
	if room.Status == models.RoomOccupied {
		return models.Room{}, apperrors.Invalid(apperrors.EntityRoom, "status", "status occupied requires an assigned tenant")
	}
	if err := r.core.validate.Struct(room); err != nil {
		return models.Room{}, apperrors.FromValidator(apperrors.EntityRoom, err)
	}

	if err := r.core.store.InsertRoom(ctx, &room); err != nil {
		return models.Room{}, translate("insert room", apperrors.EntityRoom, room.Number, err)
	}
	r.core.commit(scope.PropertyID, change{rooms: []models.Room{room}})
	r.core.log.WithFields(logrus.Fields{"room_id": room.ID, "number": room.Number}).Info("room created")
	return room.Clone(), nil
}

func (r *RoomRegistry) update(ctx context.Context, scope property.Scope, draft RoomDraft) (models.Room, error) {
	cur, err := r.fresh(ctx, scope, draft.ID)
	if err != nil {
		return models.Room{}, err
	}

	next := cur.Clone()
	applyRoomDraft(&next, draft)
	if next.Status != cur.Status {
		if err := checkStatusChange(cur, next.Status); err != nil {
			return models.Room{}, err
		}
	}
	if err := r.core.validate.Struct(next); err != nil {
		return models.Room{}, apperrors.FromValidator(apperrors.EntityRoom, err)
	}

	saved, err := r.core.store.UpdateRoom(ctx, next, cur.RowVersion)
	if err != nil {
		return models.Room{}, translate("update room", apperrors.EntityRoom, cur.ID, err)
	}
	r.core.commit(scope.PropertyID, change{rooms: []models.Room{saved}})
	r.core.log.WithField("room_id", saved.ID).Info("room updated")
	return saved, nil
}

// UpdateStatus performs a single-entity status write. Occupancy and tenant
// links change only through the Engine.
func (r *RoomRegistry) UpdateStatus(ctx context.Context, scope property.Scope, roomID string, status models.RoomStatus, tenantID *string) (room models.Room, err error) {
	defer func() { r.core.record("room_status", err) }()

	if err := scope.Validate(); err != nil {
		return models.Room{}, err
	}
	if err := r.core.validate.Var(status, "oneof=vacant occupied maintenance"); err != nil {
		return models.Room{}, apperrors.Invalid(apperrors.EntityRoom, "status", "status must be one of [vacant occupied maintenance]")
	}
	if tenantID != nil {
		return models.Room{}, apperrors.Conflict(apperrors.EntityRoom, roomID, "tenant links are set by assignment")
	}

	cur, err := r.fresh(ctx, scope, roomID)
	if err != nil {
		return models.Room{}, err
	}
	if cur.Status == status {
		return cur, nil
	}
	if err := checkStatusChange(cur, status); err != nil {
		return models.Room{}, err
	}

	next := cur.Clone()
	next.Status = status
	if err := checkRoomRow(next); err != nil {
		return models.Room{}, err
	}

	saved, err := r.core.store.UpdateRoom(ctx, next, cur.RowVersion)
	if err != nil {
		return models.Room{}, translate("update room status", apperrors.EntityRoom, roomID, err)
	}
	r.core.commit(scope.PropertyID, change{rooms: []models.Room{saved}})
	r.core.log.WithFields(logrus.Fields{"room_id": roomID, "status": status}).Info("room status changed")
	return saved, nil
}

// Rooms returns the cached rooms ordered by number.
func (r *RoomRegistry) Rooms() []models.Room {
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()
	return sortedRooms(r.core.rooms, nil)
}

// AvailableRooms returns the cached vacant rooms.
func (r *RoomRegistry) AvailableRooms() []models.Room {
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()
	return sortedRooms(r.core.rooms, func(room models.Room) bool { return room.Status == models.RoomVacant })
}

func (r *RoomRegistry) Room(id string) (models.Room, bool) {
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()
	room, ok := r.core.rooms[id]
	return room.Clone(), ok
}

func (r *RoomRegistry) Filter(f RoomFilter) []models.Room {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()
	return sortedRooms(r.core.rooms, func(room models.Room) bool {
		if f.Status != nil && room.Status != *f.Status {
			return false
		}
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(room.Number), q) ||
			strings.Contains(strings.ToLower(room.Floor), q)
	})
}

// fresh reads a room from the store and checks it belongs to scope.
func (r *RoomRegistry) fresh(ctx context.Context, scope property.Scope, id string) (models.Room, error) {
	room, err := r.core.store.GetRoom(ctx, id)
	if err != nil {
		return models.Room{}, translate("get room", apperrors.EntityRoom, id, err)
	}
	if room.PropertyID != scope.PropertyID {
		return models.Room{}, &apperrors.NotFoundError{Entity: apperrors.EntityRoom, ID: id}
	}
	return room, nil
}

func applyRoomDraft(room *models.Room, d RoomDraft) {
	if d.Number != nil {
		room.Number = strings.TrimSpace(*d.Number)
	}
	if d.Floor != nil {
		room.Floor = strings.TrimSpace(*d.Floor)
	}
	if d.Type != nil {
		room.Type = *d.Type
	}
	if d.Price != nil {
		room.Price = *d.Price
	}
	if d.Facilities != nil {
		room.Facilities = models.NewFacilities(d.Facilities...)
	}
	if d.Status != nil {
		room.Status = *d.Status
	}
}

// checkStatusChange rejects status moves that bypass the Engine.
func checkStatusChange(cur models.Room, to models.RoomStatus) error {
	switch {
	case cur.Status == models.RoomOccupied:
		return apperrors.Conflict(apperrors.EntityRoom, cur.ID, "room is occupied, release it first")
	case to == models.RoomOccupied:
		return apperrors.Conflict(apperrors.EntityRoom, cur.ID, "rooms become occupied only through assignment")
	case to == models.RoomMaintenance && cur.Status != models.RoomVacant:
		return apperrors.Conflict(apperrors.EntityRoom, cur.ID, "maintenance can only be entered from vacant")
	}
	return nil
}

// checkRoomRow enforces that a room is occupied exactly when it has a tenant.
func checkRoomRow(room models.Room) error {
	if (room.Status == models.RoomOccupied) != room.HasTenant() {
		return apperrors.Invalid(apperrors.EntityRoom, "tenant_id", "tenant_id must be set exactly when the room is occupied")
	}
	return nil
}
