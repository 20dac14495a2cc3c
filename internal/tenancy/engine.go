package tenancy

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/beesaferoot/kost-manager/internal/apperrors"
	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/property"
	"github.com/beesaferoot/kost-manager/internal/store"
)

// Assignment is the state of both sides after a paired write.
type Assignment struct {
	Room   models.Room
	Tenant models.Tenant
}

// ReconcileResult lists the records a Reconcile call rewrote.
type ReconcileResult struct {
	Room     models.Room
	Repaired []apperrors.Ref
}

// Engine owns the room/tenant link. Every paired write reads both sides
// fresh, writes the room first and the tenant second, each conditional on the
// version just read. When the tenant write fails the room write is undone.
type Engine struct {
	core    *core
	rooms   *RoomRegistry
	tenants *TenantRegistry
}

// Assign links a vacant room and an active tenant without a room.
func (e *Engine) Assign(ctx context.Context, scope property.Scope, roomID, tenantID string) (a Assignment, err error) {
	defer func() { e.core.record("assign", err) }()

	if err := scope.Validate(); err != nil {
		return Assignment{}, err
	}
	return e.assign(ctx, scope, roomID, tenantID)
}

func (e *Engine) assign(ctx context.Context, scope property.Scope, roomID, tenantID string) (Assignment, error) {
	room, err := e.rooms.fresh(ctx, scope, roomID)
	if err != nil {
		return Assignment{}, err
	}
	tenant, err := e.tenants.fresh(ctx, scope, tenantID)
	if err != nil {
		return Assignment{}, err
	}
	if room.Status != models.RoomVacant {
		return Assignment{}, apperrors.Conflict(apperrors.EntityRoom, roomID, "room is "+string(room.Status))
	}
	if tenant.Status != models.TenantActive {
		return Assignment{}, apperrors.Conflict(apperrors.EntityTenant, tenantID, "tenant is not active")
	}
	if tenant.HasRoom() {
		return Assignment{}, apperrors.Conflict(apperrors.EntityTenant, tenantID, "tenant already holds room "+*tenant.RoomID)
	}

	log := e.core.log.WithFields(logrus.Fields{"op": "assign", "room_id": roomID, "tenant_id": tenantID})

	nextRoom := room.Clone()
	nextRoom.Status = models.RoomOccupied
	nextRoom.TenantID = &tenantID
	savedRoom, err := e.core.store.UpdateRoom(ctx, nextRoom, room.RowVersion)
	if err != nil {
		return Assignment{}, translate("occupy room", apperrors.EntityRoom, roomID, err)
	}

	nextTenant := tenant.Clone()
	nextTenant.RoomID = &roomID
	savedTenant, err := e.core.store.UpdateTenant(ctx, nextTenant, tenant.RowVersion)
	if err != nil {
		cause := translate("link tenant", apperrors.EntityTenant, tenantID, err)
		return Assignment{}, e.compensate(ctx, log, "assign", savedRoom, room,
			apperrors.Ref{Entity: apperrors.EntityTenant, ID: tenantID}, cause)
	}

	e.core.commit(scope.PropertyID, change{
		rooms:   []models.Room{savedRoom},
		tenants: []models.Tenant{savedTenant},
	})
	log.Info("room assigned")
	return Assignment{Room: savedRoom.Clone(), Tenant: savedTenant.Clone()}, nil
}

// Release vacates an occupied room and unlinks its tenant.
func (e *Engine) Release(ctx context.Context, scope property.Scope, roomID string) (a Assignment, err error) {
	defer func() { e.core.record("release", err) }()

	if err := scope.Validate(); err != nil {
		return Assignment{}, err
	}
	return e.release(ctx, scope, roomID)
}

func (e *Engine) release(ctx context.Context, scope property.Scope, roomID string) (Assignment, error) {
	room, err := e.rooms.fresh(ctx, scope, roomID)
	if err != nil {
		return Assignment{}, err
	}
	if room.Status != models.RoomOccupied || !room.HasTenant() {
		return Assignment{}, apperrors.Conflict(apperrors.EntityRoom, roomID, "room is "+string(room.Status))
	}
	tenantID := *room.TenantID
	tenant, err := e.tenants.fresh(ctx, scope, tenantID)
	var nf *apperrors.NotFoundError
	if errors.As(err, &nf) {
		return Assignment{}, apperrors.Conflict(apperrors.EntityRoom, roomID, "linked tenant "+tenantID+" does not exist, reconcile the room")
	}
	if err != nil {
		return Assignment{}, err
	}
	if !tenant.HasRoom() || *tenant.RoomID != roomID {
		return Assignment{}, apperrors.Conflict(apperrors.EntityRoom, roomID, "tenant "+tenantID+" does not link back, reconcile the room")
	}

	log := e.core.log.WithFields(logrus.Fields{"op": "release", "room_id": roomID, "tenant_id": tenantID})

	nextRoom := room.Clone()
	nextRoom.Status = models.RoomVacant
	nextRoom.TenantID = nil
	savedRoom, err := e.core.store.UpdateRoom(ctx, nextRoom, room.RowVersion)
	if err != nil {
		return Assignment{}, translate("vacate room", apperrors.EntityRoom, roomID, err)
	}

	nextTenant := tenant.Clone()
	nextTenant.RoomID = nil
	savedTenant, err := e.core.store.UpdateTenant(ctx, nextTenant, tenant.RowVersion)
	if err != nil {
		cause := translate("unlink tenant", apperrors.EntityTenant, tenantID, err)
		return Assignment{}, e.compensate(ctx, log, "release", savedRoom, room,
			apperrors.Ref{Entity: apperrors.EntityTenant, ID: tenantID}, cause)
	}

	e.core.commit(scope.PropertyID, change{
		rooms:   []models.Room{savedRoom},
		tenants: []models.Tenant{savedTenant},
	})
	log.Info("room released")
	return Assignment{Room: savedRoom.Clone(), Tenant: savedTenant.Clone()}, nil
}

// compensate writes original back over written after the second half of a
// paired write failed.
func (e *Engine) compensate(ctx context.Context, log logrus.FieldLogger, op string, written, original models.Room, failed apperrors.Ref, cause error) error {
	log.WithError(cause).Warn("tenant write failed, rolling back room")

	pf := &apperrors.PartialFailureError{Op: op, FailedSide: failed, Cause: cause}
	_, err := e.core.store.UpdateRoom(context.WithoutCancel(ctx), original, written.RowVersion)
	if err == nil {
		pf.Compensated = true
		e.core.metrics.RecordCompensation(op, true)
		log.Warn("room rolled back")
		return pf
	}

	pf.Provisional = &apperrors.Ref{Entity: apperrors.EntityRoom, ID: original.ID}
	pf.CompensationErr = translate("roll back room", apperrors.EntityRoom, original.ID, err)
	e.core.metrics.RecordCompensation(op, false)
	log.WithError(err).Error("room rollback failed, room left provisional")
	return pf
}

// CreateTenantWithRoom creates a tenant and assigns roomID to it. When the
// assignment fails the new tenant is kept and returned with a StepError.
func (e *Engine) CreateTenantWithRoom(ctx context.Context, scope property.Scope, draft TenantDraft, roomID string) (t models.Tenant, err error) {
	defer func() { e.core.record("create_tenant_with_room", err) }()

	if err := scope.Validate(); err != nil {
		return models.Tenant{}, err
	}
	if draft.Status != nil && *draft.Status != models.TenantActive {
		return models.Tenant{}, apperrors.Invalid(apperrors.EntityTenant, "status", "a tenant created with a room must be active")
	}
	draft.ID = ""
	if err := e.tenants.validateDraft(draft); err != nil {
		return models.Tenant{}, err
	}
	tenant, err := e.tenants.build(scope, draft)
	if err != nil {
		return models.Tenant{}, err
	}

	room, err := e.rooms.fresh(ctx, scope, roomID)
	if err != nil {
		return models.Tenant{}, err
	}
	if room.Status != models.RoomVacant {
		return models.Tenant{}, apperrors.Conflict(apperrors.EntityRoom, roomID, "room is "+string(room.Status))
	}

	tenant, err = e.tenants.insert(ctx, scope, tenant)
	if err != nil {
		return models.Tenant{}, err
	}

	a, err := e.assign(ctx, scope, roomID, tenant.ID)
	if err != nil {
		e.core.log.WithFields(logrus.Fields{"tenant_id": tenant.ID, "room_id": roomID}).
			WithError(err).Warn("tenant created but room assignment failed")
		return tenant, &apperrors.StepError{Step: "assign room", Err: err}
	}
	return a.Tenant, nil
}

// RemoveTenant releases the tenant's room, if any, and deletes the tenant.
func (e *Engine) RemoveTenant(ctx context.Context, scope property.Scope, tenantID string) (err error) {
	defer func() { e.core.record("remove_tenant", err) }()

	if err := scope.Validate(); err != nil {
		return err
	}
	tenant, err := e.tenants.fresh(ctx, scope, tenantID)
	if err != nil {
		return err
	}
	if tenant.HasRoom() {
		if _, err := e.release(ctx, scope, *tenant.RoomID); err != nil {
			return &apperrors.StepError{Step: "release room", Err: err}
		}
	}
	return e.tenants.Remove(ctx, scope, tenantID)
}

// MoveTenant moves a tenant to roomID, releasing the current room first. An
// empty roomID only releases.
func (e *Engine) MoveTenant(ctx context.Context, scope property.Scope, tenantID, roomID string) (a Assignment, err error) {
	defer func() { e.core.record("move_tenant", err) }()

	if err := scope.Validate(); err != nil {
		return Assignment{}, err
	}
	tenant, err := e.tenants.fresh(ctx, scope, tenantID)
	if err != nil {
		return Assignment{}, err
	}
	current := ""
	if tenant.HasRoom() {
		current = *tenant.RoomID
	}

	if current == roomID {
		a.Tenant = tenant
		if roomID != "" {
			if a.Room, err = e.rooms.fresh(ctx, scope, roomID); err != nil {
				return Assignment{}, err
			}
		}
		return a, nil
	}

	if roomID != "" {
		target, err := e.rooms.fresh(ctx, scope, roomID)
		if err != nil {
			return Assignment{}, err
		}
		if target.Status != models.RoomVacant {
			return Assignment{}, apperrors.Conflict(apperrors.EntityRoom, roomID, "room is "+string(target.Status))
		}
		if tenant.Status != models.TenantActive {
			return Assignment{}, apperrors.Conflict(apperrors.EntityTenant, tenantID, "tenant is not active")
		}
	}

	if current != "" {
		released, err := e.release(ctx, scope, current)
		if err != nil {
			return Assignment{}, &apperrors.StepError{Step: "release room", Err: err}
		}
		if roomID == "" {
			return released, nil
		}
	}

	assigned, err := e.assign(ctx, scope, roomID, tenantID)
	if err != nil {
		return Assignment{}, &apperrors.StepError{Step: "assign room", Err: err}
	}
	return assigned, nil
}

// SetMaintenance moves a room between vacant and maintenance.
func (e *Engine) SetMaintenance(ctx context.Context, scope property.Scope, roomID string, on bool) (room models.Room, err error) {
	defer func() { e.core.record("set_maintenance", err) }()

	status := models.RoomVacant
	if on {
		status = models.RoomMaintenance
	}
	return e.rooms.UpdateStatus(ctx, scope, roomID, status, nil)
}

// Reconcile repairs links left half-written by a failed rollback: a room
// whose tenant does not link back is vacated, and tenants linking to the room
// that the room does not point back to are unlinked.
func (e *Engine) Reconcile(ctx context.Context, scope property.Scope, roomID string) (res ReconcileResult, err error) {
	defer func() { e.core.record("reconcile", err) }()

	if err := scope.Validate(); err != nil {
		return ReconcileResult{}, err
	}
	room, err := e.rooms.fresh(ctx, scope, roomID)
	if err != nil {
		return ReconcileResult{}, err
	}
	log := e.core.log.WithFields(logrus.Fields{"op": "reconcile", "room_id": roomID})

	var ch change
	if room.Status == models.RoomOccupied || room.HasTenant() {
		linked, err := e.linksBack(ctx, scope, room)
		if err != nil {
			return ReconcileResult{}, err
		}
		if !linked {
			next := room.Clone()
			next.Status = models.RoomVacant
			next.TenantID = nil
			saved, err := e.core.store.UpdateRoom(ctx, next, room.RowVersion)
			if err != nil {
				return ReconcileResult{}, translate("vacate room", apperrors.EntityRoom, roomID, err)
			}
			room = saved
			res.Repaired = append(res.Repaired, apperrors.Ref{Entity: apperrors.EntityRoom, ID: roomID})
			log.Warn("vacated room with dangling tenant link")
		}
	}

	tenants, err := e.core.store.ListTenants(ctx, store.TenantFilter{PropertyID: scope.PropertyID})
	if err != nil {
		return ReconcileResult{}, &apperrors.RemoteError{Op: "list tenants", Err: err}
	}
	for _, t := range tenants {
		if !t.HasRoom() || *t.RoomID != roomID {
			continue
		}
		if room.HasTenant() && *room.TenantID == t.ID {
			continue
		}
		next := t.Clone()
		next.RoomID = nil
		saved, err := e.core.store.UpdateTenant(ctx, next, t.RowVersion)
		if err != nil {
			return ReconcileResult{}, translate("unlink tenant", apperrors.EntityTenant, t.ID, err)
		}
		ch.tenants = append(ch.tenants, saved)
		res.Repaired = append(res.Repaired, apperrors.Ref{Entity: apperrors.EntityTenant, ID: t.ID})
		log.WithField("tenant_id", t.ID).Warn("unlinked tenant from room that does not point back")
	}

	ch.rooms = []models.Room{room}
	e.core.commit(scope.PropertyID, ch)
	res.Room = room.Clone()
	return res, nil
}

// linksBack reports whether the room's tenant exists and points at the room.
func (e *Engine) linksBack(ctx context.Context, scope property.Scope, room models.Room) (bool, error) {
	if !room.HasTenant() {
		return false, nil
	}
	t, err := e.tenants.fresh(ctx, scope, *room.TenantID)
	var nf *apperrors.NotFoundError
	if errors.As(err, &nf) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return t.HasRoom() && *t.RoomID == room.ID, nil
}
