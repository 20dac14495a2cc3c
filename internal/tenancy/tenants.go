package tenancy

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/beesaferoot/kost-manager/internal/apperrors"
	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/property"
	"github.com/beesaferoot/kost-manager/internal/store"
)

// TenantDraft carries a tenant create or edit. Nil fields are left unchanged
// on edit; ID empty means create. RoomID is read by callers that compose
// assignment; the registry never writes the room link.
type TenantDraft struct {
	ID              string
	Name            *string               `validate:"omitnil,min=1,max=255"`
	Phone           *string               `validate:"omitnil,min=1,max=32"`
	Email           *string               `validate:"omitempty,email"`
	RoomID          *string               `validate:"-"`
	StartDate       *time.Time            `validate:"-"`
	EndDate         *time.Time            `validate:"-"`
	Status          *models.TenantStatus  `validate:"omitnil,oneof=active inactive"`
	PaymentStatus   *models.PaymentStatus `validate:"omitnil,oneof=paid pending overdue"`
	LastPaymentDate *time.Time            `validate:"-"`
}

type TenantRegistry struct {
	core *core
}

// List reads the tenants of scope and replaces the cache with them.
func (r *TenantRegistry) List(ctx context.Context, scope property.Scope) ([]models.Tenant, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	tenants, err := r.core.store.ListTenants(ctx, store.TenantFilter{PropertyID: scope.PropertyID})
	if err != nil {
		return nil, &apperrors.RemoteError{Op: "list tenants", Err: err}
	}
	r.core.replaceTenants(scope.PropertyID, tenants)
	return tenants, nil
}

// ListUnassignedActive reads the active tenants without a room.
func (r *TenantRegistry) ListUnassignedActive(ctx context.Context, scope property.Scope) ([]models.Tenant, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	active := models.TenantActive
	tenants, err := r.core.store.ListTenants(ctx, store.TenantFilter{
		PropertyID: scope.PropertyID,
		Status:     &active,
		Unassigned: true,
	})
	if err != nil {
		return nil, &apperrors.RemoteError{Op: "list unassigned tenants", Err: err}
	}
	r.core.commit(scope.PropertyID, change{tenants: tenants})
	return tenants, nil
}

// Upsert creates a tenant when draft.ID is empty and edits it otherwise. The
// room link is preserved as stored.
func (r *TenantRegistry) Upsert(ctx context.Context, scope property.Scope, draft TenantDraft) (tenant models.Tenant, err error) {
	op := "tenant_update"
	if draft.ID == "" {
		op = "tenant_create"
	}
	defer func() { r.core.record(op, err) }()

	if err := scope.Validate(); err != nil {
		return models.Tenant{}, err
	}
	if err := r.validateDraft(draft); err != nil {
		return models.Tenant{}, err
	}
	if draft.ID == "" {
		return r.create(ctx, scope, draft)
	}
	return r.update(ctx, scope, draft)
}

// ValidateDraft checks draft locally, as Upsert does before any store call.
func (r *TenantRegistry) ValidateDraft(draft TenantDraft) error {
	return r.validateDraft(draft)
}

func (r *TenantRegistry) validateDraft(draft TenantDraft) error {
	if err := r.core.validate.Struct(draft); err != nil {
		return apperrors.FromValidator(apperrors.EntityTenant, err)
	}
	if draft.StartDate != nil && draft.EndDate != nil && draft.EndDate.Before(*draft.StartDate) {
		return apperrors.Invalid(apperrors.EntityTenant, "end_date", "end_date must not be before start_date")
	}
	return nil
}

func (r *TenantRegistry) create(ctx context.Context, scope property.Scope, draft TenantDraft) (models.Tenant, error) {
	tenant, err := r.build(scope, draft)
	if err != nil {
		return models.Tenant{}, err
	}
	return r.insert(ctx, scope, tenant)
}

// build applies draft over the create defaults and validates the result
// without touching the store.
func (r *TenantRegistry) build(scope property.Scope, draft TenantDraft) (models.Tenant, error) {
	today := r.core.today()
	tenant := models.Tenant{
		ID:              uuid.NewString(),
		PropertyID:      scope.PropertyID,
		StartDate:       today,
		Status:          models.TenantActive,
		PaymentStatus:   models.PaymentPending,
		LastPaymentDate: today,
		RowVersion:      1,
	}
	applyTenantDraft(&tenant, draft)
	if err := r.core.validate.Struct(tenant); err != nil {
		return models.Tenant{}, apperrors.FromValidator(apperrors.EntityTenant, err)
	}
	return tenant, nil
}

func (r *TenantRegistry) insert(ctx context.Context, scope property.Scope, tenant models.Tenant) (models.Tenant, error) {
	if err := r.core.store.InsertTenant(ctx, &tenant); err != nil {
		return models.Tenant{}, translate("insert tenant", apperrors.EntityTenant, tenant.ID, err)
	}
	r.core.commit(scope.PropertyID, change{tenants: []models.Tenant{tenant}})
	r.core.log.WithFields(logrus.Fields{"tenant_id": tenant.ID, "name": tenant.Name}).Info("tenant created")
	return tenant.Clone(), nil
}

func (r *TenantRegistry) update(ctx context.Context, scope property.Scope, draft TenantDraft) (models.Tenant, error) {
	cur, err := r.fresh(ctx, scope, draft.ID)
	if err != nil {
		return models.Tenant{}, err
	}

	next := cur.Clone()
	applyTenantDraft(&next, draft)
	if next.Status == models.TenantInactive && cur.Status != models.TenantInactive && cur.HasRoom() {
		return models.Tenant{}, apperrors.Conflict(apperrors.EntityTenant, cur.ID, "tenant still holds room "+*cur.RoomID+", release it first")
	}
	if err := r.core.validate.Struct(next); err != nil {
		return models.Tenant{}, apperrors.FromValidator(apperrors.EntityTenant, err)
	}

	saved, err := r.core.store.UpdateTenant(ctx, next, cur.RowVersion)
	if err != nil {
		return models.Tenant{}, translate("update tenant", apperrors.EntityTenant, cur.ID, err)
	}
	r.core.commit(scope.PropertyID, change{tenants: []models.Tenant{saved}})
	r.core.log.WithField("tenant_id", saved.ID).Info("tenant updated")
	return saved, nil
}

// Remove deletes a tenant that holds no room.
func (r *TenantRegistry) Remove(ctx context.Context, scope property.Scope, tenantID string) (err error) {
	defer func() { r.core.record("tenant_remove", err) }()

	if err := scope.Validate(); err != nil {
		return err
	}
	cur, err := r.fresh(ctx, scope, tenantID)
	if err != nil {
		return err
	}
	if cur.HasRoom() {
		return apperrors.Conflict(apperrors.EntityTenant, tenantID, "tenant still holds room "+*cur.RoomID+", release it first")
	}
	if err := r.core.store.DeleteTenant(ctx, tenantID, cur.RowVersion); err != nil {
		return translate("delete tenant", apperrors.EntityTenant, tenantID, err)
	}
	r.core.commit(scope.PropertyID, change{removedTenants: []string{tenantID}})
	r.core.log.WithField("tenant_id", tenantID).Info("tenant removed")
	return nil
}

// Tenants returns the cached tenants ordered by name.
func (r *TenantRegistry) Tenants() []models.Tenant {
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()
	return sortedTenants(r.core.tenants, nil)
}

// AssignableTenants returns the cached active tenants without a room.
func (r *TenantRegistry) AssignableTenants() []models.Tenant {
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()
	return sortedTenants(r.core.tenants, models.Tenant.Assignable)
}

func (r *TenantRegistry) Tenant(id string) (models.Tenant, bool) {
	r.core.mu.RLock()
	defer r.core.mu.RUnlock()
	t, ok := r.core.tenants[id]
	return t.Clone(), ok
}

// fresh reads a tenant from the store and checks it belongs to scope.
func (r *TenantRegistry) fresh(ctx context.Context, scope property.Scope, id string) (models.Tenant, error) {
	t, err := r.core.store.GetTenant(ctx, id)
	if err != nil {
		return models.Tenant{}, translate("get tenant", apperrors.EntityTenant, id, err)
	}
	if t.PropertyID != scope.PropertyID {
		return models.Tenant{}, &apperrors.NotFoundError{Entity: apperrors.EntityTenant, ID: id}
	}
	return t, nil
}

func applyTenantDraft(t *models.Tenant, d TenantDraft) {
	if d.Name != nil {
		t.Name = strings.TrimSpace(*d.Name)
	}
	if d.Phone != nil {
		t.Phone = strings.TrimSpace(*d.Phone)
	}
	if d.Email != nil {
		t.Email = strings.TrimSpace(*d.Email)
	}
	if d.StartDate != nil {
		t.StartDate = *d.StartDate
	}
	if d.EndDate != nil {
		t.EndDate = *d.EndDate
	}
	if d.Status != nil {
		t.Status = *d.Status
	}
	if d.PaymentStatus != nil {
		t.PaymentStatus = *d.PaymentStatus
	}
	if d.LastPaymentDate != nil {
		t.LastPaymentDate = *d.LastPaymentDate
	}
}
