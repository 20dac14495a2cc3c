// Package submission drives tenant and room form submissions: it resolves the
// active scope, performs the writes through the tenancy registries and keeps
// per-form busy and error state.
package submission

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/beesaferoot/kost-manager/internal/apperrors"
	"github.com/beesaferoot/kost-manager/internal/logging"
	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/property"
	"github.com/beesaferoot/kost-manager/internal/tenancy"
)

// ErrSubmitInFlight is returned by Submit while the same form is still
// waiting for an earlier submission. Nothing is written.
var ErrSubmitInFlight = errors.New("submission already in flight")

// ScopeSource yields the active property scope.
type ScopeSource interface {
	Scope() (property.Scope, error)
}

type Controller struct {
	scopes ScopeSource
	reg    *tenancy.Registry
	log    logrus.FieldLogger

	tenantForm *TenantForm
	roomForm   *RoomForm
}

func NewController(scopes ScopeSource, reg *tenancy.Registry, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logging.Discard()
	}
	c := &Controller{scopes: scopes, reg: reg, log: log}
	c.tenantForm = c.TenantForm()
	c.roomForm = c.RoomForm()
	return c
}

func (c *Controller) TenantForm() *TenantForm {
	return &TenantForm{c: c, form: form{log: c.log.WithField("form", "tenant")}}
}

func (c *Controller) RoomForm() *RoomForm {
	return &RoomForm{c: c, form: form{log: c.log.WithField("form", "room")}}
}

// SubmitTenant submits draft through the controller's own tenant form, so a
// second call while one is in flight returns ErrSubmitInFlight.
func (c *Controller) SubmitTenant(ctx context.Context, draft tenancy.TenantDraft, existingID string) (models.Tenant, error) {
	return c.tenantForm.Submit(ctx, draft, existingID)
}

// SubmitRoom submits draft through the controller's own room form.
func (c *Controller) SubmitRoom(ctx context.Context, draft tenancy.RoomDraft, existingID string) (models.Room, error) {
	return c.roomForm.Submit(ctx, draft, existingID)
}

// form holds the state shared by both form kinds.
type form struct {
	log logrus.FieldLogger

	mu      sync.Mutex
	busy    bool
	closed  bool
	lastErr error
}

func (f *form) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false
	}
	f.busy = true
	f.lastErr = nil
	return true
}

// finish records err on the form, or logs it when the form was closed while
// the submission was in flight.
func (f *form) finish(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if f.closed {
		if err != nil {
			f.log.WithError(err).Warn("submission failed after the form was closed")
		}
		return err
	}
	f.lastErr = err
	return err
}

// Busy reports whether a submission is in flight.
func (f *form) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// LastError returns the error of the last finished submission, nil after a
// success.
func (f *form) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Close detaches the form. Submissions still in flight complete; their
// failures are logged instead of being kept.
func (f *form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

type TenantForm struct {
	c *Controller
	form
}

// Submit creates a tenant when existingID is empty and edits it otherwise.
//
// A create needs draft.RoomID and assigns that room. On edit a non-nil RoomID
// moves the tenant (empty string releases), and deactivating a tenant
// releases its room first.
func (f *TenantForm) Submit(ctx context.Context, draft tenancy.TenantDraft, existingID string) (models.Tenant, error) {
	if !f.begin() {
		return models.Tenant{}, ErrSubmitInFlight
	}
	t, err := f.submit(ctx, draft, existingID)
	return t, f.finish(err)
}

func (f *TenantForm) submit(ctx context.Context, draft tenancy.TenantDraft, existingID string) (models.Tenant, error) {
	scope, err := f.c.scopes.Scope()
	if err != nil {
		return models.Tenant{}, err
	}
	engine := f.c.reg.Engine

	if existingID == "" {
		if draft.RoomID == nil || *draft.RoomID == "" {
			return models.Tenant{}, apperrors.Invalid(apperrors.EntityTenant, "room_id", "room_id is required")
		}
		return engine.CreateTenantWithRoom(ctx, scope, draft, *draft.RoomID)
	}

	draft.ID = existingID
	deactivating := draft.Status != nil && *draft.Status == models.TenantInactive
	if deactivating && draft.RoomID != nil && *draft.RoomID != "" {
		return models.Tenant{}, apperrors.Invalid(apperrors.EntityTenant, "room_id", "an inactive tenant cannot hold a room")
	}
	if deactivating {
		// The release is kept even if the update below fails.
		if err := f.c.reg.Tenants.ValidateDraft(draft); err != nil {
			return models.Tenant{}, err
		}
		if _, err := engine.MoveTenant(ctx, scope, existingID, ""); err != nil {
			return models.Tenant{}, err
		}
	}

	tenant, err := f.c.reg.Tenants.Upsert(ctx, scope, draft)
	if err != nil {
		if deactivating {
			return models.Tenant{}, &apperrors.StepError{Step: "update tenant", Err: err}
		}
		return models.Tenant{}, err
	}
	if draft.RoomID == nil || deactivating {
		return tenant, nil
	}
	a, err := engine.MoveTenant(ctx, scope, existingID, *draft.RoomID)
	if err != nil {
		return tenant, err
	}
	return a.Tenant, nil
}

type RoomForm struct {
	c *Controller
	form
}

// Submit creates a room when existingID is empty and edits it otherwise.
func (f *RoomForm) Submit(ctx context.Context, draft tenancy.RoomDraft, existingID string) (models.Room, error) {
	if !f.begin() {
		return models.Room{}, ErrSubmitInFlight
	}
	r, err := f.submit(ctx, draft, existingID)
	return r, f.finish(err)
}

func (f *RoomForm) submit(ctx context.Context, draft tenancy.RoomDraft, existingID string) (models.Room, error) {
	scope, err := f.c.scopes.Scope()
	if err != nil {
		return models.Room{}, err
	}
	draft.ID = existingID
	return f.c.reg.Rooms.Upsert(ctx, scope, draft)
}
