package submission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beesaferoot/kost-manager/internal/apperrors"
	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/property"
	"github.com/beesaferoot/kost-manager/internal/store/memstore"
	"github.com/beesaferoot/kost-manager/internal/submission"
	"github.com/beesaferoot/kost-manager/internal/tenancy"
)

type harness struct {
	st   *memstore.Store
	sel  *property.Selection
	reg  *tenancy.Registry
	ctrl *submission.Controller
	logs *logtest.Hook
}

func ptr[T any](v T) *T { return &v }

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	st := memstore.New()
	st.PutProperty(models.Property{ID: "p1", Name: "Kost Melati"})
	st.PutRoom(models.Room{
		ID: "r101", PropertyID: "p1", Number: "R101", Type: models.RoomTypeSingle,
		Price: 1500000, Facilities: models.Facilities{}, Status: models.RoomVacant,
	})
	st.PutRoom(models.Room{
		ID: "r102", PropertyID: "p1", Number: "R102", Type: models.RoomTypeDouble,
		Price: 2000000, Facilities: models.Facilities{}, Status: models.RoomVacant,
	})
	st.PutTenant(models.Tenant{
		ID: "ani", PropertyID: "p1", Name: "Ani", Phone: "0812",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:    models.TenantActive, PaymentStatus: models.PaymentPaid,
	})

	logger, hook := logtest.NewNullLogger()
	sel := property.NewSelection(st)
	require.NoError(t, sel.Load(ctx))
	reg := tenancy.New(st, tenancy.WithLogger(logger))
	_, err := reg.Rooms.List(ctx, property.Scope{PropertyID: "p1"})
	require.NoError(t, err)
	_, err = reg.Tenants.List(ctx, property.Scope{PropertyID: "p1"})
	require.NoError(t, err)
	st.ResetCalls()

	return &harness{
		st:   st,
		sel:  sel,
		reg:  reg,
		ctrl: submission.NewController(sel, reg, logger),
		logs: hook,
	}
}

func TestSubmitRoom_ValidationBeforeRemote(t *testing.T) {
	h := newHarness(t)
	before := h.reg.Rooms.Rooms()

	_, err := h.ctrl.SubmitRoom(context.Background(), tenancy.RoomDraft{
		Number: ptr(""),
		Price:  ptr(int64(1000000)),
	}, "")

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("number"))
	assert.Empty(t, h.st.Calls())
	assert.Equal(t, before, h.reg.Rooms.Rooms())
}

func TestSubmitRoom_CreateAndEdit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	room, err := h.ctrl.SubmitRoom(ctx, tenancy.RoomDraft{
		Number:     ptr("R103"),
		Type:       ptr(models.RoomTypeDeluxe),
		Price:      ptr(int64(3000000)),
		Facilities: []string{"AC", "Kamar Mandi Dalam"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoomVacant, room.Status)

	form := h.ctrl.RoomForm()
	edited, err := form.Submit(ctx, tenancy.RoomDraft{Price: ptr(int64(2800000))}, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2800000), edited.Price)
	assert.Equal(t, "R103", edited.Number)
	assert.NoError(t, form.LastError())
	assert.False(t, form.Busy())
}

func TestSubmit_NoPropertySelected(t *testing.T) {
	h := newHarness(t)
	h.sel.Clear()

	_, err := h.ctrl.SubmitRoom(context.Background(), tenancy.RoomDraft{
		Number: ptr("R103"),
		Price:  ptr(int64(1000000)),
	}, "")
	assert.ErrorIs(t, err, apperrors.ErrNoPropertySelected)

	_, err = h.ctrl.SubmitTenant(context.Background(), tenancy.TenantDraft{RoomID: ptr("r101")}, "")
	assert.ErrorIs(t, err, apperrors.ErrNoPropertySelected)
	assert.Empty(t, h.st.Calls())
}

func TestRoomForm_ErrorKeptVerbatim(t *testing.T) {
	h := newHarness(t)
	h.st.FailOnce(memstore.OpInsertRoom, "", errors.New("permission denied"))
	form := h.ctrl.RoomForm()

	_, err := form.Submit(context.Background(), tenancy.RoomDraft{
		Number: ptr("R103"),
		Price:  ptr(int64(1000000)),
	}, "")

	require.Error(t, err)
	assert.True(t, err == form.LastError())
	assert.Equal(t, "insert room: permission denied", form.LastError().Error())
	assert.Len(t, h.reg.Rooms.Rooms(), 2)

	_, err = form.Submit(context.Background(), tenancy.RoomDraft{
		Number: ptr("R103"),
		Price:  ptr(int64(1000000)),
	}, "")
	require.NoError(t, err)
	assert.NoError(t, form.LastError())
}

func TestRoomForm_BusyGuard(t *testing.T) {
	h := newHarness(t)
	form := h.ctrl.RoomForm()

	entered := make(chan struct{})
	release := make(chan struct{})
	h.st.Before(memstore.OpInsertRoom, func(string) {
		close(entered)
		<-release
	})

	done := make(chan error, 1)
	go func() {
		_, err := form.Submit(context.Background(), tenancy.RoomDraft{
			Number: ptr("R103"),
			Price:  ptr(int64(1000000)),
		}, "")
		done <- err
	}()

	<-entered
	assert.True(t, form.Busy())
	_, err := form.Submit(context.Background(), tenancy.RoomDraft{
		Number: ptr("R104"),
		Price:  ptr(int64(1000000)),
	}, "")
	assert.ErrorIs(t, err, submission.ErrSubmitInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, form.Busy())
	assert.Equal(t, 1, h.st.CallCount(memstore.OpInsertRoom))
	assert.Len(t, h.reg.Rooms.Rooms(), 3)
}

func TestRoomForm_LateFailureAfterClose(t *testing.T) {
	h := newHarness(t)
	form := h.ctrl.RoomForm()

	entered := make(chan struct{})
	release := make(chan struct{})
	h.st.Before(memstore.OpInsertRoom, func(string) {
		close(entered)
		<-release
	})
	h.st.FailOnce(memstore.OpInsertRoom, "", errors.New("timeout"))

	done := make(chan error, 1)
	go func() {
		_, err := form.Submit(context.Background(), tenancy.RoomDraft{
			Number: ptr("R103"),
			Price:  ptr(int64(1000000)),
		}, "")
		done <- err
	}()

	<-entered
	form.Close()
	close(release)
	require.Error(t, <-done)

	assert.NoError(t, form.LastError())
	entry := h.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "submission failed after the form was closed", entry.Message)
}

func TestSubmitTenant_CreateRequiresRoom(t *testing.T) {
	h := newHarness(t)

	_, err := h.ctrl.SubmitTenant(context.Background(), tenancy.TenantDraft{
		Name:    ptr("Citra"),
		Phone:   ptr("0813"),
		EndDate: ptr(time.Now().AddDate(0, 6, 0)),
	}, "")

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("room_id"))
	assert.Empty(t, h.st.Calls())
}

func TestSubmitTenant_CreateWithRoom(t *testing.T) {
	h := newHarness(t)

	tenant, err := h.ctrl.SubmitTenant(context.Background(), tenancy.TenantDraft{
		Name:    ptr("Citra"),
		Phone:   ptr("0813"),
		RoomID:  ptr("r102"),
		EndDate: ptr(time.Now().AddDate(0, 6, 0)),
	}, "")
	require.NoError(t, err)
	require.True(t, tenant.HasRoom())
	assert.Equal(t, "r102", *tenant.RoomID)

	room, ok := h.reg.Rooms.Room("r102")
	require.True(t, ok)
	assert.Equal(t, models.RoomOccupied, room.Status)
	assert.Equal(t, tenant.ID, *room.TenantID)
}

func TestSubmitTenant_EditMovesAndReleases(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tenant, err := h.ctrl.SubmitTenant(ctx, tenancy.TenantDraft{RoomID: ptr("r101")}, "ani")
	require.NoError(t, err)
	assert.Equal(t, "r101", *tenant.RoomID)

	tenant, err = h.ctrl.SubmitTenant(ctx, tenancy.TenantDraft{
		Phone:  ptr("0899"),
		RoomID: ptr("r102"),
	}, "ani")
	require.NoError(t, err)
	assert.Equal(t, "r102", *tenant.RoomID)
	assert.Equal(t, "0899", tenant.Phone)
	r101, _ := h.reg.Rooms.Room("r101")
	assert.Equal(t, models.RoomVacant, r101.Status)

	tenant, err = h.ctrl.SubmitTenant(ctx, tenancy.TenantDraft{RoomID: ptr("")}, "ani")
	require.NoError(t, err)
	assert.Nil(t, tenant.RoomID)
	r102, _ := h.reg.Rooms.Room("r102")
	assert.Equal(t, models.RoomVacant, r102.Status)
}

func TestSubmitTenant_DeactivateReleasesRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctrl.SubmitTenant(ctx, tenancy.TenantDraft{RoomID: ptr("r101")}, "ani")
	require.NoError(t, err)

	tenant, err := h.ctrl.SubmitTenant(ctx, tenancy.TenantDraft{Status: ptr(models.TenantInactive)}, "ani")
	require.NoError(t, err)
	assert.Equal(t, models.TenantInactive, tenant.Status)
	assert.Nil(t, tenant.RoomID)

	room, _ := h.reg.Rooms.Room("r101")
	assert.Equal(t, models.RoomVacant, room.Status)
	assert.Nil(t, room.TenantID)

	_, err = h.ctrl.SubmitTenant(ctx, tenancy.TenantDraft{
		Status: ptr(models.TenantInactive),
		RoomID: ptr("r102"),
	}, "ani")
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("room_id"))
}

func TestSubmitTenant_ValidationBeforeRemote(t *testing.T) {
	h := newHarness(t)
	before := h.reg.Tenants.Tenants()

	_, err := h.ctrl.SubmitTenant(context.Background(), tenancy.TenantDraft{
		Name:      ptr("Citra"),
		Phone:     ptr("0813"),
		RoomID:    ptr("r101"),
		StartDate: ptr(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)),
		EndDate:   ptr(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)),
	}, "")

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("end_date"))
	assert.Empty(t, h.st.Calls())
	assert.Equal(t, before, h.reg.Tenants.Tenants())
}

func TestSubmitTenant_DeactivateValidatesBeforeRelease(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctrl.SubmitTenant(ctx, tenancy.TenantDraft{RoomID: ptr("r101")}, "ani")
	require.NoError(t, err)
	h.st.ResetCalls()

	_, err = h.ctrl.SubmitTenant(ctx, tenancy.TenantDraft{
		Name:   ptr(""),
		Status: ptr(models.TenantInactive),
	}, "ani")

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("name"))
	assert.Empty(t, h.st.Calls())

	room, ok := h.st.Room("r101")
	require.True(t, ok)
	assert.Equal(t, models.RoomOccupied, room.Status)
}

func TestSubmitTenant_DeactivateUpdateFailsAfterRelease(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctrl.SubmitTenant(ctx, tenancy.TenantDraft{RoomID: ptr("r101")}, "ani")
	require.NoError(t, err)

	// The first tenant write unlinks the room, the second one deactivates.
	writes := 0
	h.st.FailWhen(func(op memstore.Op, id string) error {
		if op != memstore.OpUpdateTenant || id != "ani" {
			return nil
		}
		writes++
		if writes == 2 {
			return errors.New("connection reset")
		}
		return nil
	})

	_, err = h.ctrl.SubmitTenant(ctx, tenancy.TenantDraft{Status: ptr(models.TenantInactive)}, "ani")

	var step *apperrors.StepError
	require.ErrorAs(t, err, &step)
	assert.Equal(t, "update tenant", step.Step)
	var remote *apperrors.RemoteError
	assert.ErrorAs(t, err, &remote)

	room, _ := h.st.Room("r101")
	assert.Equal(t, models.RoomVacant, room.Status)
	tenant, _ := h.st.Tenant("ani")
	assert.Equal(t, models.TenantActive, tenant.Status)
	assert.Nil(t, tenant.RoomID)
}

func TestController_SubmitTenantBusyGuard(t *testing.T) {
	h := newHarness(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.st.Before(memstore.OpInsertTenant, func(string) {
		close(entered)
		<-release
	})

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.SubmitTenant(context.Background(), tenancy.TenantDraft{
			Name:   ptr("Citra"),
			Phone:  ptr("0813"),
			RoomID: ptr("r101"),
		}, "")
		done <- err
	}()

	<-entered
	_, err := h.ctrl.SubmitTenant(context.Background(), tenancy.TenantDraft{
		Name:   ptr("Dewi"),
		Phone:  ptr("0814"),
		RoomID: ptr("r102"),
	}, "")
	assert.ErrorIs(t, err, submission.ErrSubmitInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.st.CallCount(memstore.OpInsertTenant))
}
