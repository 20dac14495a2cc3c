package tenancy

import (
	"errors"

	"github.com/beesaferoot/kost-manager/internal/apperrors"
	"github.com/beesaferoot/kost-manager/internal/metrics"
	"github.com/beesaferoot/kost-manager/internal/store"
)

// translate maps a store error onto the tenancy error taxonomy.
func translate(op string, entity apperrors.Entity, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return &apperrors.NotFoundError{Entity: entity, ID: id}
	case errors.Is(err, store.ErrVersionConflict):
		return apperrors.Conflict(entity, id, "modified concurrently")
	case errors.Is(err, store.ErrDuplicate):
		return apperrors.Conflict(entity, id, "conflicts with an existing record")
	default:
		return &apperrors.RemoteError{Op: op, Err: err}
	}
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var (
		verr     *apperrors.ValidationError
		nf       *apperrors.NotFoundError
		conflict *apperrors.ConflictError
		partial  *apperrors.PartialFailureError
		remote   *apperrors.RemoteError
	)
	switch {
	case errors.As(err, &partial):
		return metrics.OutcomePartial
	case errors.As(err, &verr):
		return metrics.OutcomeValidation
	case errors.As(err, &nf):
		return metrics.OutcomeNotFound
	case errors.As(err, &conflict):
		return metrics.OutcomeConflict
	case errors.As(err, &remote):
		return metrics.OutcomeRemote
	case errors.Is(err, apperrors.ErrNoPropertySelected):
		return metrics.OutcomeNoProperty
	default:
		return metrics.OutcomeError
	}
}
