// Package apperrors holds the error taxonomy shared by the registries, the
// assignment engine and the submission controller. Callers match with
// errors.As; every wrapper keeps its cause reachable through Unwrap.
package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Entity names the kind of record an error refers to.
type Entity string

const (
	EntityProperty Entity = "property"
	EntityRoom     Entity = "room"
	EntityTenant   Entity = "tenant"
)

// ErrNoPropertySelected is returned by every scoped call made without an
// active property.
var ErrNoPropertySelected = NoPropertySelectedError{}

type NoPropertySelectedError struct{}

func (NoPropertySelectedError) Error() string { return "no property selected" }

// FieldError describes one rejected draft field.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

// ValidationError reports malformed or out-of-range draft fields. It is raised
// locally and never reaches the store.
type ValidationError struct {
	Entity Entity
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s", e.Entity)
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(msgs, "; "))
}

// Has reports whether field was among the rejected ones.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Invalid builds a single-field ValidationError.
func Invalid(entity Entity, field, message string) *ValidationError {
	return &ValidationError{Entity: entity, Fields: []FieldError{{Field: field, Rule: "custom", Message: message}}}
}

// FromValidator converts go-playground validator failures. Errors of any other
// kind are returned unchanged.
func FromValidator(entity Entity, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Entity: entity}
	for _, fe := range verrs {
		field := snake(fe.Field())
		out.Fields = append(out.Fields, FieldError{
			Field:   field,
			Rule:    fe.Tag(),
			Message: describe(field, fe),
		})
	}
	sort.SliceStable(out.Fields, func(i, j int) bool { return out.Fields[i].Field < out.Fields[j].Field })
	return out
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must not be empty", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", field, snake(fe.Param()))
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func snake(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
			prevLower = false
		} else {
			prevLower = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NotFoundError is returned when a referenced id is absent or lies outside the
// active property scope.
type NotFoundError struct {
	Entity Entity
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError reports a violated precondition on the current state of a
// room or tenant, detected by a fresh read or by a lost conditional write.
type ConflictError struct {
	Entity Entity
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

// Conflict builds a ConflictError.
func Conflict(entity Entity, id, reason string) *ConflictError {
	return &ConflictError{Entity: entity, ID: id, Reason: reason}
}

// RemoteError wraps a store failure that is opaque to this layer.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *RemoteError) Unwrap() error { return e.Err }

// Ref identifies one record.
type Ref struct {
	Entity Entity
	ID     string
}

func (r Ref) String() string { return string(r.Entity) + " " + r.ID }

// PartialFailureError reports that one half of a paired write succeeded and
// the other did not. When Compensated is false the entity named by Provisional
// was left in the half-written state and needs reconciling.
type PartialFailureError struct {
	Op              string
	FailedSide      Ref
	Provisional     *Ref
	Compensated     bool
	Cause           error
	CompensationErr error
}

func (e *PartialFailureError) Error() string {
	msg := fmt.Sprintf("%s: %s write failed: %v", e.Op, e.FailedSide, e.Cause)
	if e.Compensated {
		return msg + " (rolled back)"
	}
	if e.Provisional != nil {
		msg += fmt.Sprintf(" (rollback failed, %s left provisional", e.Provisional)
		if e.CompensationErr != nil {
			msg += ": " + e.CompensationErr.Error()
		}
		msg += ")"
	}
	return msg
}

func (e *PartialFailureError) Unwrap() error { return e.Cause }

// StepError names the stage of a composed operation that failed after the
// earlier stages were kept.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Step + ": " + e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }
