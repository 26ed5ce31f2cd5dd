package portability

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors matched by the typed errors below.
var (
	ErrReferenceIntegrity = errors.New("reference integrity violation")
	ErrDuplicateStableID  = errors.New("duplicate stable id")
	ErrInvalidNode        = errors.New("invalid node")
	ErrInvalidOptions     = errors.New("invalid import options")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrUnsupportedKind    = errors.New("unsupported entity kind")
)

// ReferenceIntegrityError reports a reference whose target cannot be found.
// During export LocalID names the missing entity; during import StableID does.
type ReferenceIntegrityError struct {
	Kind         Kind
	StableID     uuid.UUID
	LocalID      int64
	ReferencedBy uuid.UUID
	Reason       string
}

func (e *ReferenceIntegrityError) Error() string {
	kind := string(e.Kind)
	if kind == "" {
		kind = "node"
	}
	target := fmt.Sprintf("%s %s", kind, e.StableID)
	if e.StableID == uuid.Nil {
		target = fmt.Sprintf("%s #%d", kind, e.LocalID)
	}
	msg := fmt.Sprintf("reference integrity: %s", target)
	if e.ReferencedBy != uuid.Nil {
		msg += fmt.Sprintf(" referenced by %s", e.ReferencedBy)
	}
	reason := e.Reason
	if reason == "" {
		reason = "not found"
	}
	return msg + " " + reason
}

func (e *ReferenceIntegrityError) Unwrap() error { return ErrReferenceIntegrity }

// DuplicateStableIDError reports two distinct entities claiming one stable id.
type DuplicateStableIDError struct {
	StableID uuid.UUID
	First    Kind
	Second   Kind
}

func (e *DuplicateStableIDError) Error() string {
	return fmt.Sprintf("duplicate stable id %s (%s and %s)", e.StableID, e.First, e.Second)
}

func (e *DuplicateStableIDError) Unwrap() error { return ErrDuplicateStableID }

// ValidationError reports attributes of one node that failed validation.
type ValidationError struct {
	Kind     Kind      `json:"type"`
	StableID uuid.UUID `json:"uuid"`
	Field    string    `json:"field,omitempty"`
	Message  string    `json:"message"`
	Err      error     `json:"-"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s %s: %s", e.Kind, e.StableID, e.Message)
	}
	return fmt.Sprintf("invalid %s %s: field %q %s", e.Kind, e.StableID, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidNode}
	}
	return []error{ErrInvalidNode, e.Err}
}
