package dialog

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind is the position of an error in the failure taxonomy.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUserInput
	KindExternalService
	KindIdentityResolution
	KindPersistenceInvariant
)

// UserInputError marks a missing or unparseable slot. It is answered with
// Reprompt and the previous asking state is restored.
type UserInputError struct {
	Slot     string
	Reprompt string
}

func (e *UserInputError) Error() string {
	return fmt.Sprintf("missing or invalid slot %q", e.Slot)
}

// ExternalServiceError wraps a failed geocoder, transit or store call.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// IdentityResolutionError means the turn could not be attributed to anyone.
type IdentityResolutionError struct {
	Err error
}

func (e *IdentityResolutionError) Error() string {
	return fmt.Sprintf("identity resolution failed: %v", e.Err)
}

func (e *IdentityResolutionError) Unwrap() error { return e.Err }

// PersistenceInvariantViolation means a stored profile lacks a required field.
type PersistenceInvariantViolation struct {
	PrincipalID string
	Missing     []string
}

func (e *PersistenceInvariantViolation) Error() string {
	return fmt.Sprintf("profile %s is missing %s", e.PrincipalID, strings.Join(e.Missing, ", "))
}

const (
	serviceGeocoder = "geocoder"
	serviceTransit  = "transit service"
	serviceStore    = "profile store"
)

func external(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

func classify(err error) ErrorKind {
	var (
		userErr     *UserInputError
		externalErr *ExternalServiceError
		identityErr *IdentityResolutionError
		invariant   *PersistenceInvariantViolation
	)
	switch {
	case errors.As(err, &userErr):
		return KindUserInput
	case errors.As(err, &identityErr):
		return KindIdentityResolution
	case errors.As(err, &invariant):
		return KindPersistenceInvariant
	case errors.As(err, &externalErr):
		return KindExternalService
	default:
		return KindUnknown
	}
}
