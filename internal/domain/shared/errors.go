// Package shared contains the error vocabulary and collaborator contracts used
// by every academy domain package. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error carries exactly one of them, so callers can
// branch on the kind without knowing which domain produced the error.
var (
	// ErrNotFound: a session, trial request, course, settings row or quote is missing.
	ErrNotFound = errors.New("not found")

	// ErrEmptyValue: a required value such as a currency code is blank.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange: a rating or rate falls outside its allowed range.
	ErrValueOutOfRange = errors.New("value out of range")
)

// DomainError is a sentinel error of one academy domain.
type DomainError struct {
	Domain  string // currency, progress, session, trial
	Op      string
	Kind    error
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap exposes the kind to errors.Is.
func (e *DomainError) Unwrap() error {
	return e.Kind
}

// NewDomainError creates a domain sentinel of the given kind.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// IsNotFound reports whether err, from any domain, means "no such thing".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalid reports whether err rejects a value supplied by the caller.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrEmptyValue) || errors.Is(err, ErrValueOutOfRange)
}
