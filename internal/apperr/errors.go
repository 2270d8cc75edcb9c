// Package apperr defines the error taxonomy shared across notecheck packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrAddressMismatch = errors.New("address mismatch")
	ErrConfiguration   = errors.New("configuration error")
	ErrContentMismatch = errors.New("content does not match extension")
	ErrProvider        = errors.New("provider error")
	// ErrWriteConflict is reserved for concurrent version collisions. Nothing
	// detects them today; the results tree assumes a single writer.
	ErrWriteConflict = errors.New("write conflict")
)

// AddressError reports a path that does not follow the
// root/idx/model/prompt/timestamp/filename layout.
type AddressError struct {
	Path   string
	Reason string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("address mismatch: %s: %s", e.Path, e.Reason)
}

// Unwrap lets errors.Is match ErrAddressMismatch.
func (e *AddressError) Unwrap() error { return ErrAddressMismatch }

// ProviderError carries enough context for a batch to log and skip a case.
type ProviderError struct {
	Idx      int
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s failed for idx %d", e.Provider, e.Idx)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProvider}
	}
	return []error{ErrProvider, e.Err}
}

// Configf returns an ErrConfiguration wrapped with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
