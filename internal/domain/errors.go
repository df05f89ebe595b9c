package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	// ErrNotConfigured reports an optional backend that is not enabled.
	ErrNotConfigured = errors.New("not configured")

	// ErrVenueUnavailable reports a network or parse failure from one venue.
	ErrVenueUnavailable = errors.New("venue unavailable")
	// ErrInvalidIntent reports trade parameters that fail validation.
	ErrInvalidIntent = errors.New("invalid order intent")
	// ErrSigningDeclined reports a wallet that refused or never produced a signature.
	ErrSigningDeclined = errors.New("signing declined")
	// ErrAuthenticationRejected reports credentials or signatures refused by the venue.
	ErrAuthenticationRejected = errors.New("authentication rejected")
	// ErrOrderRejected reports a well-formed order refused by the venue.
	ErrOrderRejected = errors.New("order rejected")
	// ErrTransport reports a timeout, connection failure, or unparseable response.
	ErrTransport = errors.New("transport error")
)

// RetriableError is implemented by errors that a caller may retry with a
// freshly built order.
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable.
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// VenueError wraps a failure from a single venue adapter.
type VenueError struct {
	Venue Venue
	Op    string
	Err   error
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Venue, e.Op, e.Err)
}

func (e *VenueError) Unwrap() []error {
	return []error{ErrVenueUnavailable, e.Err}
}

// TransportError wraps a network failure, timeout, or unparseable response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) IsRetriable() bool { return true }

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// RejectionError carries a structured error returned by a venue. Message
// is the venue's text, unmodified.
type RejectionError struct {
	Status  int
	Message string
	// Auth is true when the venue refused credentials rather than the order.
	Auth bool
}

func (e *RejectionError) Error() string {
	if e.Auth {
		return fmt.Sprintf("authentication rejected (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("order rejected (HTTP %d): %s", e.Status, e.Message)
}

func (e *RejectionError) IsRetriable() bool { return false }

func (e *RejectionError) Is(target error) bool {
	if e.Auth {
		return target == ErrAuthenticationRejected
	}
	return target == ErrOrderRejected
}

// InvalidIntentf returns an error wrapping ErrInvalidIntent.
func InvalidIntentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidIntent, fmt.Sprintf(format, args...))
}
