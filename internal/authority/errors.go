package authority

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain-specific errors for authority operations.
// Use errors.Is() to check for these:
//
//	if errors.Is(err, authority.ErrNotFound) {
//	    // create instead of update
//	}
var (
	// ErrNotFound is returned when a lookup or update targets an absent record.
	ErrNotFound = errors.New("authority: not found")

	// ErrConflict is returned when a write would violate a uniqueness or
	// reference constraint.
	ErrConflict = errors.New("authority: conflict")

	// ErrInvalid is returned when a record fails validation.
	ErrInvalid = errors.New("authority: invalid record")

	// ErrRejected is returned when the authority answered with a failure envelope.
	ErrRejected = errors.New("authority: request rejected")

	// ErrUnavailable is returned when the authority could not be reached or
	// answered with something other than an envelope.
	ErrUnavailable = errors.New("authority: unavailable")

	// ErrCircuitOpen is returned when calls are short-circuited after repeated failures.
	ErrCircuitOpen = errors.New("authority: circuit open")
)

// Envelope is the wire shape of every authority response.
type Envelope[T any] struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// EnvelopeError is a failure envelope returned by the authority.
// It matches ErrRejected, and also ErrNotFound, ErrConflict or ErrInvalid
// when the HTTP status says so.
type EnvelopeError struct {
	Status  int
	Message string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("authority: request rejected (%d): %s", e.Status, e.Message)
}

// Unwrap exposes the sentinel errors this envelope matches.
func (e *EnvelopeError) Unwrap() []error {
	errs := []error{ErrRejected}
	switch e.Status {
	case http.StatusNotFound:
		errs = append(errs, ErrNotFound)
	case http.StatusConflict:
		errs = append(errs, ErrConflict)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		errs = append(errs, ErrInvalid)
	}
	return errs
}

// StatusFor maps an error to the HTTP status the authority answers with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
