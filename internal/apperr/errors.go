// Package apperr defines the error taxonomy shared across the engine.
// Handlers map these onto HTTP statuses; the retry helper uses the
// classification to decide whether another attempt is worthwhile.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrSlotTaken is returned when the local overlap invariant rejects a
	// booking. Final, never retried.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrRemoteConflict is returned when the professional's external
	// calendar is busy during the requested interval.
	ErrRemoteConflict = errors.New("remote calendar busy")

	// ErrTransient wraps network, timeout and 5xx failures from the remote
	// calendar. Safe to retry with backoff.
	ErrTransient = errors.New("transient external error")

	// ErrAuthExpired marks a missing/expired PKCE session or an invalid
	// refresh token. The handshake must be restarted; stale material is
	// never retried.
	ErrAuthExpired = errors.New("authorization expired")

	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited marks a request rejected by an abuse-control window.
	ErrRateLimited = errors.New("rate limited")
)

// Validation wraps a field-level complaint as an ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrRemoteConflict)
}
func IsTransient(err error) bool   { return errors.Is(err, ErrTransient) }
func IsAuthExpired(err error) bool { return errors.Is(err, ErrAuthExpired) }
func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
