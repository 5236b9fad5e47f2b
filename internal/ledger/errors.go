// SPDX-License-Identifier: MIT

package ledger

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrPermissionDenied = errors.New("ledger: permission denied")
	ErrUnauthenticated  = errors.New("ledger: unauthenticated or token expired")
	ErrUnavailable      = errors.New("ledger: service unavailable or transport failure")
	ErrBadDocument      = errors.New("ledger: malformed document")
)

// Error is a rich error type that wraps the sentinel errors with context.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("ledger: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// IsPermanent reports whether err is an authorization failure that no
// amount of retrying will fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrUnauthenticated)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil || IsPermanent(err) || errors.Is(err, ErrBadDocument) {
		return false
	}
	return true
}
