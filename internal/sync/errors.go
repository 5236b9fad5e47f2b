// SPDX-License-Identifier: MIT

package sync

import (
	"errors"

	"github.com/ManuGH/vidsync/internal/identity"
	"github.com/ManuGH/vidsync/internal/ledger"
)

// Precondition failures, checked before any I/O.
var (
	ErrNotSignedIn       = errors.New("sync: not signed in")
	ErrAnonymousIdentity = errors.New("sync: anonymous identity cannot sync")
	ErrConsentRequired   = errors.New("sync: cloud sync consent not granted")
)

// Kind classifies a sync failure for the calling UI: it decides between
// "sign in again", "check connection" and a generic retry affordance.
type Kind string

const (
	KindNone             Kind = "none"
	KindNotSignedIn      Kind = "not-signed-in"
	KindAnonymous        Kind = "anonymous-identity"
	KindConsentRequired  Kind = "consent-required"
	KindPermissionDenied Kind = "permission-denied"
	KindAuthExpired      Kind = "auth-expired"
	KindUnavailable      Kind = "service-unavailable"
	KindParseFailure     Kind = "parse-failure"
	KindUnknown          Kind = "unknown"
)

// Classify maps any error returned by the engine to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotSignedIn):
		return KindNotSignedIn
	case errors.Is(err, ErrAnonymousIdentity):
		return KindAnonymous
	case errors.Is(err, ErrConsentRequired):
		return KindConsentRequired
	case errors.Is(err, ledger.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ledger.ErrUnauthenticated), errors.Is(err, identity.ErrSessionInvalid):
		return KindAuthExpired
	case errors.Is(err, ledger.ErrBadDocument):
		return KindParseFailure
	case errors.Is(err, ledger.ErrUnavailable):
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// Retryable reports whether a failure of this kind may succeed on a
// later attempt without user action.
func (k Kind) Retryable() bool {
	return k == KindUnavailable || k == KindUnknown
}
