// Package errs defines the tagged error type shared by the registry,
// provisioner, and orchestration service. Handlers map Kind to a transport
// status; background jobs record the bounded message as the fail reason.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind string

const (
	// KindValidation marks malformed input (e.g. a bad domain name).
	KindValidation Kind = "VALIDATION_ERROR"
	// KindConflict marks a duplicate resource (tenant_id, name uniqueness).
	KindConflict Kind = "DOMAIN_ALREADY_EXISTS"
	// KindQuotaExceeded marks a tenant at or above its plan domain limit.
	KindQuotaExceeded Kind = "TENANT_QUOTA_EXCEEDED"
	// KindNotFound marks a missing domain or graph binding.
	KindNotFound Kind = "DOMAIN_NOT_FOUND"
	// KindGraphNotReady marks an action invalid for the current lifecycle
	// state, e.g. retrying a domain that is already online.
	KindGraphNotReady Kind = "GRAPH_NOT_READY"
	// KindGraphTimeout marks a resource that did not reach the desired
	// state within the wait budget.
	KindGraphTimeout Kind = "GRAPH_PROVISION_TIMEOUT"
	// KindAdminUnavailable marks an unreachable cluster admin endpoint.
	KindAdminUnavailable Kind = "NEO4J_ADMIN_UNAVAILABLE"
	// KindInternal is the catch-all for unexpected failures.
	KindInternal Kind = "INTERNAL_ERROR"
)

// MaxMessageLen bounds the message stored on an Error and recorded as a
// DomainGraph fail reason.
const MaxMessageLen = 500

// Error carries a Kind, a bounded human-readable message, and optional
// structured details for the boundary layer.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	cause   error
}

// New returns an Error of the given kind; msg is truncated to MaxMessageLen.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: Truncate(msg)}
}

// Wrap returns an Error of the given kind whose message includes err and
// whose cause chain is preserved for errors.Is/As.
func Wrap(kind Kind, msg string, err error) *Error {
	if err != nil {
		msg = Truncate(fmt.Sprintf("%s: %v", msg, err))
	}
	return &Error{Kind: kind, Message: Truncate(msg), cause: err}
}

// WithDetails attaches structured details and returns the error.
func (e *Error) WithDetails(details map[string]string) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error of the same Kind, so sentinel-style
// checks like errors.Is(err, errs.New(errs.KindConflict, "")) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else
// KindInternal. A nil err yields the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

// Reason returns the bounded message of err suitable for persisting as a
// fail reason: the Message of an *Error, else err.Error(), truncated.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return Truncate(err.Error())
}

// Truncate bounds s to MaxMessageLen characters.
func Truncate(s string) string {
	if len(s) <= MaxMessageLen {
		return s
	}
	return s[:MaxMessageLen]
}

// Convenience constructors mirroring the taxonomy.

func Validation(msg string) *Error       { return New(KindValidation, msg) }
func Conflict(msg string) *Error         { return New(KindConflict, msg) }
func QuotaExceeded(msg string) *Error    { return New(KindQuotaExceeded, msg) }
func NotFound(msg string) *Error         { return New(KindNotFound, msg) }
func GraphNotReady(msg string) *Error    { return New(KindGraphNotReady, msg) }
func GraphTimeout(msg string) *Error     { return New(KindGraphTimeout, msg) }
func AdminUnavailable(msg string) *Error { return New(KindAdminUnavailable, msg) }
func Internal(msg string) *Error         { return New(KindInternal, msg) }
