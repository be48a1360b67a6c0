// Package apperr defines the error taxonomy shared by every service and
// handler in the control plane. internal/httpserver renders it into the HTTP
// error envelope.
package apperr

import "fmt"

// Kind enumerates the domain error kinds a service layer may return. Kinds,
// not concrete Go types, are what handlers switch on when mapping to HTTP.
type Kind string

const (
	KindDatabase           Kind = "DATABASE_ERROR"
	KindCrypto             Kind = "CRYPTO_ERROR"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindInsufficientScope  Kind = "INSUFFICIENT_SCOPE"
	KindInvalidToken       Kind = "INVALID_TOKEN"
	KindRateLimitExceeded  Kind = "RATE_LIMIT_EXCEEDED"
	KindTooManyRequests    Kind = "TOO_MANY_REQUESTS"
	KindInternal           Kind = "INTERNAL_ERROR"
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindCapacityExceeded   Kind = "CAPACITY_EXCEEDED"
)

// Error is the concrete carrier for a Kind plus whatever optional fields the
// HTTP envelope needs for that kind. The wrapped Cause is logged once with a
// correlation hash and never rendered to the client.
type Error struct {
	Kind           Kind
	Message        string
	RequiredScope  string
	ProvidedScopes []string
	RetryAfterSecs int
	Cause          error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a plain Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches an internal cause to a kind, without leaking cause details
// into Message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Database wraps a repository-layer failure. Repositories only ever return
// this kind; services translate into more specific domain kinds as needed.
func Database(cause error) *Error {
	return &Error{Kind: KindDatabase, Message: "a database error occurred", Cause: cause}
}

// Crypto wraps a cryptographic failure. Never surfaces cause details.
func Crypto(cause error) *Error {
	return &Error{Kind: KindCrypto, Message: "a cryptographic operation failed", Cause: cause}
}

// NotFound builds a NotFound error for the given resource.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// InsufficientScope builds the 403 variant carrying required/provided scopes.
func InsufficientScope(required string, provided []string) *Error {
	return &Error{
		Kind:           KindInsufficientScope,
		Message:        fmt.Sprintf("requires scope: %s", required),
		RequiredScope:  required,
		ProvidedScopes: provided,
	}
}

// RateLimitExceeded builds the 429 variant used by the token-issue lockout.
func RateLimitExceeded(retryAfterSecs int) *Error {
	return &Error{
		Kind:           KindRateLimitExceeded,
		Message:        "too many failed attempts, try again later",
		RetryAfterSecs: retryAfterSecs,
	}
}

// TooManyRequests builds the general 429 variant used by IP-based limiters.
func TooManyRequests(message string, retryAfterSecs int) *Error {
	return &Error{Kind: KindTooManyRequests, Message: message, RetryAfterSecs: retryAfterSecs}
}

// CapacityExceeded builds the org concurrent-meeting-cap error.
func CapacityExceeded() *Error {
	return &Error{Kind: KindCapacityExceeded, Message: "organization has reached its concurrent meeting limit"}
}

// InvalidToken builds the generic invalid-token error. The reason is never
// included in Message — callers pass it only for server-side logging.
func InvalidToken() *Error {
	return &Error{Kind: KindInvalidToken, Message: "invalid token"}
}

// InvalidCredentials builds the generic 401 used by the token service.
func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "invalid client or credentials"}
}

// Internal builds a generic internal-error response.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "an internal error occurred", Cause: cause}
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
