package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/wisbric/meetplane/internal/apperr"
)

// ErrorBody is the bit-exact error envelope carried under the "error" key.
type ErrorBody struct {
	Code              string   `json:"code"`
	Message           string   `json:"message"`
	RequiredScope     string   `json:"required_scope,omitempty"`
	ProvidedScopes    []string `json:"provided_scopes,omitempty"`
	RetryAfterSeconds *int     `json:"retry_after_seconds,omitempty"`
}

// ErrorResponse wraps ErrorBody under the "error" key, matching the contract.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Respond writes v as a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// RespondError writes a generic {"error":{"code","message"}} envelope. Used
// for request-decoding/validation failures that precede any domain error.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	Respond(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// kindStatus maps an apperr.Kind to its HTTP status code.
func kindStatus(k apperr.Kind) int {
	switch k {
	case apperr.KindInvalidCredentials, apperr.KindInvalidToken:
		return http.StatusUnauthorized
	case apperr.KindInsufficientScope:
		return http.StatusForbidden
	case apperr.KindRateLimitExceeded, apperr.KindTooManyRequests, apperr.KindCapacityExceeded:
		return http.StatusTooManyRequests
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindDatabase, apperr.KindCrypto, apperr.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// RespondAppError renders an *apperr.Error as the standard error envelope,
// attaching WWW-Authenticate on 401/403 and Retry-After on 429 variants.
// CAPACITY_EXCEEDED is rendered as 429 even though it shares the
// TooManyRequests status family rather than a dedicated one.
func RespondAppError(w http.ResponseWriter, realm string, err *apperr.Error) {
	status := kindStatus(err.Kind)

	body := ErrorBody{
		Code:           string(err.Kind),
		Message:        err.Message,
		RequiredScope:  err.RequiredScope,
		ProvidedScopes: err.ProvidedScopes,
	}
	if err.RetryAfterSecs > 0 {
		secs := err.RetryAfterSecs
		body.RetryAfterSeconds = &secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q, error="invalid_token"`, realm))
	case http.StatusForbidden:
		desc := ""
		if err.RequiredScope != "" {
			desc = fmt.Sprintf(`, error_description="Requires scope: %s"`, err.RequiredScope)
		}
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q, error="insufficient_scope"%s`, realm, desc))
	}

	Respond(w, status, ErrorResponse{Error: body})
}

// BearerRealm derives a WWW-Authenticate realm from the request host,
// stripping any port.
func BearerRealm(host string) string {
	return strings.SplitN(host, ":", 2)[0]
}
