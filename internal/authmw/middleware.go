package authmw

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/crypto"
	"github.com/wisbric/meetplane/internal/httpserver"
	"github.com/wisbric/meetplane/internal/repository"
)

const maxBearerTokenBytes = 8192

// OrgExtractor resolves the tenant organization from the request Host header
// and injects it into the request context. Organizations are looked up
// read-only; no write happens on this path.
func OrgExtractor(orgs *repository.OrganizationRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subdomain, err := subdomainFromHost(r.Host)
			if err != nil {
				httpserver.RespondAppError(w, httpserver.BearerRealm(r.Host), apperr.InvalidToken())
				return
			}

			org, err := orgs.GetBySubdomain(r.Context(), subdomain)
			if err != nil {
				httpserver.RespondError(w, http.StatusNotFound, "not_found", "organization not found")
				return
			}

			ctx := WithOrg(r.Context(), Org{OrgID: org.OrgID, Subdomain: org.Subdomain})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// subdomainFromHost strips the port, requires a subdomain label in front of
// a domain of at least two labels (so a bare domain is rejected), rejects an
// all-numeric label set (IP literals), and validates the leading label as a
// lowercase alnum-and-hyphen subdomain that does not start or end with a
// hyphen.
func subdomainFromHost(host string) (string, error) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return "", errors.New("host has no subdomain")
	}

	if isNumericHost(parts) {
		return "", errors.New("host is an IP literal")
	}

	sub := parts[0]
	if !isValidSubdomain(sub) {
		return "", errors.New("invalid subdomain")
	}
	return sub, nil
}

func isNumericHost(parts []string) bool {
	for _, p := range parts {
		if !isAllDigits(p) {
			return false
		}
	}
	return true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isValidSubdomain(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for _, r := range s {
		isLower := r >= 'a' && r <= 'z'
		isDigit := r >= '0' && r <= '9'
		if !isLower && !isDigit && r != '-' {
			return false
		}
	}
	return true
}

// Bearer validates the Authorization header against resolve (typically a
// *JWKSCache's Resolve method) and injects the resolved Identity into the
// request context. The WWW-Authenticate realm is derived from the request
// Host on every failure.
func Bearer(resolve crypto.KeyResolver, clockSkewSeconds int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			realm := httpserver.BearerRealm(r.Host)

			token, err := extractBearerToken(r)
			if err != nil {
				httpserver.RespondAppError(w, realm, apperr.InvalidToken())
				return
			}

			claims, err := crypto.VerifyJWT(token, resolve, clockSkewSeconds)
			if err != nil {
				httpserver.RespondAppError(w, realm, apperr.InvalidToken())
				return
			}

			ctx := WithIdentity(r.Context(), identityFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope wraps Bearer's output and additionally requires requiredScope
// to be present in the resolved identity's scopes.
func RequireScope(requiredScope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			realm := httpserver.BearerRealm(r.Host)
			id, ok := IdentityFromContext(r.Context())
			if !ok || !id.HasScope(requiredScope) {
				httpserver.RespondAppError(w, realm, apperr.InsufficientScope(requiredScope, id.Scopes))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("wrong authorization scheme")
	}
	token := strings.TrimPrefix(header, prefix)
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	if len(token) > maxBearerTokenBytes {
		return "", errors.New("bearer token too large")
	}
	return token, nil
}
