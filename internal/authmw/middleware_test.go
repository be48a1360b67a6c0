package authmw

import (
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wisbric/meetplane/internal/crypto"
	"github.com/wisbric/meetplane/internal/repository"
)

func TestSubdomainFromHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		want    string
		wantErr bool
	}{
		{name: "simple", host: "acme.meetplane.io", want: "acme"},
		{name: "with port", host: "acme.meetplane.io:8443", want: "acme"},
		{name: "nested", host: "acme.eu.meetplane.io", want: "acme"},
		{name: "no subdomain", host: "meetplane.io", wantErr: true},
		{name: "ip literal", host: "127.0.0.1:8080", wantErr: true},
		{name: "leading hyphen", host: "-acme.meetplane.io", wantErr: true},
		{name: "trailing hyphen", host: "acme-.meetplane.io", wantErr: true},
		{name: "uppercase rejected", host: "Acme.meetplane.io", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := subdomainFromHost(tt.host)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("subdomainFromHost(%q): expected error, got nil", tt.host)
				}
				return
			}
			if err != nil {
				t.Fatalf("subdomainFromHost(%q) error: %v", tt.host, err)
			}
			if got != tt.want {
				t.Fatalf("subdomainFromHost(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestOrgExtractorRejectsMalformedHostWithInvalidToken(t *testing.T) {
	orgs := repository.NewOrganizationRepository(nil)
	handler := OrgExtractor(orgs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached for a malformed Host")
	}))

	tests := []string{"192.168.1.1:80", "-acme.darktower.com", "ACME.darktower.com"}
	for _, host := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Host=%q: status = %d, want %d", host, rr.Code, http.StatusUnauthorized)
		}
	}
}

func signedTokenForTest(t *testing.T, scope string) (string, crypto.KeyResolver) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error: %v", err)
	}
	now := time.Now()
	token, err := crypto.SignJWT(crypto.Claims{
		Subject:   "svc-1",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
		Scope:     scope,
	}, priv, "k1")
	if err != nil {
		t.Fatalf("SignJWT() error: %v", err)
	}
	resolve := func(kid string) (ed25519.PublicKey, error) { return pub, nil }
	return token, resolve
}

func TestBearerMiddlewareRejectsMissingHeader(t *testing.T) {
	_, resolve := signedTokenForTest(t, "admin:services")
	handler := Bearer(resolve, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached when the bearer header is missing")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestBearerMiddlewareAcceptsValidToken(t *testing.T) {
	token, resolve := signedTokenForTest(t, "admin:services")
	var gotIdentity Identity
	handler := Bearer(resolve, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		gotIdentity = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !gotIdentity.HasScope("admin:services") {
		t.Fatalf("identity scopes = %v, want admin:services", gotIdentity.Scopes)
	}
}

func TestRequireScopeRejectsMissingScope(t *testing.T) {
	token, resolve := signedTokenForTest(t, "meeting:create")
	handler := Bearer(resolve, 60)(RequireScope("admin:services")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached without the required scope")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRequireScopeAcceptsMatchingScope(t *testing.T) {
	token, resolve := signedTokenForTest(t, "admin:services")
	reached := false
	handler := Bearer(resolve, 60)(RequireScope("admin:services")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !reached {
		t.Fatal("handler was not reached despite a matching scope")
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}
