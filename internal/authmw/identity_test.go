package authmw

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/crypto"
)

func TestOrgContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := OrgFromContext(ctx); ok {
		t.Fatal("OrgFromContext(empty context): expected ok=false")
	}

	org := Org{OrgID: uuid.New(), Subdomain: "acme"}
	ctx = WithOrg(ctx, org)

	got, ok := OrgFromContext(ctx)
	if !ok {
		t.Fatal("OrgFromContext(): expected ok=true")
	}
	if got != org {
		t.Fatalf("OrgFromContext() = %+v, want %+v", got, org)
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := IdentityFromContext(ctx); ok {
		t.Fatal("IdentityFromContext(empty context): expected ok=false")
	}

	id := Identity{Subject: "svc-1", Scopes: []string{"admin:services"}}
	ctx = WithIdentity(ctx, id)

	got, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatal("IdentityFromContext(): expected ok=true")
	}
	if got.Subject != id.Subject {
		t.Fatalf("IdentityFromContext().Subject = %q, want %q", got.Subject, id.Subject)
	}
}

func TestIdentityHasScope(t *testing.T) {
	id := Identity{Scopes: []string{"meeting:create", "meeting:join"}}
	if !id.HasScope("meeting:create") {
		t.Fatal("HasScope(meeting:create): expected true")
	}
	if id.HasScope("admin:services") {
		t.Fatal("HasScope(admin:services): expected false")
	}
}

func TestIdentityFromClaimsServiceToken(t *testing.T) {
	claims := &crypto.Claims{
		Subject:     "gc-1",
		Scope:       "internal:registry internal:mint-tokens",
		ServiceType: "global_controller",
	}
	id := identityFromClaims(claims)

	if id.ServiceType != "global_controller" {
		t.Fatalf("ServiceType = %q, want %q", id.ServiceType, "global_controller")
	}
	if id.UserID != nil {
		t.Fatalf("UserID = %v, want nil for a service token", id.UserID)
	}
	want := []string{"internal:registry", "internal:mint-tokens"}
	if len(id.Scopes) != len(want) {
		t.Fatalf("Scopes = %v, want %v", id.Scopes, want)
	}
	for i := range want {
		if id.Scopes[i] != want[i] {
			t.Fatalf("Scopes = %v, want %v", id.Scopes, want)
		}
	}
}

func TestIdentityFromClaimsUserToken(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	claims := &crypto.Claims{
		Subject: userID.String(),
		OrgID:   orgID.String(),
		Email:   "a@example.com",
		Roles:   []string{"member"},
	}
	id := identityFromClaims(claims)

	if id.UserID == nil || *id.UserID != userID {
		t.Fatalf("UserID = %v, want %v", id.UserID, userID)
	}
	if id.OrgID == nil || *id.OrgID != orgID {
		t.Fatalf("OrgID = %v, want %v", id.OrgID, orgID)
	}
	if id.Email != "a@example.com" {
		t.Fatalf("Email = %q, want %q", id.Email, "a@example.com")
	}
}

func TestSplitScopeHandlesRepeatedSpaces(t *testing.T) {
	got := splitScope("a  b   c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitScope() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitScope() = %v, want %v", got, want)
		}
	}
}

func TestSplitScopeEmpty(t *testing.T) {
	if got := splitScope(""); len(got) != 0 {
		t.Fatalf("splitScope(\"\") = %v, want empty", got)
	}
}
