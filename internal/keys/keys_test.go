package keys

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateKeyIDFormat(t *testing.T) {
	fixed := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	svc := &Service{clusterID: "us-east-1", now: func() time.Time { return fixed }}

	id := svc.generateKeyID()

	if !strings.HasPrefix(id, "auth-us-east-1-2026-") {
		t.Fatalf("generateKeyID() = %q, want prefix %q", id, "auth-us-east-1-2026-")
	}
}

func TestValidityConstantsOrdering(t *testing.T) {
	// The forced rotation gap must be strictly shorter than the normal one,
	// or Rotate's force path would never unlock anything a normal rotation
	// wouldn't already allow.
	if forceRotationGap >= normalRotationGap {
		t.Fatalf("forceRotationGap (%v) must be shorter than normalRotationGap (%v)", forceRotationGap, normalRotationGap)
	}
	if validityPeriod <= normalRotationGap {
		t.Fatalf("validityPeriod (%v) must exceed normalRotationGap (%v), or a key could expire before its rotation gap elapses", validityPeriod, normalRotationGap)
	}
}
