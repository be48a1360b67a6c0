package crypto

import "testing"

func TestHashVerifySecretRoundTrip(t *testing.T) {
	hash, err := HashSecret("s3cr3t-value")
	if err != nil {
		t.Fatalf("HashSecret() error: %v", err)
	}

	if !VerifySecret("s3cr3t-value", hash) {
		t.Fatal("VerifySecret() with correct secret = false, want true")
	}
	if VerifySecret("wrong-value", hash) {
		t.Fatal("VerifySecret() with wrong secret = true, want false")
	}
}

func TestVerifySecretAgainstDummyHashAlwaysFails(t *testing.T) {
	if VerifySecret("anything", DummySecretHash) {
		t.Fatal("VerifySecret() against DummySecretHash = true, want false")
	}
}

func TestGenerateClientSecretIsUnique(t *testing.T) {
	a, err := GenerateClientSecret()
	if err != nil {
		t.Fatalf("GenerateClientSecret() error: %v", err)
	}
	b, err := GenerateClientSecret()
	if err != nil {
		t.Fatalf("GenerateClientSecret() error: %v", err)
	}
	if a == b {
		t.Fatal("GenerateClientSecret() produced the same value twice")
	}
}

func TestHashForCorrelationIsStableAndShort(t *testing.T) {
	a := HashForCorrelation("client-123")
	b := HashForCorrelation("client-123")
	if a != b {
		t.Fatalf("HashForCorrelation() not stable: %q != %q", a, b)
	}
	if len(a) != 8 {
		t.Fatalf("HashForCorrelation() length = %d, want 8", len(a))
	}
	if HashForCorrelation("client-124") == a {
		t.Fatal("HashForCorrelation() collided for different inputs")
	}
}
