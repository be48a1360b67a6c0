package crypto

import "testing"

func TestGenerateSigningKeyRoundTrip(t *testing.T) {
	pubPEM, privDER, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey() error: %v", err)
	}

	pub, err := ParsePublicKeyPEM(pubPEM)
	if err != nil {
		t.Fatalf("ParsePublicKeyPEM() error: %v", err)
	}

	priv, err := ParsePrivateKeyPKCS8(privDER)
	if err != nil {
		t.Fatalf("ParsePrivateKeyPKCS8() error: %v", err)
	}

	if !priv.Public().(interface{ Equal(any) bool }).Equal(pub) {
		t.Fatal("parsed public key does not match the private key's public half")
	}
}

func TestPublicKeyRawBytesIs32Bytes(t *testing.T) {
	pubPEM, _, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey() error: %v", err)
	}

	raw, err := PublicKeyRawBytes(pubPEM)
	if err != nil {
		t.Fatalf("PublicKeyRawBytes() error: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("raw public key length = %d, want 32", len(raw))
	}
}

func TestParsePublicKeyPEMRejectsGarbage(t *testing.T) {
	if _, err := ParsePublicKeyPEM("not a pem block"); err == nil {
		t.Fatal("expected error for invalid PEM, got nil")
	}
}
