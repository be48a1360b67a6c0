package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// EncryptPrivateKey wraps a PKCS#8 private key under a 32-byte master key
// using AES-256-GCM with a freshly sampled nonce. The returned tag is the
// authentication tag split out from the sealed box, since the signing_keys
// table stores ciphertext and tag in separate columns rather than one blob.
func EncryptPrivateKey(pkcs8, masterKey []byte) (ciphertext, nonce, tag []byte, err error) {
	if len(masterKey) != 32 {
		return nil, nil, nil, wrapErr("encrypt private key", fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey)))
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, nil, nil, wrapErr("build AES cipher", err)
	}

	gcm, err := cipher.NewGCMWithTagSize(block, gcmTagSize)
	if err != nil {
		return nil, nil, nil, wrapErr("build GCM mode", err)
	}

	nonce = make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, wrapErr("sample nonce", err)
	}

	sealed := gcm.Seal(nil, nonce, pkcs8, nil)
	split := len(sealed) - gcmTagSize
	ciphertext = sealed[:split]
	tag = sealed[split:]

	return ciphertext, nonce, tag, nil
}

// DecryptPrivateKey reverses EncryptPrivateKey, recombining the ciphertext
// and tag before opening the GCM box.
func DecryptPrivateKey(ciphertext, nonce, tag, masterKey []byte) ([]byte, error) {
	if len(masterKey) != 32 {
		return nil, wrapErr("decrypt private key", fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey)))
	}
	if len(nonce) != gcmNonceSize {
		return nil, wrapErr("decrypt private key", fmt.Errorf("nonce must be %d bytes, got %d", gcmNonceSize, len(nonce)))
	}
	if len(tag) != gcmTagSize {
		return nil, wrapErr("decrypt private key", fmt.Errorf("tag must be %d bytes, got %d", gcmTagSize, len(tag)))
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, wrapErr("build AES cipher", err)
	}

	gcm, err := cipher.NewGCMWithTagSize(block, gcmTagSize)
	if err != nil {
		return nil, wrapErr("build GCM mode", err)
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	nonceCopy := append([]byte{}, nonce...)

	plaintext, err := gcm.Open(nil, nonceCopy, sealed, nil)
	if err != nil {
		return nil, wrapErr("open GCM box", err)
	}

	return plaintext, nil
}
