package vault

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// seal encrypts plaintext with XChaCha20-Poly1305 under the master key.
// Output format: nonce(24) || ciphertext+tag
func seal(masterKey [32]byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(masterKey[:])
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// unseal decrypts data produced by seal.
func unseal(masterKey [32]byte, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(masterKey[:])
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}

	if len(sealed) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return nil, errors.New("sealed value too short")
	}

	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ct := sealed[chacha20poly1305.NonceSizeX:]

	plaintext, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("unseal: %w", err)
	}
	return plaintext, nil
}
