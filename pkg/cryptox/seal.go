package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrCiphertextTooShort is returned by Open for input shorter than a nonce.
var ErrCiphertextTooShort = errors.New("cryptox: ciphertext too short")

// sealInfo binds derived keys to their purpose.
const sealInfo = "scrum0 session seal v1"

// Sealer encrypts small secrets (refresh tokens) at rest with
// XChaCha20-Poly1305 under a key derived from caller-supplied material.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 256-bit key from the given secrets using HKDF-SHA256.
// Every non-empty secret contributes; at least one is required.
func NewSealer(secrets ...string) (*Sealer, error) {
	var ikm []byte
	for _, s := range secrets {
		if s == "" {
			continue
		}
		ikm = append(ikm, s...)
		ikm = append(ikm, 0)
	}
	if len(ikm) == 0 {
		return nil, errors.New("cryptox: no key material")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("cryptox: failed to derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext. The output is [24-byte nonce][ciphertext+tag].
// aad is authenticated but not stored; the same value must be given to Open.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open decrypts data produced by Seal.
func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], aad)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decryption failed: %w", err)
	}
	return plaintext, nil
}
