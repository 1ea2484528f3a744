package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint returns a deterministic SHA-256 fingerprint of value, encoded as
// base64url (43 chars). It is used as a lookup key where the original value
// must not be stored.
func Fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
