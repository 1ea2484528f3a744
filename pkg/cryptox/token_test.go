package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	fp1a := Fingerprint("https://abcd.supabase.co")
	fp1b := Fingerprint("https://abcd.supabase.co")
	fp2 := Fingerprint("https://efgh.supabase.co")

	// Fingerprint should be deterministic
	require.Equal(t, fp1a, fp1b, "fingerprint should be deterministic")

	require.NotEqual(t, fp1a, fp2, "different values should have different fingerprints")

	// base64url SHA-256 is 43 chars
	require.Len(t, fp1a, 43)
}
