package security

import "testing"

func TestArgon2HashVerifyRoundTrip(t *testing.T) {
	h := NewArgon2Hasher(nil)

	encoded, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !h.Verify("correct horse battery staple", encoded) {
		t.Error("expected verify to succeed with correct password")
	}
	if h.Verify("wrong password", encoded) {
		t.Error("expected verify to fail with wrong password")
	}
}

func TestArgon2VerifyMalformedHash(t *testing.T) {
	h := NewArgon2Hasher(nil)
	if h.Verify("anything", "not-a-valid-hash") {
		t.Error("expected verify to return false for malformed hash, never error")
	}
}

func TestArgon2CustomParamsStillRoundTrips(t *testing.T) {
	h := NewArgon2Hasher(&Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	encoded, err := h.Hash("another-password-1!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !h.Verify("another-password-1!", encoded) {
		t.Error("expected verify to succeed")
	}
}
