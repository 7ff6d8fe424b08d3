package signature

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func TestSignProducesStableHexDigest(t *testing.T) {
	got, err := Sign("key1salt1userid", "secret")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if len(got) != 64 {
		t.Errorf("digest length = %d, want 64", len(got))
	}
	if got != strings.ToLower(got) {
		t.Errorf("digest %q is not lowercase", got)
	}

	again, err := Sign("key1salt1userid", "secret")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if got != again {
		t.Errorf("Sign() is not deterministic: %q vs %q", got, again)
	}
}

func TestSignRejectsBlankInputs(t *testing.T) {
	if _, err := Sign("  ", "secret"); err != ErrEmptyMessage {
		t.Errorf("blank message: err = %v, want ErrEmptyMessage", err)
	}
	if _, err := Sign("message", ""); err != ErrEmptySecret {
		t.Errorf("blank secret: err = %v, want ErrEmptySecret", err)
	}
}

func TestVerify(t *testing.T) {
	digest, err := Sign("payload", "secret")
	if err != nil {
		t.Fatal(err)
	}

	if !Verify("payload", "secret", digest) {
		t.Error("Verify() = false for a valid digest")
	}
	if !Verify("payload", "secret", strings.ToUpper(digest)) {
		t.Error("Verify() = false for an uppercase digest")
	}
	if Verify("payload", "secret", digest[:63]+"0") {
		t.Error("Verify() = true for a tampered digest")
	}
	if Verify("payload", "other-secret", digest) {
		t.Error("Verify() = true under the wrong secret")
	}
	if Verify("other payload", "secret", digest) {
		t.Error("Verify() = true for a different message")
	}
	if Verify("", "secret", digest) {
		t.Error("Verify() = true for a blank message")
	}
}

func TestNewSaltLengthAndCharset(t *testing.T) {
	salt, err := NewSalt(16)
	if err != nil {
		t.Fatalf("NewSalt() error = %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(salt)
	if err != nil {
		t.Fatalf("salt %q is not URL-safe base64: %v", salt, err)
	}
	if len(raw) != 16 {
		t.Errorf("salt decodes to %d bytes, want 16", len(raw))
	}

	// Below the minimum is raised, never truncated.
	short, err := NewSalt(4)
	if err != nil {
		t.Fatal(err)
	}
	raw, err = base64.RawURLEncoding.DecodeString(short)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) < MinSaltBytes {
		t.Errorf("salt decodes to %d bytes, want at least %d", len(raw), MinSaltBytes)
	}
}

func TestNewSaltIsFresh(t *testing.T) {
	a, _ := NewSalt(16)
	b, _ := NewSalt(16)
	if a == b {
		t.Error("two salts are identical")
	}
}

func TestTimestamp(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	at := time.Date(2024, 3, 5, 13, 45, 9, 0, loc)
	if got := Timestamp(at); got != "20240305T124509" {
		t.Errorf("Timestamp() = %q, want 20240305T124509", got)
	}
}
