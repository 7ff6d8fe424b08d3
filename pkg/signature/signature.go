// Package signature implements the HMAC primitive shared with the billing
// backend: hex digests over a deterministic message, URL-safe salts, and the
// compact timestamp format both sides sign.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyMessage = errors.New("signature: message must not be blank")
	ErrEmptySecret  = errors.New("signature: secret must not be blank")
)

// MinSaltBytes is the smallest salt the protocol allows.
const MinSaltBytes = 16

// TimestampLayout is the compact timestamp embedded in signed messages, the
// billing backend validates it for freshness.
const TimestampLayout = "20060102T150405"

// Sign computes the hex HMAC-SHA-256 digest of message under secret.
func Sign(message, secret string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}
	if strings.TrimSpace(secret) == "" {
		return "", ErrEmptySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the digest and compares in constant time. Blank inputs
// and malformed digests verify as false.
func Verify(message, secret, digest string) bool {
	expected, err := Sign(message, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(digest)))
}

// NewSalt returns n random bytes as URL-safe text. Salts are fresh per
// login link and per rotation request, never reused. n below MinSaltBytes
// is raised to MinSaltBytes.
func NewSalt(n int) (string, error) {
	if n < MinSaltBytes {
		n = MinSaltBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Timestamp formats t in UTC using TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
