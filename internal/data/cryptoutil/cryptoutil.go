// Package cryptoutil provides callback secret generation and payload signing
// for work item webhooks.
package cryptoutil

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// secretBytes is the entropy of a generated callback secret. 32 bytes keeps
// brute-forcing infeasible while the URL-safe encoding stays header-friendly.
const secretBytes = 32

// NewCallbackSecret produces a unique, cryptographically random per-item
// secret in URL-safe base64.
func NewCallbackSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate callback secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Sign computes the hex-encoded HMAC-SHA256 of the exact raw payload bytes,
// keyed by the item's secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over payload and compares it against the
// provided hex signature in constant time. It returns false, never an error,
// for empty or malformed signature input.
func Verify(payload []byte, providedSignature, secret string) bool {
	if secret == "" {
		return false
	}
	sig := strings.TrimSpace(providedSignature)
	if sig == "" {
		return false
	}
	decoded, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(decoded, mac.Sum(nil))
}
