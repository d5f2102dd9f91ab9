// Package signing implements the verdict signature protocol shared by the
// verification server and the verifying client: HMAC-SHA256 over the
// pipe-joined payload `licenseKey|timestamp|domain`, hex encoded.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Payload builds the canonical signing payload for a verdict.
func Payload(licenseKey string, timestamp int64, domain string) string {
	return fmt.Sprintf("%s|%d|%s", licenseKey, timestamp, domain)
}

// Sign computes the hex HMAC-SHA256 signature of a verdict.
func Sign(licenseKey string, timestamp int64, domain, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Payload(licenseKey, timestamp, domain)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the expected signature and compares it in constant time.
func Verify(licenseKey string, timestamp int64, domain, secret, signature string) bool {
	expected := Sign(licenseKey, timestamp, domain, secret)
	return ConstantTimeEqual(expected, signature)
}

// ConstantTimeEqual compares two strings without leaking how far they match.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
