package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload(t *testing.T) {
	assert.Equal(t, "ABC-123|1700000000|panel.example.com",
		Payload("ABC-123", 1700000000, "panel.example.com"))
}

func TestSign(t *testing.T) {
	got := Sign("ABC-123", 1700000000, "panel.example.com", "secret")

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("ABC-123|1700000000|panel.example.com"))
	want := hex.EncodeToString(mac.Sum(nil))

	require.Equal(t, want, got)
	assert.Len(t, got, 64)
}

func TestVerify(t *testing.T) {
	const (
		key    = "ABC-123"
		domain = "panel.example.com"
		secret = "secret"
		ts     = int64(1700000000)
	)
	sig := Sign(key, ts, domain, secret)

	tests := []struct {
		name      string
		key       string
		ts        int64
		domain    string
		secret    string
		signature string
		want      bool
	}{
		{"valid signature", key, ts, domain, secret, sig, true},
		{"wrong secret", key, ts, domain, "other-secret", sig, false},
		{"wrong domain", key, ts, "evil.example.com", secret, sig, false},
		{"wrong timestamp", key, ts + 1, domain, secret, sig, false},
		{"wrong key", "XYZ-999", ts, domain, secret, sig, false},
		{"empty signature", key, ts, domain, secret, "", false},
		{"truncated signature", key, ts, domain, secret, sig[:32], false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(tt.key, tt.ts, tt.domain, tt.secret, tt.signature))
		})
	}
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("abc", "abc"))
	assert.False(t, ConstantTimeEqual("abc", "abd"))
	assert.False(t, ConstantTimeEqual("abc", "abcd"))
	assert.True(t, ConstantTimeEqual("", ""))
}
