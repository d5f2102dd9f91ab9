package client

// attestationToken identifies this build to the verification server. It is
// injected at build time for trusted distributions:
//
//	go build -ldflags "-X github.com/lennox-rose/blueprint-licensing/internal/client.attestationToken=<token>"
//
// An untouched (or rebuilt) binary carries no token and is rejected by the
// server's integrity check.
var attestationToken string

// AttestationToken returns the build attestation token sent as the
// controller_hash wire field.
func AttestationToken() string {
	return attestationToken
}

// SetAttestationTokenForTesting overrides the token. Tests only.
func SetAttestationTokenForTesting(token string) {
	attestationToken = token
}
