package core

import "time"

// Challenge represents an authentication challenge issued by the verifier.
// The nonce travels to the client as an opaque string; the address that
// signs it is only learned when the signature comes back for verification.
type Challenge struct {
	ID        string    // Unique identifier for the challenge
	Nonce     string    // Opaque string the wallet signs
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// Expired reports whether the challenge is past its expiry at the given time.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
