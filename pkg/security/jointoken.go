package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// joinTokenBytes is the amount of entropy behind a generated join token.
const joinTokenBytes = 32

// GenerateJoinToken returns a fresh, URL-safe join token for a Coordinator
// run. Agents present this token when enrolling so the
// Coordinator's CertAuthority will issue them a certificate.
func GenerateJoinToken() (string, error) {
	buf := make([]byte, joinTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate join token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// JoinTokenValidator checks enrollment requests against the token the
// Coordinator was started with. It stores only a hash of the token so the
// plaintext never lingers in memory longer than necessary.
type JoinTokenValidator struct {
	hash [sha256.Size]byte
}

// NewJoinTokenValidator builds a validator for the given token.
func NewJoinTokenValidator(token string) *JoinTokenValidator {
	return &JoinTokenValidator{hash: sha256.Sum256([]byte(token))}
}

// Validate reports whether candidate matches the token the validator was
// built with, using a constant-time comparison.
func (v *JoinTokenValidator) Validate(candidate string) bool {
	candidateHash := sha256.Sum256([]byte(candidate))
	return subtle.ConstantTimeCompare(v.hash[:], candidateHash[:]) == 1
}
