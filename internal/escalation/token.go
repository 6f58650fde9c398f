package escalation

import (
	"crypto/rand"
	"encoding/hex"
)

// NewClaimToken returns a 256-bit random token, hex-encoded. The token is the
// only credential on a claim link, so it must come from crypto/rand.
func NewClaimToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
