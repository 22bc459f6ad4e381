package crypto

import "nsyte/internal/domain"

// Fingerprint returns a short, log-friendly form of a public key.
//
// It keeps the first 8 and last 4 hex characters.
func Fingerprint(pub domain.PublicKey) string {
	s := string(pub)
	if len(s) <= 12 {
		return s
	}
	return s[:8] + ".." + s[len(s)-4:]
}
