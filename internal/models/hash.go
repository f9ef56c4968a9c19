package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// contentHash derives a hex-encoded SHA-256 digest from an ordered list of
// field values. Fields are joined with an unprintable separator so that
// adjacent values cannot collide by concatenation.
func contentHash(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}
