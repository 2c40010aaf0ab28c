// Package evidence provides content hashing and the archival store used when
// a manifest's evidenceLevel requires it (spec §3, §8 round-trip law).
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the hex-encoded SHA-256 digest of the given bytes.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// VerifyHash reports whether content hashes to the given digest. This is the
// round-trip law from spec §8: VerifyHash(x, HashContent(x)) == true for any x.
func VerifyHash(content []byte, digest string) bool {
	return HashContent(content) == digest
}
