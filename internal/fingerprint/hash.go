// Package fingerprint turns client addresses into salted, one-way visitor ids.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Unknown is the address recorded when no client address could be determined.
const Unknown = "unknown"

// Hash returns the hex SHA-256 of addr||salt. Empty or sentinel addresses are
// hashed like any other value.
func Hash(addr, salt string) string {
	sum := sha256.Sum256([]byte(addr + salt))
	return hex.EncodeToString(sum[:])
}
