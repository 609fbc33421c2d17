package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// CorrelationIDLength is the number of hex characters kept from the digest.
const CorrelationIDLength = 16

// CorrelationID derives the prompt correlation identifier: the first 16 hex
// characters of the SHA-256 digest of the prompt. It links telemetry for
// identical prompts without carrying any of their content.
func CorrelationID(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])[:CorrelationIDLength]
}
