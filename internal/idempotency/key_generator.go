package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// UpdateKey derives the dedup key for a Telegram update.
func UpdateKey(updateID int) string {
	return GenerateKey("update", updateID)
}

// GenerateKey builds a deterministic key using all provided parts.
func GenerateKey(parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return hex.EncodeToString(h.Sum(nil))
}
