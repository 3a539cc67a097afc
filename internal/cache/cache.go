package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// ClaimKey generates a cache key for a verification of claim by provider.
// Claims differing only in case or surrounding whitespace share a key.
func ClaimKey(provider, claim string) string {
	norm := strings.ToLower(strings.TrimSpace(claim))
	hash := sha256.Sum256([]byte(provider + "\x00" + norm))
	return "truthwire:v1:" + hex.EncodeToString(hash[:])
}
