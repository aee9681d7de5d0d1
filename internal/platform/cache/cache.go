package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache stores opaque byte values. Misses are (nil, false, nil); err is reserved for
// backend failures, which callers treat as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix drops every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

const keyPrefix = "patternlens:v1:"

// Key joins parts into a namespaced key. Long parts are hashed to keep keys bounded.
func Key(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if len(p) > 64 {
			sum := sha256.Sum256([]byte(p))
			p = hex.EncodeToString(sum[:12])
		}
		clean = append(clean, p)
	}
	return keyPrefix + strings.Join(clean, ":")
}

// Prefix is Key for a namespace, with the trailing separator.
func Prefix(parts ...string) string {
	return Key(parts...) + ":"
}
