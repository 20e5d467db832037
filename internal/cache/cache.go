package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"time"
)

// Cache stores raw abstract-service responses
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// QueryKey derives a cache key from an endpoint and its query parameters.
// url.Values.Encode sorts keys, so parameter order does not matter.
func QueryKey(endpoint string, params url.Values) string {
	hash := sha256.Sum256([]byte(endpoint + "?" + params.Encode()))
	return "absredact:v1:" + hex.EncodeToString(hash[:])
}
