package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// reportPayloadPrefix is the Redis key prefix for cached bureau payloads.
const reportPayloadPrefix = "report:payload:"

// ErrReportCacheMiss indicates no fresh payload is cached for the source.
var ErrReportCacheMiss = errors.New("report payload not cached")

// reportPayloadKey derives the cache key for one (source, user, idNumber)
// triple. The ID number is hashed so it never appears in Redis keys.
func reportPayloadKey(source, userID, idNumber string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + idNumber))
	return reportPayloadPrefix + source + ":" + hex.EncodeToString(sum[:16])
}

// GetReportPayload returns a cached bureau payload if one is still fresh.
func (c *Cache) GetReportPayload(ctx context.Context, source, userID, idNumber string) ([]byte, error) {
	payload, err := c.client.Get(ctx, reportPayloadKey(source, userID, idNumber)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrReportCacheMiss
		}
		return nil, err
	}
	return payload, nil
}

// SetReportPayload caches a successful bureau payload for the freshness window.
func (c *Cache) SetReportPayload(ctx context.Context, source, userID, idNumber string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, reportPayloadKey(source, userID, idNumber), payload, ttl).Err()
}
