package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatchSize is the COUNT hint used when scanning for a shop's keys
const scanBatchSize = 200

// RedisReportCache stores computed reports as JSON in Redis
type RedisReportCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisReportCache creates a report cache on an existing client
func NewRedisReportCache(client redis.UniversalClient, keyPrefix string) *RedisReportCache {
	if keyPrefix == "" {
		keyPrefix = "ordersync:report:"
	}
	return &RedisReportCache{client: client, keyPrefix: keyPrefix}
}

// Get loads key into dest and reports whether it was present
func (c *RedisReportCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read report %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode report %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key for ttl
func (c *RedisReportCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write report %s: %w", key, err)
	}
	return nil
}

// InvalidateShop deletes every report of the shop
func (c *RedisReportCache) InvalidateShop(ctx context.Context, shopID int64) error {
	pattern := c.keyPrefix + shopKeyPrefix(shopID) + "*"
	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()

	keys := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatchSize {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to invalidate reports of shop %d: %w", shopID, err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan reports of shop %d: %w", shopID, err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate reports of shop %d: %w", shopID, err)
		}
	}
	return nil
}

// shopKeyPrefix is the prefix shared by all report keys of a shop
func shopKeyPrefix(shopID int64) string {
	return "geo:" + strconv.FormatInt(shopID, 10) + ":"
}
