// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vidsync/internal/model"
)

// RedisCache is a Redis-backed SnapshotCache, for devices that share a
// snapshot tier with a companion process.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger
	ttl    time.Duration
	stats  struct {
		hits   atomic.Int64
		misses atomic.Int64
		puts   atomic.Int64
	}
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
	TTL      time.Duration
}

// NewRedisCache creates a Redis-backed snapshot cache.
func NewRedisCache(config RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", config.Addr).
		Int("db", config.DB).
		Msg("connected to Redis snapshot cache")

	return &RedisCache{client: client, logger: logger, ttl: config.TTL}, nil
}

func snapshotKey(account string) string {
	return "vidsync:snapshot:" + account
}

// Get retrieves a snapshot from Redis. Any Redis failure is treated as a
// miss; the offline fallback path must never fail because of the cache.
func (c *RedisCache) Get(account string) (*model.SyncRecord, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, snapshotKey(account)).Bytes()
	if err == redis.Nil {
		c.stats.misses.Add(1)
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("account", account).Msg("redis get failed")
		c.stats.misses.Add(1)
		return nil, false
	}

	var rec model.SyncRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		c.logger.Warn().Err(err).Str("account", account).Msg("snapshot unmarshal failed")
		c.stats.misses.Add(1)
		return nil, false
	}
	rec.Normalize()

	c.stats.hits.Add(1)
	return &rec, true
}

// Put stores a snapshot with the configured TTL.
func (c *RedisCache) Put(account string, record model.SyncRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(record)
	if err != nil {
		c.logger.Warn().Err(err).Str("account", account).Msg("snapshot marshal failed")
		return
	}
	if err := c.client.Set(ctx, snapshotKey(account), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("account", account).Msg("redis set failed")
		return
	}
	c.stats.puts.Add(1)
}

// Delete removes the snapshot for the account.
func (c *RedisCache) Delete(account string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, snapshotKey(account)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("account", account).Msg("redis delete failed")
	}
}

// Stats returns cache statistics.
func (c *RedisCache) Stats() CacheStats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	size, err := c.client.DBSize(ctx).Result()
	if err != nil {
		c.logger.Warn().Err(err).Msg("redis dbsize failed")
		size = 0
	}

	return CacheStats{
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Puts:        c.stats.puts.Load(),
		CurrentSize: int(size),
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// HealthCheck checks if Redis is available.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
