package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/objinspect/inspection-service/config"
	"github.com/objinspect/inspection-service/detections"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReportCache memoizes inspection reports in redis, keyed by image content
// and output mode. A nil *ReportCache is a disabled cache; every method is
// nil-safe so handlers never branch on availability.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportCache connects to redis when configured. An empty address or a
// failed ping disables caching rather than failing startup.
func NewReportCache(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) *ReportCache {
	if cfg.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, report cache disabled", zap.Error(err))
		client.Close()
		return nil
	}

	return &ReportCache{client: client, ttl: cfg.TTL, logger: logger}
}

// Key derives the cache key for an image payload under an output mode.
func (c *ReportCache) Key(imageBytes []byte, mode detections.OutputMode) string {
	sum := sha256.Sum256(imageBytes)
	return "report:" + hex.EncodeToString(sum[:]) + ":" + mode.String()
}

// Get returns a cached report, or ok == false on miss, error, or disabled
// cache.
func (c *ReportCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("report cache get failed", zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// Set stores a report. Failures are logged and swallowed; the cache is an
// optimization, never a dependency.
func (c *ReportCache) Set(ctx context.Context, key string, report []byte) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, key, report, c.ttl).Err(); err != nil {
		c.logger.Warn("report cache set failed", zap.Error(err))
	}
}

func (c *ReportCache) Close() {
	if c != nil {
		c.client.Close()
	}
}
