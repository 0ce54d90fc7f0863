package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/concertforge/ticket-engine/pkg/config"
	"github.com/concertforge/ticket-engine/pkg/logger"
)

// RedisClient wraps the go-redis client used by the sliding-window rate limiter
// (internal/infrastructure/cache.RateLimiter). It exposes only the sorted-set and
// expiry commands that limiter actually issues, plus the raw Cmdable for the
// distributed limiter's Lua script.
type RedisClient struct {
	Client    redis.Cmdable
	isCluster bool
}

// NewRedisClient dials a single-node or cluster Redis connection depending on
// cfg.ClusterEnabled, mirroring the teacher's dual-mode construction.
func NewRedisClient(cfg *config.RedisConfig) (*RedisClient, error) {
	var client redis.Cmdable
	var isCluster bool

	if cfg.ClusterEnabled && len(cfg.ClusterAddresses) > 0 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:              cfg.ClusterAddresses,
			Password:           cfg.Password,
			MaxRetries:         cfg.MaxRetries,
			DialTimeout:        cfg.DialTimeout,
			ReadTimeout:        cfg.ReadTimeout,
			WriteTimeout:       cfg.WriteTimeout,
			PoolSize:           cfg.PoolSize,
			MinIdleConns:       cfg.MinIdleConns,
			PoolTimeout:        cfg.PoolTimeout,
			IdleTimeout:        cfg.IdleTimeout,
			IdleCheckFrequency: cfg.IdleCheckFrequency,
			MaxRedirects:       cfg.MaxRedirects,
			RouteByLatency:     cfg.RouteByLatency,
			RouteRandomly:      cfg.RouteRandomly,
		})
		isCluster = true
		logger.Info("Redis cluster client created", "addresses", cfg.ClusterAddresses)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:               fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password:           cfg.Password,
			DB:                 cfg.DB,
			MaxRetries:         cfg.MaxRetries,
			DialTimeout:        cfg.DialTimeout,
			ReadTimeout:        cfg.ReadTimeout,
			WriteTimeout:       cfg.WriteTimeout,
			PoolSize:           cfg.PoolSize,
			MinIdleConns:       cfg.MinIdleConns,
			PoolTimeout:        cfg.PoolTimeout,
			IdleTimeout:        cfg.IdleTimeout,
			IdleCheckFrequency: cfg.IdleCheckFrequency,
		})
		isCluster = false
		logger.Info("Redis single client created", "address", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully")
	return &RedisClient{Client: client, isCluster: isCluster}, nil
}

// Close closes the underlying connection, cluster or single.
func (r *RedisClient) Close() error {
	if r.isCluster {
		if clusterClient, ok := r.Client.(*redis.ClusterClient); ok {
			return clusterClient.Close()
		}
		return nil
	}
	if singleClient, ok := r.Client.(*redis.Client); ok {
		return singleClient.Close()
	}
	return nil
}

// GetClient returns the underlying Cmdable for callers that need commands the
// wrapper doesn't expose, such as DistributedRateLimiter's Eval call.
func (r *RedisClient) GetClient() redis.Cmdable {
	return r.Client
}

// Del deletes one or more keys.
func (r *RedisClient) Del(ctx context.Context, keys ...string) error {
	return r.Client.Del(ctx, keys...).Err()
}

// Expire sets a key's time-to-live.
func (r *RedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return r.Client.Expire(ctx, key, expiration).Err()
}

// ZAdd adds member to the sorted set at key with score, used by the sliding-window
// limiter to record one request timestamp per call.
func (r *RedisClient) ZAdd(ctx context.Context, key, score, member string) (int64, error) {
	s, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid zadd score %q: %w", score, err)
	}
	return r.Client.ZAdd(ctx, key, &redis.Z{Score: s, Member: member}).Result()
}

// ZCard returns the number of members in the sorted set at key.
func (r *RedisClient) ZCard(ctx context.Context, key string) (int64, error) {
	return r.Client.ZCard(ctx, key).Result()
}

// ZRange returns members of the sorted set at key between start and stop by rank.
func (r *RedisClient) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.Client.ZRange(ctx, key, start, stop).Result()
}

// ZRemRangeByScore removes members of the sorted set at key with a score between
// min and max, used to evict entries that have slid out of the rate-limit window.
func (r *RedisClient) ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	return r.Client.ZRemRangeByScore(ctx, key, min, max).Result()
}
