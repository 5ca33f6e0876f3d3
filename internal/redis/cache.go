package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/randomlysa/hangman-api/internal/config"
	"github.com/randomlysa/hangman-api/internal/domain"
	"github.com/redis/go-redis/v9"
)

// avgAttemptsKey holds the cached average of attempts remaining across
// all active games, refreshed by the background job runner.
const avgAttemptsKey = "games:avg_attempts_remaining"

// Cache provides Redis-backed caching for rankings and game stats
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache creates a new Redis cache
func NewCache(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Ping checks connectivity
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// rankingsKey returns the Redis key for a difficulty's ranking sorted set
func (c *Cache) rankingsKey(difficulty domain.Difficulty) string {
	return fmt.Sprintf("rankings:%d", int(difficulty))
}

// userNameKey returns the Redis key for a user's cached display name
func (c *Cache) userNameKey(userID string) string {
	return fmt.Sprintf("user:%s:name", userID)
}

// SetUserName caches a user's display name for ranking reads
func (c *Cache) SetUserName(ctx context.Context, userID, name string) error {
	err := c.client.Set(ctx, c.userNameKey(userID), name, 0).Err()
	if err != nil {
		return fmt.Errorf("setting user name: %w", err)
	}
	return nil
}

// UpsertRank writes a user's performance into the difficulty's sorted set
func (c *Cache) UpsertRank(ctx context.Context, rank domain.UserRank) error {
	key := c.rankingsKey(rank.Difficulty)
	err := c.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(rank.Performance),
		Member: rank.UserID,
	}).Err()
	if err != nil {
		return fmt.Errorf("upserting rank: %w", err)
	}
	return nil
}

// ReplaceRankings atomically replaces a difficulty's sorted set with a
// freshly computed batch, using pipelining.
func (c *Cache) ReplaceRankings(ctx context.Context, difficulty domain.Difficulty, ranks []domain.UserRank) error {
	key := c.rankingsKey(difficulty)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	for _, rank := range ranks {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(rank.Performance),
			Member: rank.UserID,
		})
		pipe.Set(ctx, c.userNameKey(rank.UserID), rank.UserName, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replacing rankings: %w", err)
	}
	return nil
}

// GetTopRanks returns the top N users at a difficulty (best first)
func (c *Cache) GetTopRanks(ctx context.Context, difficulty domain.Difficulty, n int) ([]domain.UserRank, error) {
	key := c.rankingsKey(difficulty)
	results, err := c.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top ranks: %w", err)
	}

	// Resolve cached display names in one round trip.
	pipe := c.client.Pipeline()
	nameCmds := make([]*redis.StringCmd, len(results))
	for i, result := range results {
		nameCmds[i] = pipe.Get(ctx, c.userNameKey(result.Member.(string)))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("resolving user names: %w", err)
	}

	ranks := make([]domain.UserRank, len(results))
	for i, result := range results {
		name, _ := nameCmds[i].Result()
		ranks[i] = domain.UserRank{
			UserID:      result.Member.(string),
			UserName:    name,
			Difficulty:  difficulty,
			Performance: int(result.Score),
		}
	}
	return ranks, nil
}

// RemoveRank removes a user from a difficulty's sorted set
func (c *Cache) RemoveRank(ctx context.Context, difficulty domain.Difficulty, userID string) error {
	err := c.client.ZRem(ctx, c.rankingsKey(difficulty), userID).Err()
	if err != nil {
		return fmt.Errorf("removing rank: %w", err)
	}
	return nil
}

// SetAverageAttempts caches the average attempts remaining across
// active games
func (c *Cache) SetAverageAttempts(ctx context.Context, avg float64) error {
	err := c.client.Set(ctx, avgAttemptsKey, strconv.FormatFloat(avg, 'f', 2, 64), 0).Err()
	if err != nil {
		return fmt.Errorf("setting average attempts: %w", err)
	}
	return nil
}

// GetAverageAttempts reads the cached average. The second return value
// reports whether a value has been cached yet.
func (c *Cache) GetAverageAttempts(ctx context.Context) (float64, bool, error) {
	val, err := c.client.Get(ctx, avgAttemptsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("getting average attempts: %w", err)
	}
	avg, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parsing average attempts: %w", err)
	}
	return avg, true, nil
}
