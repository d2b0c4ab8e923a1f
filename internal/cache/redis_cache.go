package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/itstarun264/eventsnap-stream/internal/config"
)

// RedisLiveCache keeps the set of live event ids in a Redis set.
type RedisLiveCache struct {
	client *redis.Client
	prefix string
}

func NewRedisLiveCache(cfg config.RedisConfig) (*RedisLiveCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisLiveCache{
		client: client,
		prefix: cfg.LivePrefix,
	}, nil
}

func (c *RedisLiveCache) setKey() string {
	return fmt.Sprintf("%s:ids", c.prefix)
}

func (c *RedisLiveCache) SetLive(ctx context.Context, eventID string) error {
	if err := c.client.SAdd(ctx, c.setKey(), eventID).Err(); err != nil {
		return fmt.Errorf("failed to add live event to redis: %w", err)
	}
	return nil
}

func (c *RedisLiveCache) ClearLive(ctx context.Context, eventID string) error {
	if err := c.client.SRem(ctx, c.setKey(), eventID).Err(); err != nil {
		return fmt.Errorf("failed to remove live event from redis: %w", err)
	}
	return nil
}

func (c *RedisLiveCache) LiveEventIDs(ctx context.Context) ([]string, error) {
	ids, err := c.client.SMembers(ctx, c.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read live events from redis: %w", err)
	}
	return ids, nil
}

func (c *RedisLiveCache) Close() error {
	return c.client.Close()
}
