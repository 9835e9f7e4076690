package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultResultTTL = time.Hour
	redisPingTimeout = 5 * time.Second
	redisClientName  = "autopo-dp"
)

// dialRedis connects and pings once so misconfiguration surfaces at startup.
func dialRedis(cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func resultTTL(cfg config.CacheConfig) time.Duration {
	if cfg.ResultTTLSeconds <= 0 {
		return defaultResultTTL
	}
	return time.Duration(cfg.ResultTTLSeconds) * time.Second
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opt.ClientName = redisClientName
		return opt, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:       net.JoinHostPort(host, port),
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		ClientName: redisClientName,
	}, nil
}

// deleteByPrefix scans in batches so large keyspaces are never loaded at once.
func deleteByPrefix(ctx context.Context, client *redis.Client, prefix string, batch int64) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, prefix+"*", batch).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			n, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("redis delete failed: %w", err)
			}
			deleted += int(n)
		}
		if cursor = next; cursor == 0 {
			return deleted, nil
		}
	}
}
