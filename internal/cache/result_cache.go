package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/config"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/solver"
	"github.com/redis/go-redis/v9"
)

const (
	resultKeyPrefix     = "dp:result"
	resultScanBatchSize = 100
)

// ResultCache stores solve results keyed by scenario hash. Solves are pure, so
// an entry never needs invalidating for correctness, only for space.
type ResultCache interface {
	Get(ctx context.Context, hash string) (*domain.SolveResult, bool, error)
	Set(ctx context.Context, hash string, result *domain.SolveResult) error
	Invalidate(ctx context.Context, hash string) error
	InvalidateAll(ctx context.Context) error
}

type redisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopResultCache struct{}

func NewResultCache(cfg config.CacheConfig) (ResultCache, error) {
	if !cfg.Enabled {
		return &noopResultCache{}, nil
	}

	client, err := dialRedis(cfg)
	if err != nil {
		return nil, err
	}

	return &redisResultCache{
		client: client,
		ttl:    resultTTL(cfg),
	}, nil
}

func NewNoopResultCache() ResultCache {
	return &noopResultCache{}
}

func (c *redisResultCache) Get(ctx context.Context, hash string) (*domain.SolveResult, bool, error) {
	payload, err := c.client.Get(ctx, resultKey(hash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result domain.SolveResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode solve result cache: %w", err)
	}
	return &result, true, nil
}

func (c *redisResultCache) Set(ctx context.Context, hash string, result *domain.SolveResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode solve result cache: %w", err)
	}
	if err := c.client.Set(ctx, resultKey(hash), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisResultCache) Invalidate(ctx context.Context, hash string) error {
	return c.client.Del(ctx, resultKey(hash)).Err()
}

func (c *redisResultCache) InvalidateAll(ctx context.Context) error {
	_, err := deleteByPrefix(ctx, c.client, resultKeyPrefix+":", resultScanBatchSize)
	return err
}

func (n *noopResultCache) Get(ctx context.Context, hash string) (*domain.SolveResult, bool, error) {
	return nil, false, nil
}

func (n *noopResultCache) Set(ctx context.Context, hash string, result *domain.SolveResult) error {
	return nil
}

func (n *noopResultCache) Invalidate(ctx context.Context, hash string) error {
	return nil
}

func (n *noopResultCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func resultKey(hash string) string {
	return fmt.Sprintf("%s:%s", resultKeyPrefix, hash)
}

// ScenarioHash fingerprints resolved solver inputs. Whether the policy is part
// of the result changes the payload, so it is part of the key.
func ScenarioHash(p solver.Params, includePolicy bool) (string, error) {
	raw, err := json.Marshal(struct {
		Params        solver.Params
		IncludePolicy bool
	}{p, includePolicy})
	if err != nil {
		return "", fmt.Errorf("encode scenario: %w", err)
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}
