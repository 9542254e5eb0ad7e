package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tariff_server/core/domain"
	"tariff_server/core/port/out"
	"tariff_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "comparison:"
	redisIndexKey  = "comparison:index"
	redisResultTTL = 7 * 24 * time.Hour
)

// RedisResultStore persists comparisons in Redis so results survive a
// restart. Each comparison lives under its own key with a TTL; a list keeps
// ids newest-first for paging and stats.
type RedisResultStore struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisResultStore connects to Redis and verifies the connection.
func NewRedisResultStore(redisURL string) (*RedisResultStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisResultStore{
		client: client,
		log:    logger.WithField("component", "redis-result-store"),
	}, nil
}

// Client exposes the underlying client for readiness checks.
func (s *RedisResultStore) Client() *redis.Client {
	return s.client
}

// Close releases the underlying connection pool.
func (s *RedisResultStore) Close() error {
	return s.client.Close()
}

// Create implements out.ResultStore.
func (s *RedisResultStore) Create(ctx context.Context, result *domain.ComparisonResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal comparison: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+result.ID, data, redisResultTTL)
	pipe.LPush(ctx, redisIndexKey, result.ID)
	pipe.Expire(ctx, redisIndexKey, redisResultTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist comparison: %w", err)
	}
	return nil
}

// Get implements out.ResultStore.
func (s *RedisResultStore) Get(ctx context.Context, id string) (*domain.ComparisonResult, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, out.ErrComparisonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load comparison: %w", err)
	}

	var result domain.ComparisonResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal comparison: %w", err)
	}
	return &result, nil
}

// List implements out.ResultStore. The index list is LPUSHed on create, so
// a plain LRANGE already yields newest-first order.
func (s *RedisResultStore) List(ctx context.Context, limit, offset int) ([]*domain.ComparisonResult, int, error) {
	total, err := s.client.LLen(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("count comparisons: %w", err)
	}
	if limit <= 0 || int64(offset) >= total {
		return nil, int(total), nil
	}

	ids, err := s.client.LRange(ctx, redisIndexKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("list comparisons: %w", err)
	}

	results := make([]*domain.ComparisonResult, 0, len(ids))
	for _, id := range ids {
		result, err := s.Get(ctx, id)
		if errors.Is(err, out.ErrComparisonNotFound) {
			// Expired entry still referenced by the index. Skip it.
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		results = append(results, result)
	}
	return results, int(total), nil
}

// Stats implements out.ResultStore by folding over every stored comparison.
func (s *RedisResultStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	ids, err := s.client.LRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list comparison ids: %w", err)
	}

	all := make([]*domain.ComparisonResult, 0, len(ids))
	for _, id := range ids {
		result, err := s.Get(ctx, id)
		if errors.Is(err, out.ErrComparisonNotFound) {
			continue
		}
		if err != nil {
			s.log.WithError(err).WithField("comparison_id", id).Warn("skipping unreadable comparison")
			continue
		}
		all = append(all, result)
	}
	return domain.ComputeStats(all), nil
}

var _ out.ResultStore = (*RedisResultStore)(nil)
