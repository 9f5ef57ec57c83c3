package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = time.Hour

// RedisRepo caches job state so pollers rarely hit the record store. Entries
// expire on their own; the record store stays the source of truth.
type RedisRepo struct {
	Client *redis.Client
}

func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{Client: client}
}

// SetJob caches the serialized job record.
func (r *RedisRepo) SetJob(ctx context.Context, jobID string, payload string) error {
	return r.Client.Set(ctx, "job:"+jobID, payload, cacheTTL).Err()
}

// GetJob returns "" with no error on a cache miss.
func (r *RedisRepo) GetJob(ctx context.Context, jobID string) (string, error) {
	val, err := r.Client.Get(ctx, "job:"+jobID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (r *RedisRepo) SetBatchProgress(ctx context.Context, jobID string, progress int) error {
	return r.Client.Set(ctx, "stamp_progress:"+jobID, progress, cacheTTL).Err()
}

// GetBatchProgress returns -1 with no error on a cache miss.
func (r *RedisRepo) GetBatchProgress(ctx context.Context, jobID string) (int, error) {
	val, err := r.Client.Get(ctx, "stamp_progress:"+jobID).Result()
	if errors.Is(err, redis.Nil) {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return strconv.Atoi(val)
}
