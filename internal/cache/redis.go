package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/splitlabs/max-visibility/internal/model"
)

const redisKeyPrefix = "maxvis:snapshot:"

// redisClient is the subset of *redis.Client used here.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Redis stores snapshots as JSON under maxvis:snapshot:<workspace> with a TTL
// so several API replicas share one cache.
type Redis struct {
	client redisClient
	ttl    time.Duration
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "cache: connect to redis at %s", opts.Addr)
	}
	zap.L().Info("cache: redis connected", zap.String("addr", opts.Addr))
	return &Redis{client: client, ttl: opts.TTL}, nil
}

func redisKey(workspaceID string) string {
	return redisKeyPrefix + workspaceID
}

func (r *Redis) Get(ctx context.Context, workspaceID string) (*model.CompetitiveSnapshot, bool, error) {
	data, err := r.client.Get(ctx, redisKey(workspaceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: redis get")
	}

	var snap model.CompetitiveSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, eris.Wrap(err, "cache: decode snapshot")
	}
	return &snap, true, nil
}

func (r *Redis) Set(ctx context.Context, workspaceID string, snap *model.CompetitiveSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "cache: encode snapshot")
	}
	return eris.Wrap(r.client.Set(ctx, redisKey(workspaceID), data, r.ttl).Err(), "cache: redis set")
}

func (r *Redis) Invalidate(ctx context.Context, workspaceID string) error {
	return eris.Wrap(r.client.Del(ctx, redisKey(workspaceID)).Err(), "cache: redis del")
}

// Close releases the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
