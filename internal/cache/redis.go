package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GriffinCanCode/adscan/internal/classifier"
	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/trace"
)

// KeyPrefix namespaces every Redis key.
const KeyPrefix = "adscan:result:"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Redis shares results between processes. namespace separates reference sets
// and weights so a stale verdict is never served for a different
// configuration.
type Redis struct {
	rdb       redisClient
	namespace string
	ttl       time.Duration
}

// DialRedis connects to url and pings it.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "parse redis url")
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "ping redis")
	}
	return rdb, nil
}

// NewRedis wraps a connected client.
func NewRedis(rdb redisClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, namespace: namespace, ttl: ttl}
}

func (c *Redis) key(k string) string {
	return KeyPrefix + c.namespace + ":" + k
}

// Get implements Cache.
func (c *Redis) Get(ctx context.Context, key string) (classifier.Result, bool) {
	b, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			trace.Logger(ctx).Warn("redis cache get failed", "error", err)
		}
		return classifier.Result{}, false
	}
	var r classifier.Result
	if err := json.Unmarshal(b, &r); err != nil {
		trace.Logger(ctx).Warn("redis cache entry corrupt", "key", key, "error", err)
		return classifier.Result{}, false
	}
	return r, true
}

// Put implements Cache.
func (c *Redis) Put(ctx context.Context, key string, r classifier.Result) {
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(key), b, c.ttl).Err(); err != nil {
		trace.Logger(ctx).Warn("redis cache put failed", "error", err)
	}
}
