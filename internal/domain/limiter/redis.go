package limiter

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the redis-backed limiter.
type RedisConfig struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	Prefix      string
	MaxFailures int
	BlockFor    time.Duration
}

// Redis counts consecutive failures in redis and blocks a (email, ip) pair
// once the threshold is crossed. Counters expire with the block window so a
// quiet attacker is forgotten.
type Redis struct {
	client      *redis.Client
	prefix      string
	maxFailures int
	blockFor    time.Duration
}

// NewRedis connects a limiter to the configured redis instance.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("limiter redis addr is required")
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	blockFor := cfg.BlockFor
	if blockFor <= 0 {
		blockFor = 15 * time.Minute
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tetea"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Redis{
		client:      client,
		prefix:      prefix,
		maxFailures: maxFailures,
		blockFor:    blockFor,
	}, nil
}

// NewRedisWithClient wraps an existing client, for tests.
func NewRedisWithClient(client *redis.Client, maxFailures int, blockFor time.Duration) *Redis {
	return &Redis{
		client:      client,
		prefix:      "tetea",
		maxFailures: maxFailures,
		blockFor:    blockFor,
	}
}

func (r *Redis) failKey(email string, ipHash []byte) string {
	return fmt.Sprintf("%s:login:fail:%s:%s", r.prefix, email, hex.EncodeToString(ipHash))
}

func (r *Redis) blockKey(email string, ipHash []byte) string {
	return fmt.Sprintf("%s:login:block:%s:%s", r.prefix, email, hex.EncodeToString(ipHash))
}

// Allow reports whether the pair is currently blocked.
func (r *Redis) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.blockKey(email, ipHash)).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success clears failure state after a successful login.
func (r *Redis) Success(ctx context.Context, email string, ipHash []byte) error {
	return r.client.Del(ctx, r.failKey(email, ipHash), r.blockKey(email, ipHash)).Err()
}

// Failure records a failed attempt and blocks the pair once the threshold is
// reached.
func (r *Redis) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	key := r.failKey(email, ipHash)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if err := r.client.Expire(ctx, key, r.blockFor).Err(); err != nil {
		return false, 0, err
	}
	if count < int64(r.maxFailures) {
		return false, 0, nil
	}
	if err := r.client.Set(ctx, r.blockKey(email, ipHash), "1", r.blockFor).Err(); err != nil {
		return false, 0, err
	}
	return true, r.blockFor, nil
}

// Close releases the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
