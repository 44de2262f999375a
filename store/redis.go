package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig defines a public type used by authkit APIs.
//
// RedisConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RedisConfig struct {
	// Client is the Redis client to use. Required.
	Client redis.UniversalClient
	// KeyPrefix is prepended to both keys. Defaults to "authkit:session:".
	KeyPrefix string
	// RefreshTTL bounds how long a persisted refresh token remains readable.
	// Zero means no expiry; the backend's own refresh-token lifetime is then
	// the only bound.
	RefreshTTL time.Duration
}

// Redis defines a public type used by authkit APIs.
//
// Redis instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Redis struct {
	client     redis.UniversalClient
	keyPrefix  string
	refreshTTL time.Duration
}

// NewRedis describes the newredis operation and its observable behavior.
//
// NewRedis may return an error when input validation, dependency calls, or security checks fail.
// NewRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "authkit:session:"
	}
	if cfg.RefreshTTL < 0 {
		return nil, errors.New("RefreshTTL must be >= 0")
	}

	return &Redis{
		client:     cfg.Client,
		keyPrefix:  prefix,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (r *Redis) key(name string) string {
	return r.keyPrefix + name
}

func (r *Redis) get(ctx context.Context, name string) (string, error) {
	value, err := r.client.Get(ctx, r.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *Redis) set(ctx context.Context, name, value string, ttl time.Duration) error {
	if value == "" {
		return r.client.Del(ctx, r.key(name)).Err()
	}
	return r.client.Set(ctx, r.key(name), value, ttl).Err()
}

// RefreshToken describes the refreshtoken operation and its observable behavior.
//
// RefreshToken may return an error when dependency calls fail.
// RefreshToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) RefreshToken(ctx context.Context) (string, error) {
	return r.get(ctx, KeyRefreshToken)
}

// SetRefreshToken describes the setrefreshtoken operation and its observable behavior.
//
// SetRefreshToken may return an error when dependency calls fail.
// SetRefreshToken does not mutate shared global state beyond the store and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) SetRefreshToken(ctx context.Context, value string) error {
	return r.set(ctx, KeyRefreshToken, value, r.refreshTTL)
}

// AccessToken describes the accesstoken operation and its observable behavior.
//
// AccessToken may return an error when dependency calls fail.
// AccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) AccessToken(ctx context.Context) (string, error) {
	return r.get(ctx, KeyAccessToken)
}

// SetAccessToken describes the setaccesstoken operation and its observable behavior.
//
// SetAccessToken may return an error when dependency calls fail.
// SetAccessToken does not mutate shared global state beyond the store and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) SetAccessToken(ctx context.Context, value string) error {
	return r.set(ctx, KeyAccessToken, value, r.refreshTTL)
}

// Clear describes the clear operation and its observable behavior.
//
// Clear may return an error when dependency calls fail.
// Clear does not mutate shared global state beyond the store and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key(KeyAccessToken), r.key(KeyRefreshToken)).Err()
}
