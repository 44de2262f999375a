package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig defines a public type used by authkit APIs.
//
// RedisConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RedisConfig struct {
	// Client is the Redis client to use. Required.
	Client redis.UniversalClient
	// Channel is the pub/sub channel shared by sibling contexts. Defaults to
	// "authkit:session".
	Channel string
	// MaxMessageAge is the staleness bound. Defaults to [DefaultMaxMessageAge].
	MaxMessageAge time.Duration
}

// Redis defines a public type used by authkit APIs.
//
// Redis instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Redis struct {
	client  redis.UniversalClient
	channel string
	origin  string
	maxAge  time.Duration
	pubsub  *redis.PubSub

	mu       sync.Mutex
	handlers []Handler
	closed   atomic.Bool
	dropped  atomic.Uint64
	wg       sync.WaitGroup
}

// NewRedis describes the newredis operation and its observable behavior.
//
// NewRedis may return an error when input validation, dependency calls, or security checks fail.
// NewRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client required")
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "authkit:session"
	}
	maxAge := cfg.MaxMessageAge
	if maxAge == 0 {
		maxAge = DefaultMaxMessageAge
	}
	if maxAge < 0 {
		return nil, errors.New("MaxMessageAge must be >= 0")
	}

	r := &Redis{
		client:  cfg.Client,
		channel: channel,
		origin:  uuid.NewString(),
		maxAge:  maxAge,
	}
	r.pubsub = cfg.Client.Subscribe(context.Background(), channel)

	r.wg.Add(1)
	go r.run()

	return r, nil
}

// Origin describes the origin operation and its observable behavior.
//
// Origin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) Origin() string {
	return r.origin
}

// Dropped reports how many messages this subscriber discarded as stale or
// malformed.
func (r *Redis) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Redis) run() {
	defer r.wg.Done()

	for raw := range r.pubsub.Channel() {
		var msg Message
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			r.dropped.Add(1)
			continue
		}
		r.deliver(msg)
	}
}

func (r *Redis) deliver(msg Message) {
	if r.closed.Load() {
		return
	}
	if msg.Origin == r.origin {
		return
	}
	if time.Since(msg.IssuedAt) > r.maxAge {
		r.dropped.Add(1)
		return
	}

	r.mu.Lock()
	handlers := make([]Handler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

// Publish describes the publish operation and its observable behavior.
//
// Publish may return an error when dependency calls fail.
// Publish does not mutate shared global state beyond the channel and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) Publish(ctx context.Context, kind Kind, payload json.RawMessage) error {
	if r.closed.Load() {
		return nil
	}

	data, err := json.Marshal(Message{
		Kind:     kind,
		Origin:   r.origin,
		IssuedAt: time.Now(),
		Payload:  payload,
	})
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, r.channel, data).Err()
}

// Subscribe describes the subscribe operation and its observable behavior.
//
// Subscribe does not mutate shared global state beyond the receiver and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) Subscribe(handler Handler) {
	if handler == nil {
		return
	}
	r.mu.Lock()
	r.handlers = append(r.handlers, handler)
	r.mu.Unlock()
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when dependency calls fail.
// Close does not mutate shared global state beyond the channel and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	err := r.pubsub.Close()
	if err != nil {
		log.Print("authkit: broadcast pubsub close failed")
	}
	r.wg.Wait()
	return err
}
