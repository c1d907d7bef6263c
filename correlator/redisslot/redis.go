package redisslot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/insight-stream-go/correlator"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

var _ correlator.Slot = (*Slot)(nil)

// Config for a Redis-backed Slot. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: CORRELATOR_KEY_PREFIX
	KeyPrefix string `env:"CORRELATOR_KEY_PREFIX,default=insight:correlator:"`
	// TTL bounds how long an abandoned slot survives. ENV: CORRELATOR_TTL
	TTL time.Duration `env:"CORRELATOR_TTL,default=10m"`
}

const (
	fieldActive     = "active"
	fieldConnecting = "connecting"
)

var (
	markStreamingScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'active') == ARGV[1] then
  redis.call('HSET', KEYS[1], 'connecting', '0')
  return 1
end
return 0
`)
	releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'active') == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)
)

// Slot stores the slot for one scope in a Redis hash.
type Slot struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// New connects to Redis and returns the slot for scope. Every process using
// the same address, prefix and scope shares one slot.
func New(cfg Config, scope string) (*Slot, error) {
	if scope == "" {
		return nil, errors.New("redisslot: scope is required")
	}
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "insight:correlator:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Slot{client: cl, key: prefix + "slot:" + scope, ttl: ttl}, nil
}

// NewFromEnv builds a Slot using envdecode to populate Config.
func NewFromEnv(scope string) (*Slot, error) {
	var cfg Config
	// Defaults are provided via struct tags.
	_ = envdecode.Decode(&cfg)
	return New(cfg, scope)
}

// Close closes the Redis client.
func (s *Slot) Close() error { return s.client.Close() }

func (s *Slot) Begin(ctx context.Context, id string) error {
	if id == "" {
		return correlator.ErrEmptyID
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key, fieldActive, id, fieldConnecting, "1")
		p.Expire(ctx, s.key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisslot begin: %w", err)
	}
	return nil
}

func (s *Slot) IsActive(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	active, err := s.client.HGet(ctx, s.key, fieldActive).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redisslot is active: %w", err)
	}
	return active == id, nil
}

func (s *Slot) MarkStreaming(ctx context.Context, id string) (bool, error) {
	return s.runCAS(ctx, markStreamingScript, id)
}

func (s *Slot) Release(ctx context.Context, id string) (bool, error) {
	return s.runCAS(ctx, releaseScript, id)
}

func (s *Slot) runCAS(ctx context.Context, script *redis.Script, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := script.Run(ctx, s.client, []string{s.key}, id).Int()
	if err != nil {
		return false, fmt.Errorf("redisslot script: %w", err)
	}
	return n == 1, nil
}

func (s *Slot) Snapshot(ctx context.Context) (correlator.State, error) {
	vals, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return correlator.State{}, fmt.Errorf("redisslot snapshot: %w", err)
	}
	return correlator.State{
		ActiveID:   vals[fieldActive],
		Connecting: vals[fieldConnecting] == "1",
	}, nil
}
