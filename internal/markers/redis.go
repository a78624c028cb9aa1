package markers

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"fwbot-go/internal/fwbot"
)

// RedisConfig defines the connection to a Redis (or KeyDB) server.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	Database int
	Prefix   string
}

// Redis keeps markers in one hash per kind, "<prefix>:markers:<kind>".
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects and pings the server.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "fwbot"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

// Store returns the store for one marker kind.
func (r *Redis) Store(kind string) *RedisStore {
	return &RedisStore{client: r.client, key: r.prefix + ":markers:" + kind}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// RedisStore is one marker hash.
type RedisStore struct {
	client *redis.Client
	key    string
}

func (s *RedisStore) Get(ctx context.Context, model string) (string, error) {
	v, err := s.client.HGet(ctx, s.key, model).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading marker %s: %w", model, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, model, version string) error {
	if err := s.client.HSet(ctx, s.key, model, version).Err(); err != nil {
		return fmt.Errorf("writing marker %s: %w", model, err)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context) (map[string]string, error) {
	out, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("listing markers: %w", err)
	}
	return out, nil
}

var (
	_ fwbot.MarkerStore  = (*RedisStore)(nil)
	_ fwbot.MarkerLister = (*RedisStore)(nil)
)
