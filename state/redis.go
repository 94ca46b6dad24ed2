package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key used when none is configured.
const DefaultRedisKey = "tokenwatch:state"

// Redis stores the document under a single key. SET replaces the value
// atomically, so there is no torn-write window.
type Redis struct {
	client redis.Cmdable
	key    string
}

// NewRedis creates a Redis-backed store using client and key.
func NewRedis(client redis.Cmdable, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

// DialRedis connects to the server at url (redis://...) and verifies it with PING.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("state/redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("state/redis: ping: %w", err)
	}
	return client, nil
}

// Load reads the document. A missing key yields the empty state.
func (r *Redis) Load(ctx context.Context) (State, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{Watches: []Watch{}}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("state/redis: get %s: %w", r.key, err)
	}

	s, err := Decode(data)
	if err != nil {
		return State{}, fmt.Errorf("state/redis: %s: %w", r.key, err)
	}
	return s, nil
}

// Save replaces the document with s.
func (r *Redis) Save(ctx context.Context, s State) error {
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("state/redis: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("state/redis: set %s: %w", r.key, err)
	}
	return nil
}
