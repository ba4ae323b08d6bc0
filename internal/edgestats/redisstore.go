package edgestats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const redisKeyPrefix = "edgegate:edges:"

// RedisStore keeps each key's sample window in a Redis list, trimmed to
// the configured bound. Writes go through a circuit breaker so a dead
// Redis degrades persistence without stalling evaluation.
type RedisStore struct {
	client    redis.Cmdable
	breaker   *gobreaker.CircuitBreaker
	maxWindow int
	closer    func() error
}

// NewRedisStore connects to the given address and database.
func NewRedisStore(addr, password string, db int, maxWindow int) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	rs := NewRedisStoreWithClient(c, maxWindow)
	rs.closer = c.Close
	return rs
}

// NewRedisStoreWithClient wraps an existing client, which tests supply
// as a mock.
func NewRedisStoreWithClient(c redis.Cmdable, maxWindow int) *RedisStore {
	if maxWindow <= 0 {
		maxWindow = DefaultConfig().MaxWindow
	}
	br := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "edgestats-redis",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("edge store breaker state change")
		},
	})
	return &RedisStore{client: c, breaker: br, maxWindow: maxWindow}
}

func (r *RedisStore) listKey(k Key) string {
	return redisKeyPrefix + k.String()
}

// Append pushes the sample onto the key's list and trims to the window
// bound, keeping the newest entries.
func (r *RedisStore) Append(ctx context.Context, k Key, s Sample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	_, err = r.breaker.Execute(func() (interface{}, error) {
		lk := r.listKey(k)
		if err := r.client.RPush(ctx, lk, payload).Err(); err != nil {
			return nil, fmt.Errorf("rpush %s: %w", lk, err)
		}
		if err := r.client.LTrim(ctx, lk, int64(-r.maxWindow), -1).Err(); err != nil {
			return nil, fmt.Errorf("ltrim %s: %w", lk, err)
		}
		return nil, nil
	})
	return err
}

// Load returns the key's persisted window, oldest first.
func (r *RedisStore) Load(ctx context.Context, k Key) ([]Sample, error) {
	raw, err := r.client.LRange(ctx, r.listKey(k), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", r.listKey(k), err)
	}
	samples := make([]Sample, 0, len(raw))
	for _, item := range raw {
		var s Sample
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			log.Warn().Err(err).Str("key", k.String()).Msg("skipping corrupt edge sample")
			continue
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// LoadAll scans for persisted keys and loads each window.
func (r *RedisStore) LoadAll(ctx context.Context) (map[Key][]Sample, error) {
	out := make(map[Key][]Sample)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan edge keys: %w", err)
		}
		for _, lk := range keys {
			k, err := ParseKey(lk[len(redisKeyPrefix):])
			if err != nil {
				log.Warn().Str("redis_key", lk).Msg("skipping unparseable edge key")
				continue
			}
			samples, err := r.Load(ctx, k)
			if err != nil {
				return nil, err
			}
			out[k] = samples
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// Close releases the underlying connection when this store owns it.
func (r *RedisStore) Close() error {
	if r.closer != nil {
		return r.closer()
	}
	return nil
}
