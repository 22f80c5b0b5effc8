package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding the cache when the Redis backend is used.
const DefaultRedisKey = "geopogoda:locations"

// nullValue marks a negative entry inside the hash.
const nullValue = "null"

// RedisBackend keeps the cache in a single Redis hash: one field per query key,
// valued with the JSON record or "null".
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend stores the cache in the hash named key (DefaultRedisKey when empty).
func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{client: client, key: key}
}

// Name implements Backend.
func (b *RedisBackend) Name() string {
	return "redis"
}

// Load implements Backend. A missing hash is an empty cache.
func (b *RedisBackend) Load(ctx context.Context) (map[string]*Record, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read hash %s: %w", b.key, err)
	}

	entries := make(map[string]*Record, len(fields))
	for field, value := range fields {
		if value == nullValue {
			entries[field] = nil
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			return nil, fmt.Errorf("%w: hash %s field %q: %v", ErrStorageCorrupt, b.key, field, err)
		}
		if err := rec.validate(); err != nil {
			return nil, fmt.Errorf("%w: hash %s field %q: %v", ErrStorageCorrupt, b.key, field, err)
		}
		entries[field] = &rec
	}
	return entries, nil
}

// Save implements Backend. The hash is deleted and rewritten inside MULTI/EXEC.
func (b *RedisBackend) Save(ctx context.Context, snapshot map[string]*Record) error {
	values, err := hashValues(snapshot)
	if err != nil {
		return err
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key)
		if len(values) > 0 {
			pipe.HSet(ctx, b.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write hash %s: %w", b.key, err)
	}
	return nil
}

// hashValues flattens snapshot into field/value pairs ordered by field.
func hashValues(snapshot map[string]*Record) ([]interface{}, error) {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		rec := snapshot[k]
		if rec == nil {
			values = append(values, k, nullValue)
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q: %w", k, err)
		}
		values = append(values, k, string(data))
	}
	return values, nil
}
