package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Entries are hashes with a version field and the basket JSON. An empty
// basket field marks an invalidated entry.
const (
	fieldVersion = "version"
	fieldBasket  = "basket"
)

// storeIfNotOlder writes the entry unless the stored version is newer.
// KEYS[1] entry key, ARGV[1] version, ARGV[2] basket JSON, ARGV[3] ttl ms.
var storeIfNotOlder = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version'))
if current and current > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'basket', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, customerID int64) (*Entry, error) {
	values, err := r.client.HMGet(ctx, cacheKey(customerID), fieldVersion, fieldBasket).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	rawVersion, _ := values[0].(string)
	rawBasket, _ := values[1].(string)
	if rawVersion == "" || rawBasket == "" {
		return nil, ErrCacheMiss
	}

	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse cached version failed: %w", err)
	}
	var basket domain.Basket
	if err := json.Unmarshal([]byte(rawBasket), &basket); err != nil {
		return nil, fmt.Errorf("unmarshal basket failed: %w", err)
	}

	return &Entry{Version: version, Basket: &basket}, nil
}

func (r *RedisCache) Set(ctx context.Context, customerID int64, entry Entry) error {
	if entry.Basket == nil {
		return errors.New("cache entry has no basket")
	}
	data, err := json.Marshal(entry.Basket)
	if err != nil {
		return fmt.Errorf("marshal basket failed: %w", err)
	}
	return r.store(ctx, customerID, entry.Version, string(data))
}

func (r *RedisCache) Invalidate(ctx context.Context, customerID int64, version int64) error {
	return r.store(ctx, customerID, version, "")
}

func (r *RedisCache) store(ctx context.Context, customerID int64, version int64, basket string) error {
	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	err := storeIfNotOlder.Run(ctx, r.client, []string{cacheKey(customerID)},
		version, basket, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(customerID int64) string {
	return fmt.Sprintf("basket:entry:%d", customerID)
}
