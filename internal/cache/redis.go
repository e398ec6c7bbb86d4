package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fairkeep/internal/calculator"
	"github.com/mmynk/fairkeep/internal/models"
)

// RedisCache implements BalanceCache on Redis.
// A TTL bounds staleness if an invalidation is lost.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// redisEntry is the JSON form of one cached balance.
type redisEntry struct {
	CounterpartyID string          `json:"counterparty_id"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
}

// NewRedisCache connects to the Redis server at url (redis://[:password@]host:port/db).
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// makeKey makes a key from a userID
func (r *RedisCache) makeKey(userID string) string {
	return "fairkeep:balances:" + userID
}

// versionKey holds the user's invalidation counter. It has no TTL.
func (r *RedisCache) versionKey(userID string) string {
	return "fairkeep:balances-version:" + userID
}

func readVersion(ctx context.Context, c redis.Cmdable, key string) (int64, error) {
	v, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache version: %w", err)
	}
	return v, nil
}

// Version returns userID's invalidation counter.
func (r *RedisCache) Version(ctx context.Context, userID string) (int64, error) {
	return readVersion(ctx, r.client, r.versionKey(userID))
}

// GetBalances reads and decodes the cached balances for userID.
func (r *RedisCache) GetBalances(ctx context.Context, userID string) ([]calculator.Balance, bool, error) {
	val, err := r.client.Get(ctx, r.makeKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached balances: %w", err)
	}

	var entries []redisEntry
	if err := json.Unmarshal(val, &entries); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached balances: %w", err)
	}

	balances := make([]calculator.Balance, len(entries))
	for i, e := range entries {
		balances[i] = calculator.Balance{
			CounterpartyID: e.CounterpartyID,
			Currency:       models.Currency(e.Currency),
			Amount:         e.Amount,
		}
	}
	return balances, true, nil
}

// SetBalances encodes and stores balances for userID with the cache TTL.
// The version key is watched, so an Invalidate that lands between the check
// and the write aborts the write.
func (r *RedisCache) SetBalances(ctx context.Context, userID string, version int64, balances []calculator.Balance) error {
	entries := make([]redisEntry, len(balances))
	for i, b := range balances {
		entries[i] = redisEntry{
			CounterpartyID: b.CounterpartyID,
			Currency:       string(b.Currency),
			Amount:         b.Amount,
		}
	}

	value, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode balances: %w", err)
	}

	versionKey := r.versionKey(userID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, versionKey)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.makeKey(userID), value, r.ttl)
			return nil
		})
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to write cached balances: %w", err)
	}
	return nil
}

// Invalidate deletes the cached balances of userIDs and bumps their versions
// in one transaction.
func (r *RedisCache) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Incr(ctx, r.versionKey(id))
			pipe.Del(ctx, r.makeKey(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate cached balances: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
