package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dashsync/internal/dismiss"

	redis "github.com/redis/go-redis/v9"
)

const dismissKeyPrefix = "dashsync:dismiss:"

// KV stores dismissal records in redis. The key TTL mirrors the record's
// lifetime so redis drops expired records on its own; reads still check the
// expiry inside the value.
type KV struct {
	client *Client
}

func NewKV(client *Client) *KV {
	return &KV{client: client}
}

func (k *KV) raw() (*redis.Client, error) {
	if k == nil || k.client.Raw() == nil {
		return nil, errNotInitialized
	}
	return k.client.Raw(), nil
}

func (k *KV) Get(ctx context.Context, key string) (string, error) {
	rdb, err := k.raw()
	if err != nil {
		return "", err
	}
	v, err := rdb.Get(ctx, dismissKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return "", dismiss.ErrNotFound
		}
		return "", fmt.Errorf("redis get dismissal: %w", err)
	}
	return v, nil
}

// Set writes value; a non-positive ttl keeps the key until deleted.
func (k *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	rdb, err := k.raw()
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := rdb.Set(ctx, dismissKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set dismissal: %w", err)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	rdb, err := k.raw()
	if err != nil {
		return err
	}
	if err := rdb.Del(ctx, dismissKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete dismissal: %w", err)
	}
	return nil
}

// Keys lists the stored outlier ids with SCAN so large keyspaces are not
// blocked.
func (k *KV) Keys(ctx context.Context) ([]string, error) {
	rdb, err := k.raw()
	if err != nil {
		return nil, err
	}
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := rdb.Scan(ctx, cursor, dismissKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan dismissals: %w", err)
		}
		for _, key := range batch {
			keys = append(keys, strings.TrimPrefix(key, dismissKeyPrefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(keys)
	return keys, nil
}
