/*
 * Copyright 2025 The WeaveGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/json"
)

// RedisCache is a redis-backed Cache implementation.
// Values are stored JSON-encoded, so Get returns the decoded form
// (maps, slices, strings, float64 numbers), not the original Go type.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a RedisCache connected to the given address.
func NewRedisCache(addr string, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewRedisCacheWithClient wraps an existing redis client.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(key string, value interface{}, ttl string) error {
	var dur time.Duration
	if ttl != "" && ttl != "0" {
		var err error
		dur, err = time.ParseDuration(ttl)
		if err != nil {
			return err
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(context.Background(), key, data, dur).Err()
}

func (c *RedisCache) Get(key string) interface{} {
	data, err := c.client.Get(context.Background(), key).Bytes()
	if err != nil {
		return nil
	}
	var value interface{}
	if err = json.Unmarshal(data, &value); err != nil {
		return nil
	}
	return value
}

func (c *RedisCache) Has(key string) bool {
	n, err := c.client.Exists(context.Background(), key).Result()
	return err == nil && n > 0
}

func (c *RedisCache) Delete(key string) error {
	return c.client.Del(context.Background(), key).Err()
}

// DeleteByPrefix removes all keys matching prefix using SCAN, never KEYS.
func (c *RedisCache) DeleteByPrefix(prefix string) error {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *RedisCache) GetByPrefix(prefix string) map[string]interface{} {
	ctx := context.Background()
	result := make(map[string]interface{})
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if value := c.Get(key); value != nil {
			result[key] = value
		}
	}
	return result
}

// Close releases the underlying redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ensure RedisCache implements the Cache interface.
var _ types.Cache = (*RedisCache)(nil)
