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
	"strings"
	"testing"
	"time"

	"github.com/weavego/weavego/test/assert"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	t.Run("SetAndGet", func(t *testing.T) {
		err := c.Set("key1", "value1", "1m")
		assert.Nil(t, err)
		assert.Equal(t, "value1", c.Get("key1"))

		// 过期后读到nil
		err = c.Set("key2", "value2", "1s")
		assert.Nil(t, err)
		time.Sleep(2 * time.Second)
		assert.Nil(t, c.Get("key2"))
	})

	t.Run("Has", func(t *testing.T) {
		c.Set("key1", "value1", "1m")
		assert.True(t, c.Has("key1"))
		assert.False(t, c.Has("nonexistent"))

		c.Set("key2", "value2", "1s")
		time.Sleep(2 * time.Second)
		assert.False(t, c.Has("key2"))
	})

	t.Run("Delete", func(t *testing.T) {
		c.Set("key1", "value1", "1m")
		assert.Nil(t, c.Delete("key1"))
		assert.Nil(t, c.Get("key1"))
		assert.False(t, c.Has("key1"))
	})

	t.Run("DeleteByPrefix", func(t *testing.T) {
		c.Set("prefix_key1", "value1", "1m")
		c.Set("prefix_key2", "value2", "1m")
		c.Set("other_key", "value3", "1m")

		assert.Nil(t, c.DeleteByPrefix("prefix_"))
		assert.Nil(t, c.Get("prefix_key1"))
		assert.Nil(t, c.Get("prefix_key2"))
		assert.Equal(t, "value3", c.Get("other_key"))
	})

	t.Run("SetWithInvalidTTL", func(t *testing.T) {
		c := NewMemoryCache(time.Minute)
		err := c.Set("key_invalid_ttl", "value", "invalid-duration-string")
		assert.NotNil(t, err)
		assert.Nil(t, c.Get("key_invalid_ttl"))
	})
}

func TestMemoryCacheGCLifecycle(t *testing.T) {
	c := NewMemoryCache(50 * time.Millisecond)

	gcRunning := func(c *MemoryCache) bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.ticker != nil
	}

	t.Run("NotStartedWithoutExpirableItems", func(t *testing.T) {
		c.Set("key_no_expire", "value_no_expire", "")
		assert.False(t, gcRunning(c))
	})

	t.Run("StartsWhenExpirableItemAdded", func(t *testing.T) {
		c.Set("key_expire_1", "value_expire_1", "100ms")
		time.Sleep(60 * time.Millisecond)
		assert.True(t, gcRunning(c))
	})

	t.Run("StopsWhenAllExpirableItemsGone", func(t *testing.T) {
		// 等过期键被清理，之后只剩不过期的键，清理协程应自行停止
		time.Sleep(150 * time.Millisecond)
		assert.Nil(t, c.Get("key_expire_1"))
		assert.False(t, gcRunning(c))
	})

	t.Run("RestartsWhenNewExpirableItemAdded", func(t *testing.T) {
		c.Set("key_expire_2", "value_expire_2", "100ms")
		time.Sleep(60 * time.Millisecond)
		assert.True(t, gcRunning(c))
		c.StopGC()
	})

	t.Run("StopsAfterStopGC", func(t *testing.T) {
		other := NewMemoryCache(50 * time.Millisecond)
		other.Set("key_temp_expire", "value", "100ms")
		time.Sleep(60 * time.Millisecond)
		assert.True(t, gcRunning(other))

		other.StopGC()
		time.Sleep(60 * time.Millisecond)
		assert.False(t, gcRunning(other))
	})
}

func TestMemoryCacheGetByPrefix(t *testing.T) {
	c := NewMemoryCache(time.Second)

	t.Run("EmptyPrefix", func(t *testing.T) {
		c.Set("key1", "value1", "1m")
		c.Set("key2", "value2", "1m")
		result := c.GetByPrefix("")
		assert.Equal(t, 2, len(result))
		assert.Equal(t, "value1", result["key1"])
		assert.Equal(t, "value2", result["key2"])
	})

	t.Run("MatchPrefix", func(t *testing.T) {
		c.Set("prefix:sub1", "value1", "1m")
		c.Set("prefix:sub2", "value2", "1m")
		c.Set("other_key", "value3", "1m")
		result := c.GetByPrefix("prefix:")
		assert.Equal(t, 2, len(result))
		assert.Equal(t, "value1", result["prefix:sub1"])
		assert.Equal(t, "value2", result["prefix:sub2"])
	})

	t.Run("SkipsExpiredItems", func(t *testing.T) {
		c.Set("prefix3_key1", "value1", "1s")
		time.Sleep(2 * time.Second)
		result := c.GetByPrefix("prefix3_")
		assert.Equal(t, 0, len(result))
	})
}

func TestNamespaceCache(t *testing.T) {
	baseCache := NewMemoryCache(time.Minute * 5)
	namespace := "test:"
	nc := NewNamespaceCache(baseCache, namespace)

	t.Run("NilBase", func(t *testing.T) {
		assert.True(t, NewNamespaceCache(nil, namespace) == nil)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		err := nc.Set("key1", "value1", "1m")
		assert.Nil(t, err)
		assert.Equal(t, "value1", nc.Get("key1"))

		// 底层键带命名空间前缀
		assert.Equal(t, "value1", baseCache.Get(namespace+"key1"))
	})

	t.Run("Has", func(t *testing.T) {
		assert.True(t, nc.Has("key1"))
		assert.False(t, nc.Has("nonexistent"))
	})

	t.Run("Delete", func(t *testing.T) {
		assert.Nil(t, nc.Delete("key1"))
		assert.Nil(t, nc.Get("key1"))
		assert.False(t, nc.Has("key1"))
	})

	t.Run("DeleteByPrefix", func(t *testing.T) {
		nc.Set("key2", "value2", "1m")
		nc.Set("key3", "value3", "1m")

		// 空前缀清空整个命名空间
		assert.Nil(t, nc.DeleteByPrefix(""))
		assert.False(t, nc.Has("key2"))
		assert.False(t, nc.Has("key3"))
	})

	t.Run("DeleteWithCustomPrefix", func(t *testing.T) {
		nc.Set("sub:key4", "value4", "1m")
		nc.Set("sub:key5", "value5", "1m")

		assert.Nil(t, nc.DeleteByPrefix("sub:"))
		assert.Nil(t, nc.Get("sub:key4"))
		assert.Nil(t, nc.Get("sub:key5"))
	})

	t.Run("GetByPrefixStripsNamespace", func(t *testing.T) {
		nc.Set("prefix1", "value1", "1m")
		nc.Set("prefix2", "value2", "1m")
		nc.Set("prefix3", "value3", "1m")

		result := nc.GetByPrefix("")
		assert.Equal(t, 3, len(result))
		for k := range result {
			assert.False(t, strings.HasPrefix(k, namespace), "key still carries namespace: %s", k)
		}

		result = nc.GetByPrefix("pre")
		assert.Equal(t, 3, len(result))
		for k := range result {
			assert.True(t, strings.HasPrefix(k, "pre"), "key does not match prefix: %s", k)
		}
	})
}
