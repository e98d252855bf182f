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
	"testing"
	"time"

	"github.com/weavego/weavego/test/assert"
)

// 需要本地redis，默认跳过
func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping redis test in short mode")
	}

	c := NewRedisCache("127.0.0.1:6379", "", 0)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at 127.0.0.1:6379: %v", err)
		return
	}

	assert.Nil(t, c.Set("weavego:test:k1", map[string]interface{}{"name": "alice"}, "1m"))
	assert.True(t, c.Has("weavego:test:k1"))

	value, ok := c.Get("weavego:test:k1").(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "alice", value["name"])

	assert.Nil(t, c.Set("weavego:test:k2", "v2", "1m"))
	byPrefix := c.GetByPrefix("weavego:test:")
	assert.Equal(t, 2, len(byPrefix))

	assert.Nil(t, c.DeleteByPrefix("weavego:test:"))
	assert.False(t, c.Has("weavego:test:k1"))
}
