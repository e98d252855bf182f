/*
 * Copyright 2024 The WeaveGo Authors.
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

package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/test/assert"
)

// engineDsl 生成引用指定实例和计数key的最小织入定义
func engineDsl(id, instance, key string) []byte {
	return []byte(fmt.Sprintf(`{
	  "weave": {"id": %q},
	  "metadata": {
	    "advisors": [
	      {"id": "a1", "type": "testCount", "configuration": {"key": %q}}
	    ],
	    "proxies": [
	      {"id": "p1", "target": "ref://%s"}
	    ]
	  }
	}`, id, key, instance))
}

func TestNewProxyEngine(t *testing.T) {
	Instances.Register("engineTestUserService", &userService{})
	defer Instances.Unregister("engineTestUserService")

	e, err := NewProxyEngine("", engineDsl("e1", "engineTestUserService", "e1.a1"), types.WithConfig(NewConfig()))
	assert.Nil(t, err)
	defer e.Stop()

	assert.Equal(t, "e1", e.Id())
	assert.True(t, e.Initialized())

	root := e.RootProxy()
	assert.NotNil(t, root)
	results, err := root.Invoke("Find", "7")
	assert.Nil(t, err)
	assert.Equal(t, "user-7", results[0])
	assert.Equal(t, 1, counterValue("e1.a1"))

	// DSL往返保持定义ID
	dsl := e.DSL()
	assert.NotNil(t, dsl)
	def, err := e.Config.Parser.DecodeWeave(e.Config, dsl)
	assert.Nil(t, err)
	assert.Equal(t, "e1", def.Weave.ID)
	assert.Equal(t, "e1", e.Definition().Weave.ID)
}

func TestNewProxyEngineExplicitId(t *testing.T) {
	Instances.Register("engineIdUserService", &userService{})
	defer Instances.Unregister("engineIdUserService")

	e, err := NewProxyEngine("customId", engineDsl("e2", "engineIdUserService", "e2.a1"))
	assert.Nil(t, err)
	defer e.Stop()
	assert.Equal(t, "customId", e.Id())
}

func TestNewProxyEngineEmptyDsl(t *testing.T) {
	_, err := NewProxyEngine("x", nil)
	assert.True(t, errors.Is(err, types.ErrEngineDslEmpty))
}

func TestReloadSelf(t *testing.T) {
	Instances.Register("engineReloadUserService", &userService{})
	defer Instances.Unregister("engineReloadUserService")

	e, err := NewProxyEngine("", engineDsl("e3", "engineReloadUserService", "e3.old"))
	assert.Nil(t, err)
	defer e.Stop()

	err = e.ReloadSelf(engineDsl("e3", "engineReloadUserService", "e3.new"))
	assert.Nil(t, err)

	proxy, ok := e.Proxy("p1")
	assert.True(t, ok)
	_, err = proxy.Invoke("Find", "1")
	assert.Nil(t, err)
	assert.Equal(t, 0, counterValue("e3.old"))
	assert.Equal(t, 1, counterValue("e3.new"))
}

func TestReloadSelfKeepsOldOnFailure(t *testing.T) {
	Instances.Register("engineKeepUserService", &userService{})
	defer Instances.Unregister("engineKeepUserService")

	e, err := NewProxyEngine("", engineDsl("e4", "engineKeepUserService", "e4.a1"))
	assert.Nil(t, err)
	defer e.Stop()

	err = e.ReloadSelf([]byte(`{"weave": {"id": "e4", "disabled": true}}`))
	assert.NotNil(t, err)

	// 旧上下文继续服务
	assert.True(t, e.Initialized())
	proxy, ok := e.Proxy("p1")
	assert.True(t, ok)
	_, err = proxy.Invoke("Find", "1")
	assert.Nil(t, err)
	assert.Equal(t, 1, counterValue("e4.a1"))
}

func TestEngineStop(t *testing.T) {
	Instances.Register("engineStopUserService", &userService{})
	defer Instances.Unregister("engineStopUserService")

	e, err := NewProxyEngine("", engineDsl("e5", "engineStopUserService", "e5.a1"))
	assert.Nil(t, err)

	e.Stop()
	assert.False(t, e.Initialized())
	_, ok := e.Proxy("p1")
	assert.False(t, ok)
	assert.Nil(t, e.RootProxy())
}

func TestPoolLifecycle(t *testing.T) {
	Instances.Register("poolUserService", &userService{})
	defer Instances.Unregister("poolUserService")

	var created, deleted []string
	pool := NewPool()
	pool.SetCallbacks(types.Callbacks{
		OnNew:     func(id string, dsl []byte) { created = append(created, id) },
		OnDeleted: func(id string) { deleted = append(deleted, id) },
	})

	e, err := pool.New("", engineDsl("pool1", "poolUserService", "pool1.a1"))
	assert.Nil(t, err)
	assert.Equal(t, "pool1", e.Id())
	assert.Equal(t, []string{"pool1"}, created)

	got, ok := pool.Get("pool1")
	assert.True(t, ok)
	assert.Equal(t, e, got)

	// 已存在的ID直接返回池内实例
	same, err := pool.New("pool1", []byte(`not even json`))
	assert.Nil(t, err)
	assert.Equal(t, e, same)

	_, err = pool.New("", engineDsl("pool2", "poolUserService", "pool2.a1"))
	assert.Nil(t, err)

	count := 0
	pool.Range(func(key, value any) bool {
		count++
		return true
	})
	assert.Equal(t, 2, count)

	pool.Del("pool1")
	_, ok = pool.Get("pool1")
	assert.False(t, ok)
	assert.Equal(t, []string{"pool1"}, deleted)

	pool.Stop()
	_, ok = pool.Get("pool2")
	assert.False(t, ok)
	assert.Equal(t, 2, len(deleted))
}
