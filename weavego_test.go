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

package weavego

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/engine"
	"github.com/weavego/weavego/test/assert"
	"github.com/weavego/weavego/utils/maps"
)

type accountService struct {
	lookups int64
}

func (s *accountService) Lookup(name string) (string, error) {
	atomic.AddInt64(&s.lookups, 1)
	return "account-" + name, nil
}

var accountWeave = `
{
  "weave": {
    "id": "accounts",
    "root": true
  },
  "metadata": {
    "advisors": [
      {
        "id": "a1",
        "type": "log",
        "pointcut": {
          "methods": ["Lookup"]
        }
      }
    ],
    "proxies": [
      {
        "id": "p1",
        "target": "ref://facadeAccountService"
      }
    ]
  }
}
`

func TestDefaultWeaveGo(t *testing.T) {
	service := &accountService{}
	RegisterInstance("facadeAccountService", service)
	defer UnregisterInstance("facadeAccountService")

	e, err := New("", []byte(accountWeave))
	assert.Nil(t, err)
	assert.Equal(t, "accounts", e.Id())

	// 同ID重复创建返回已存在实例
	again, err := New("accounts", []byte("not even json"))
	assert.Nil(t, err)
	assert.Equal(t, e, again)

	_, ok := Get("accounts")
	assert.True(t, ok)

	count := 0
	Range(func(key, value any) bool {
		count++
		return true
	})
	assert.True(t, count > 0)

	proxy, ok := e.Proxy("p1")
	assert.True(t, ok)
	results, err := proxy.Invoke("Lookup", "bob")
	assert.Nil(t, err)
	assert.Equal(t, "account-bob", results[0])
	assert.Equal(t, int64(1), atomic.LoadInt64(&service.lookups))

	Reload()

	Del("accounts")
	_, ok = Get("accounts")
	assert.False(t, ok)
}

// TestLoadFolder 测试从文件夹加载织入定义
func TestLoadFolder(t *testing.T) {
	RegisterInstance("facadeAccountService", &accountService{})
	defer UnregisterInstance("facadeAccountService")

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "accounts.json"), []byte(accountWeave), 0644)
	assert.Nil(t, err)

	myWeaveGo := &WeaveGo{pool: engine.NewPool()}
	err = myWeaveGo.Load(dir)
	assert.Nil(t, err)

	e, ok := myWeaveGo.Get("accounts")
	assert.True(t, ok)
	assert.NotNil(t, e.RootProxy())

	myWeaveGo.Stop()
	_, ok = myWeaveGo.Get("accounts")
	assert.False(t, ok)
}

// countingAdvice 自定义前置通知组件
type countingAdvice struct {
	Config struct {
		Step int64 `json:"step"`
	}
	total int64
}

func (a *countingAdvice) Type() string {
	return "facadeCounting"
}

func (a *countingAdvice) New() types.Component {
	return &countingAdvice{}
}

func (a *countingAdvice) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &a.Config)
}

func (a *countingAdvice) Destroy() {
}

func (a *countingAdvice) Before(invocation types.Invocation) error {
	atomic.AddInt64(&a.total, a.Config.Step)
	return nil
}

var countingWeave = `
{
  "weave": {
    "id": "counting"
  },
  "metadata": {
    "advisors": [
      {
        "id": "c1",
        "type": "facadeCounting",
        "configuration": {
          "step": 2
        }
      }
    ],
    "proxies": [
      {
        "id": "p1",
        "target": "ref://facadeCountedService"
      }
    ]
  }
}
`

func TestRegisterCustomComponent(t *testing.T) {
	err := Register(&countingAdvice{})
	assert.Nil(t, err)
	defer func() {
		_ = Unregister("facadeCounting")
	}()

	RegisterInstance("facadeCountedService", &accountService{})
	defer UnregisterInstance("facadeCountedService")

	e, err := New("counting", []byte(countingWeave))
	assert.Nil(t, err)
	defer Del("counting")

	_, err = e.RootProxy().Invoke("Lookup", "eve")
	assert.Nil(t, err)

	advisors := e.RootProxy().(types.Advised).Advisors()
	assert.Equal(t, 1, len(advisors))
	advice, ok := advisors[0].Advice.(*countingAdvice)
	assert.True(t, ok)
	assert.Equal(t, int64(2), atomic.LoadInt64(&advice.total))
}

func TestRegisterInterfaceFacade(t *testing.T) {
	type Pinger interface {
		Ping() string
	}
	err := RegisterInterface((*Pinger)(nil))
	assert.Nil(t, err)
	_, ok := types.DefaultInterfaceSet.TypeByName("Pinger")
	assert.True(t, ok)
}
