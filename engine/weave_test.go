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
	"sync"
	"testing"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/test/assert"
	"github.com/weavego/weavego/utils/maps"
)

// 测试组件：按key计数的前置通知
var testCounters = struct {
	sync.Mutex
	byKey map[string]int
}{byKey: map[string]int{}}

func counterValue(key string) int {
	testCounters.Lock()
	defer testCounters.Unlock()
	return testCounters.byKey[key]
}

type countComponentConfiguration struct {
	Key string
}

type countComponent struct {
	Config countComponentConfiguration
}

func (c *countComponent) Type() string {
	return "testCount"
}

func (c *countComponent) New() types.Component {
	return &countComponent{}
}

func (c *countComponent) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &c.Config)
}

func (c *countComponent) Destroy() {
}

func (c *countComponent) Before(invocation types.Invocation) error {
	testCounters.Lock()
	defer testCounters.Unlock()
	testCounters.byKey[c.Config.Key]++
	return nil
}

// 测试组件：捕获初始化配置
var capturedConfigurations = struct {
	sync.Mutex
	byKey map[string]types.Configuration
}{byKey: map[string]types.Configuration{}}

type captureComponent struct {
	key string
}

func (c *captureComponent) Type() string {
	return "testCapture"
}

func (c *captureComponent) New() types.Component {
	return &captureComponent{}
}

func (c *captureComponent) Init(config types.Config, configuration types.Configuration) error {
	if key, ok := configuration["key"].(string); ok {
		c.key = key
	}
	capturedConfigurations.Lock()
	defer capturedConfigurations.Unlock()
	capturedConfigurations.byKey[c.key] = configuration
	return nil
}

func (c *captureComponent) Destroy() {
}

func (c *captureComponent) Before(invocation types.Invocation) error {
	return nil
}

func init() {
	_ = Registry.Register(&countComponent{})
	_ = Registry.Register(&captureComponent{})
}

func TestInitWeaveCtxFromDsl(t *testing.T) {
	Instances.Register("weaveTestUserService", &userService{})
	defer Instances.Unregister("weaveTestUserService")

	dsl := `{
	  "weave": {"id": "w1", "name": "test weave"},
	  "metadata": {
	    "advisors": [
	      {"id": "a1", "type": "testCount", "configuration": {"key": "w1.a1"}}
	    ],
	    "proxies": [
	      {"id": "p1", "target": "ref://weaveTestUserService", "strategy": "subclass"}
	    ]
	  }
	}`
	config := NewConfig()
	def, err := config.Parser.DecodeWeave(config, []byte(dsl))
	assert.Nil(t, err)
	ctx, err := InitWeaveCtx(config, &def)
	assert.Nil(t, err)
	defer ctx.Destroy()

	assert.Equal(t, "w1", ctx.Id)
	assert.True(t, ctx.Initialized())
	assert.Equal(t, 1, len(ctx.Advisors()))

	proxy, ok := ctx.GetProxy("p1")
	assert.True(t, ok)
	assert.Equal(t, types.ProxierSubclass, proxy.Kind())
	assert.Equal(t, proxy, ctx.RootProxy())

	before := counterValue("w1.a1")
	results, err := proxy.Invoke("Find", "42")
	assert.Nil(t, err)
	assert.Equal(t, "user-42", results[0])
	assert.Equal(t, before+1, counterValue("w1.a1"))
}

func TestDisabledWeave(t *testing.T) {
	config := NewConfig()
	def := &types.Weave{}
	def.Weave.Disabled = true
	_, err := InitWeaveCtx(config, def)
	assert.True(t, errors.Is(err, ErrDisabled))
}

func TestNilDefinition(t *testing.T) {
	_, err := InitWeaveCtx(NewConfig(), nil)
	assert.True(t, errors.Is(err, types.ErrEngineDslEmpty))
}

func TestVarsSubstitution(t *testing.T) {
	Instances.Register("weaveVarsUserService", &userService{})
	defer Instances.Unregister("weaveVarsUserService")

	dsl := `{
	  "weave": {
	    "id": "w2",
	    "configuration": {"vars": {"topic": "/audit/calls"}}
	  },
	  "metadata": {
	    "advisors": [
	      {"id": "a1", "type": "testCapture", "configuration": {"key": "w2.a1", "endpoint": "${vars.topic}"}}
	    ],
	    "proxies": [
	      {"id": "p1", "target": "ref://weaveVarsUserService"}
	    ]
	  }
	}`
	config := NewConfig()
	def, err := config.Parser.DecodeWeave(config, []byte(dsl))
	assert.Nil(t, err)
	ctx, err := InitWeaveCtx(config, &def)
	assert.Nil(t, err)
	defer ctx.Destroy()

	capturedConfigurations.Lock()
	captured := capturedConfigurations.byKey["w2.a1"]
	capturedConfigurations.Unlock()
	assert.NotNil(t, captured)
	assert.Equal(t, "/audit/calls", captured["endpoint"])
}

func TestStrategyMismatch(t *testing.T) {
	Instances.Register("weaveStrategyUserService", &userService{})
	defer Instances.Unregister("weaveStrategyUserService")

	// 没有注册任何接口，interface 策略无法满足
	dsl := `{
	  "weave": {"id": "w3"},
	  "metadata": {
	    "advisors": [],
	    "proxies": [
	      {"id": "p1", "target": "ref://weaveStrategyUserService", "strategy": "interface"}
	    ]
	  }
	}`
	config := NewConfig()
	config.Interfaces = types.NewInterfaceSet()
	def, err := config.Parser.DecodeWeave(config, []byte(dsl))
	assert.Nil(t, err)
	_, err = InitWeaveCtx(config, &def)
	assert.NotNil(t, err)
}

func TestSelectAdvisorsSubset(t *testing.T) {
	Instances.Register("weaveSubsetUserService", &userService{})
	defer Instances.Unregister("weaveSubsetUserService")

	dsl := `{
	  "weave": {"id": "w4"},
	  "metadata": {
	    "advisors": [
	      {"id": "a1", "type": "testCount", "configuration": {"key": "w4.a1"}},
	      {"id": "a2", "type": "testCount", "configuration": {"key": "w4.a2"}}
	    ],
	    "proxies": [
	      {"id": "p1", "target": "ref://weaveSubsetUserService", "advisors": ["a2"]}
	    ]
	  }
	}`
	config := NewConfig()
	def, err := config.Parser.DecodeWeave(config, []byte(dsl))
	assert.Nil(t, err)
	ctx, err := InitWeaveCtx(config, &def)
	assert.Nil(t, err)
	defer ctx.Destroy()

	proxy, ok := ctx.GetProxy("p1")
	assert.True(t, ok)
	_, err = proxy.Invoke("Find", "1")
	assert.Nil(t, err)
	assert.Equal(t, 0, counterValue("w4.a1"))
	assert.Equal(t, 1, counterValue("w4.a2"))
}

func TestIntroductionFromDsl(t *testing.T) {
	Instances.Register("weaveIntroUserService", &userService{})
	Instances.Register("weaveIntroGreeter", &greeterDelegate{})
	defer Instances.Unregister("weaveIntroUserService")
	defer Instances.Unregister("weaveIntroGreeter")

	dsl := `{
	  "weave": {"id": "w5"},
	  "metadata": {
	    "advisors": [
	      {"id": "intro", "introduction": {"interfaces": ["Greeter"], "delegate": "ref://weaveIntroGreeter"}}
	    ],
	    "proxies": [
	      {"id": "p1", "target": "ref://weaveIntroUserService"}
	    ]
	  }
	}`
	config := NewConfig()
	config.Interfaces = types.NewInterfaceSet()
	assert.Nil(t, config.Interfaces.Register((*Greeter)(nil)))
	assert.Nil(t, config.Interfaces.Register((*UserFinder)(nil)))

	def, err := config.Parser.DecodeWeave(config, []byte(dsl))
	assert.Nil(t, err)
	ctx, err := InitWeaveCtx(config, &def)
	assert.Nil(t, err)
	defer ctx.Destroy()

	proxy, ok := ctx.GetProxy("p1")
	assert.True(t, ok)
	results, err := proxy.Invoke("Greet", "bob")
	assert.Nil(t, err)
	assert.Equal(t, "hello bob", results[0])
}

func TestExposeInvocationFromDsl(t *testing.T) {
	Instances.Register("weaveExposeUserService", &userService{})
	defer Instances.Unregister("weaveExposeUserService")

	dsl := `{
	  "weave": {"id": "w6"},
	  "metadata": {
	    "advisors": [
	      {"id": "a1", "type": "testCount", "exposeInvocation": true, "configuration": {"key": "w6.a1"}}
	    ],
	    "proxies": [
	      {"id": "p1", "target": "ref://weaveExposeUserService"}
	    ]
	  }
	}`
	config := NewConfig()
	def, err := config.Parser.DecodeWeave(config, []byte(dsl))
	assert.Nil(t, err)
	ctx, err := InitWeaveCtx(config, &def)
	assert.Nil(t, err)
	defer ctx.Destroy()

	proxy, ok := ctx.GetProxy("p1")
	assert.True(t, ok)
	// 暴露顾问排序后永远在链头
	assert.Equal(t, ExposeInvocationAdvisor.Id, proxy.Advisors()[0].Id)
}

func TestRuntimeExprFromDsl(t *testing.T) {
	Instances.Register("weaveExprUserService", &userService{})
	defer Instances.Unregister("weaveExprUserService")

	dsl := `{
	  "weave": {"id": "w7"},
	  "metadata": {
	    "advisors": [
	      {"id": "a1", "type": "testCount",
	       "configuration": {"key": "w7.a1"},
	       "pointcut": {"expr": "args[0] == 'admin'", "runtime": true}}
	    ],
	    "proxies": [
	      {"id": "p1", "target": "ref://weaveExprUserService"}
	    ]
	  }
	}`
	config := NewConfig()
	def, err := config.Parser.DecodeWeave(config, []byte(dsl))
	assert.Nil(t, err)
	ctx, err := InitWeaveCtx(config, &def)
	assert.Nil(t, err)
	defer ctx.Destroy()

	proxy := ctx.RootProxy()
	assert.NotNil(t, proxy)

	_, err = proxy.Invoke("Find", "admin")
	assert.Nil(t, err)
	assert.Equal(t, 1, counterValue("w7.a1"))

	_, err = proxy.Invoke("Find", "guest")
	assert.Nil(t, err)
	assert.Equal(t, 1, counterValue("w7.a1"))
}

func TestUnknownComponentType(t *testing.T) {
	dsl := `{
	  "weave": {"id": "w8"},
	  "metadata": {
	    "advisors": [{"id": "a1", "type": "noSuchComponent"}],
	    "proxies": []
	  }
	}`
	config := NewConfig()
	def, err := config.Parser.DecodeWeave(config, []byte(dsl))
	assert.Nil(t, err)
	_, err = InitWeaveCtx(config, &def)
	assert.NotNil(t, err)
}

func TestUnknownInstanceReference(t *testing.T) {
	dsl := `{
	  "weave": {"id": "w9"},
	  "metadata": {
	    "advisors": [],
	    "proxies": [{"id": "p1", "target": "ref://noSuchInstance"}]
	  }
	}`
	config := NewConfig()
	def, err := config.Parser.DecodeWeave(config, []byte(dsl))
	assert.Nil(t, err)
	_, err = InitWeaveCtx(config, &def)
	assert.NotNil(t, err)
}
