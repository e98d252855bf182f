/*
 * Copyright 2023 The WeaveGo Authors.
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
	"reflect"
	"sync"

	"github.com/weavego/weavego/api/types"
)

// AutoProxyCreator 自动织入钩子
// 对象构建流水线把每个新对象交给 PostProcess：有合格顾问就返回代理顶替
// 原对象，没有就原样放行。织入基础设施对象和显式排除的对象跳过评估，
// 防止顾问自身被代理引起递归
type AutoProxyCreator struct {
	//Config 引擎配置
	Config types.Config
	//Factory 代理工厂，nil 时按 Config 创建
	Factory *ProxyFactory
	//ExposeProxy 产出的代理是否暴露自身
	ExposeProxy bool
	//advisorLock 保护候选顾问列表
	advisorLock sync.RWMutex
	advisors    []*types.Advisor
	//exclusions 按名字排除的对象
	exclusions sync.Map
}

// NewAutoProxyCreator 创建自动织入钩子
func NewAutoProxyCreator(config types.Config, advisors ...*types.Advisor) *AutoProxyCreator {
	return &AutoProxyCreator{
		Config:   config,
		Factory:  NewProxyFactory(config),
		advisors: advisors,
	}
}

// AddAdvisor 追加候选顾问
// 只影响之后构建的对象，已经产出的代理不追溯
func (c *AutoProxyCreator) AddAdvisor(advisor *types.Advisor) error {
	if err := advisor.Validate(); err != nil {
		return err
	}
	c.advisorLock.Lock()
	defer c.advisorLock.Unlock()
	c.advisors = append(c.advisors, advisor)
	return nil
}

// Advisors 候选顾问快照
func (c *AutoProxyCreator) Advisors() []*types.Advisor {
	c.advisorLock.RLock()
	defer c.advisorLock.RUnlock()
	out := make([]*types.Advisor, len(c.advisors))
	copy(out, c.advisors)
	return out
}

// Exclude 按名字排除对象，被排除的对象永远原样放行
func (c *AutoProxyCreator) Exclude(name string) {
	c.exclusions.Store(name, true)
}

// ShouldSkip 对象是否跳过织入评估
// 织入基础设施（顾问、通知、切入点构件、拦截器、代理自身）不参与织入
func (c *AutoProxyCreator) ShouldSkip(object interface{}, name string) bool {
	if object == nil {
		return true
	}
	if _, ok := c.exclusions.Load(name); ok {
		return true
	}
	switch object.(type) {
	case *types.Advisor, types.Advisor:
		return true
	case types.Interceptor, types.BeforeAdvice, types.AfterReturningAdvice, types.AfterThrowingAdvice, types.AfterAdvice:
		return true
	case types.Pointcut, types.TypeFilter, types.MethodMatcher:
		return true
	case types.Proxy, types.Proxied, types.TargetSource:
		return true
	case Proxier:
		return true
	}
	return false
}

// PostProcess 织入边界
// 合格顾问为空原样返回；非空则排序、扩展、构建代理返回
func (c *AutoProxyCreator) PostProcess(object interface{}, name string) (interface{}, error) {
	if c.ShouldSkip(object, name) {
		return object, nil
	}
	targetType := reflect.TypeOf(object)
	eligible := FindEligibleAdvisors(c.Advisors(), targetType, c.Config.Interfaces)
	if len(eligible) == 0 {
		return object, nil
	}
	factory := c.Factory
	if factory == nil {
		factory = NewProxyFactory(c.Config)
	}
	proxy, err := factory.Create(&ProxyConfig{
		Id:           name,
		TargetSource: types.NewSingletonTargetSource(object),
		Advisors:     eligible,
		ExposeProxy:  c.ExposeProxy,
		PreFiltered:  true,
	})
	if err != nil {
		return nil, err
	}
	return proxy, nil
}
