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

package types

import (
	"context"
	"reflect"
	"sync"
)

// 代理策略种类
// proxy strategy kinds, see engine.ProxierRegistry
const (
	ProxierInterface = "interface"
	ProxierSubclass  = "subclass"
)

// Proxy 织入后的代理对象
// Proxy is a woven object: calls routed through it traverse the compiled
// interceptor chain before reaching the target. The reachable method set is
// fixed by the proxy strategy at build time and reported by Surface; methods
// outside the surface are not proxied and cannot be invoked through the proxy.
//
// For a method whose signature carries no trailing error result, a chain that
// produces an error has nowhere to surface it on the typed facade: the
// trampoline panics with an *InvocationConfigError. The dynamic Invoke path
// returns it as an ordinary error instead.
type Proxy interface {
	//ID 代理唯一标识
	ID() string
	//Kind 代理策略种类：ProxierInterface 或者 ProxierSubclass
	Kind() string
	//Target 目标对象
	Target() interface{}
	//TargetType 目标类型
	TargetType() reflect.Type
	//Surface 代理暴露的方法集
	Surface() []Method
	//Invoke 动态调用：按方法名经过拦截器链调用
	Invoke(method string, args ...interface{}) ([]interface{}, error)
	//InvokeContext 携带上下文的动态调用
	InvokeContext(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)
	//As 把代理绑定到一个镜像结构体指针上，结构体的导出函数字段按名字和签名绑定到代理方法
	//例如：var facade struct{ Find func(id string) (string, error) }; proxy.As(&facade)
	As(facade interface{}) error
}

// Advised 可管理的代理配置视图：暴露并允许变更顾问列表
// Advised is the management view of a proxy. Advisor mutation after the proxy
// is in use is allowed and invalidates the compiled chain cache, so the next
// call through the proxy sees the new advisor set.
type Advised interface {
	//Advisors 当前生效的顾问列表快照
	Advisors() []*Advisor
	//AddAdvisor 追加顾问
	AddAdvisor(advisor *Advisor) error
	//RemoveAdvisor 按标识删除顾问，存在返回 true
	RemoveAdvisor(id string) bool
	//ReplaceAdvisor 按标识替换顾问，存在返回 true
	ReplaceAdvisor(id string, advisor *Advisor) (bool, error)
	//TargetSource 目标来源
	TargetSource() TargetSource
	//IsExposeProxy 是否在调用期间通过上下文暴露代理自身
	IsExposeProxy() bool
}

// Proxied 合成代理类型实现的标记接口，用于把代理自身排除出织入候选
// Proxied marks synthesized proxy values so the applicability engine and the
// auto-proxy creator can skip them.
type Proxied interface {
	//ProxiedTarget 被代理的目标类型
	ProxiedTarget() reflect.Type
}

// TargetSource 目标来源：每次调用时解析目标对象
// TargetSource yields the target for each invocation. Static sources resolve
// to the same object every time and allow aggressive caching; non-static
// sources are consulted per call.
type TargetSource interface {
	//TargetType 目标类型
	TargetType() reflect.Type
	//Static 目标是否固定不变
	Static() bool
	//Target 解析目标对象
	Target() (interface{}, error)
}

// NewSingletonTargetSource 创建固定目标来源
func NewSingletonTargetSource(target interface{}) TargetSource {
	return &singletonTargetSource{target: target}
}

type singletonTargetSource struct {
	target interface{}
}

func (s *singletonTargetSource) TargetType() reflect.Type {
	return reflect.TypeOf(s.target)
}

func (s *singletonTargetSource) Static() bool {
	return true
}

func (s *singletonTargetSource) Target() (interface{}, error) {
	return s.target, nil
}

// HotSwappableTargetSource 可热替换的目标来源，运行期把调用切换到新目标
// HotSwappableTargetSource swaps the target while proxies stay alive. The
// replacement must keep the original target type so the compiled surface and
// chains remain valid.
type HotSwappableTargetSource struct {
	sync.RWMutex
	target     interface{}
	targetType reflect.Type
}

// NewHotSwappableTargetSource 创建可热替换目标来源
func NewHotSwappableTargetSource(initial interface{}) *HotSwappableTargetSource {
	return &HotSwappableTargetSource{
		target:     initial,
		targetType: reflect.TypeOf(initial),
	}
}

func (s *HotSwappableTargetSource) TargetType() reflect.Type {
	s.RLock()
	defer s.RUnlock()
	return s.targetType
}

func (s *HotSwappableTargetSource) Static() bool {
	return false
}

func (s *HotSwappableTargetSource) Target() (interface{}, error) {
	s.RLock()
	defer s.RUnlock()
	return s.target, nil
}

// Swap 替换目标，返回旧目标
// 新目标类型必须和旧目标一致
func (s *HotSwappableTargetSource) Swap(newTarget interface{}) (interface{}, error) {
	s.Lock()
	defer s.Unlock()
	newType := reflect.TypeOf(newTarget)
	if newType != s.targetType {
		return nil, NewInvocationConfigError("", "hot swap target type mismatch: "+newType.String()+" != "+s.targetType.String(), nil)
	}
	old := s.target
	s.target = newTarget
	return old, nil
}

// Initializable 容器生命周期回调：注册后初始化
// Initializable objects get OnInit after registration, before first use.
// Lifecycle callback interfaces are excluded from proxy surfaces.
type Initializable interface {
	OnInit() error
}

// Disposable 容器生命周期回调：删除时销毁
type Disposable interface {
	OnDestroy()
}

// ProxyAware 感知自身代理的对象：织入完成后注入代理引用
// ProxyAware targets receive their own proxy after weaving, so internal calls
// can route through the chain instead of bypassing it. Aware-suffixed marker
// interfaces are excluded from proxy surfaces.
type ProxyAware interface {
	SetProxy(proxy Proxy)
}
