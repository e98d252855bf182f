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
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/api/types/metrics"
	"github.com/weavego/weavego/utils/reflectx"
)

// ProxyConfig 一次代理构建的描述
// 工厂消费后配置即定型：策略、暴露面在构建时一次性决定，之后不再改变。
// 顾问列表的后续变更走代理的 Advised 视图，变更会显式失效链缓存
type ProxyConfig struct {
	//Id 代理标识，空则生成
	Id string
	//Config 引擎配置
	Config types.Config
	//TargetSource 目标来源
	TargetSource types.TargetSource
	//Interfaces 显式暴露的接口类型，接口策略在此基础上并上注册表发现的接口
	Interfaces []reflect.Type
	//Advisors 初始顾问列表，工厂负责排序和扩展
	Advisors []*types.Advisor
	//ProxyTargetType 强制子类策略
	ProxyTargetType bool
	//ExposeProxy 调用期间通过上下文暴露代理自身
	ExposeProxy bool
	//PreFiltered 类型级匹配已经完成，链编译跳过类型过滤器
	PreFiltered bool
}

// TargetType 目标类型
func (c *ProxyConfig) TargetType() reflect.Type {
	if c.TargetSource == nil {
		return nil
	}
	return c.TargetSource.TargetType()
}

// AdvisorsSnapshot 构建期顾问列表
func (c *ProxyConfig) AdvisorsSnapshot() []*types.Advisor {
	return c.Advisors
}

// exposedInterfaces 候选接口全集：显式配置的接口并上接口注册表里
// 目标实现的接口，保持登记顺序，去重
func (c *ProxyConfig) exposedInterfaces() []reflect.Type {
	interfaces := c.Config.Interfaces
	if interfaces == nil {
		interfaces = types.DefaultInterfaceSet
	}
	var out []reflect.Type
	seen := make(map[reflect.Type]bool)
	for _, ifaceType := range c.Interfaces {
		if !seen[ifaceType] {
			seen[ifaceType] = true
			out = append(out, ifaceType)
		}
	}
	for _, ifaceType := range interfaces.ImplementedBy(c.TargetType()) {
		if !seen[ifaceType] {
			seen[ifaceType] = true
			out = append(out, ifaceType)
		}
	}
	return out
}

// ProxyFactory 代理工厂
// 执行完整的构建流水线：校验顾问、排序、按需扩展暴露顾问、选择策略、
// 计算暴露面、产出代理
type ProxyFactory struct {
	//Config 引擎配置
	Config types.Config
	//Proxiers 代理策略注册器，nil 使用默认注册器
	Proxiers *ProxierRegistry
	//Adapters 通知适配器注册器，nil 使用默认注册器
	Adapters *AdviceAdapterRegistry
}

// NewProxyFactory 创建代理工厂
func NewProxyFactory(config types.Config) *ProxyFactory {
	return &ProxyFactory{Config: config, Proxiers: Proxiers, Adapters: Adapters}
}

// Create 构建代理
func (f *ProxyFactory) Create(config *ProxyConfig) (*DefaultProxy, error) {
	if config.TargetSource == nil {
		return nil, errors.New("proxy config: target source can not be nil")
	}
	if config.TargetType() == nil {
		return nil, types.ErrUnproxyableTarget
	}
	for _, advisor := range config.Advisors {
		if err := advisor.Validate(); err != nil {
			return nil, err
		}
	}
	config.Config = f.Config
	sorted := ExtendAdvisors(SortAdvisors(config.Advisors))
	config.Advisors = sorted

	proxier, err := SelectProxier(f.Proxiers, config)
	if err != nil {
		return nil, err
	}
	surface, err := proxier.Surface(config)
	if err != nil {
		return nil, err
	}

	id := config.Id
	if id == "" {
		uuId, _ := uuid.NewV4()
		id = uuId.String()
	}
	byName := make(map[string]types.Method, len(surface))
	for _, method := range surface {
		byName[method.Name] = method
	}
	proxy := &DefaultProxy{
		id:           id,
		kind:         proxier.Kind(),
		config:       f.Config,
		adapters:     f.Adapters,
		targetSource: config.TargetSource,
		exposeProxy:  config.ExposeProxy,
		preFiltered:  config.PreFiltered,
		surface:      surface,
		byName:       byName,
		advisors:     sorted,
		metrics:      metrics.NewInvocationMetrics(),
	}
	proxy.chains.Store(&sync.Map{})

	// 目标感知自身代理，内部调用也可以走链
	if target, targetErr := config.TargetSource.Target(); targetErr == nil {
		if aware, ok := target.(types.ProxyAware); ok {
			aware.SetProxy(proxy)
		}
	}
	return proxy, nil
}

// DefaultProxy 默认代理
// 被多个goroutine共享：暴露面和策略在构建时定型，按方法缓存编译后的
// 拦截器链。顾问变更换掉整个缓存表，在途调用继续使用旧链直至结束
type DefaultProxy struct {
	id           string
	kind         string
	config       types.Config
	adapters     *AdviceAdapterRegistry
	targetSource types.TargetSource
	exposeProxy  bool
	preFiltered  bool
	surface      []types.Method
	byName       map[string]types.Method
	metrics      *metrics.InvocationMetrics
	//advisorLock 保护顾问列表变更
	advisorLock sync.RWMutex
	advisors    []*types.Advisor
	//chains 方法名到编译链的缓存，发布后并发读安全，失效时整表替换
	chains atomic.Value
}

var _ types.Proxy = (*DefaultProxy)(nil)
var _ types.Advised = (*DefaultProxy)(nil)
var _ types.Proxied = (*DefaultProxy)(nil)

func (p *DefaultProxy) ID() string {
	return p.id
}

func (p *DefaultProxy) Kind() string {
	return p.kind
}

func (p *DefaultProxy) Target() interface{} {
	target, _ := p.targetSource.Target()
	return target
}

func (p *DefaultProxy) TargetType() reflect.Type {
	return p.targetSource.TargetType()
}

func (p *DefaultProxy) ProxiedTarget() reflect.Type {
	return p.targetSource.TargetType()
}

func (p *DefaultProxy) TargetSource() types.TargetSource {
	return p.targetSource
}

func (p *DefaultProxy) IsExposeProxy() bool {
	return p.exposeProxy
}

// Surface 暴露面快照
func (p *DefaultProxy) Surface() []types.Method {
	out := make([]types.Method, len(p.surface))
	copy(out, p.surface)
	return out
}

// Metrics 调用指标快照
func (p *DefaultProxy) Metrics() metrics.InvocationMetrics {
	return p.metrics.Get()
}

// Invoke 动态调用
func (p *DefaultProxy) Invoke(method string, args ...interface{}) ([]interface{}, error) {
	return p.InvokeContext(context.Background(), method, args...)
}

// InvokeContext 携带上下文的动态调用
func (p *DefaultProxy) InvokeContext(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	m, ok := p.byName[method]
	if !ok {
		return nil, types.NewInvocationConfigError(method, "proxy surface has no such method", reflectx.ErrMethodNotFound)
	}
	return p.dispatchContext(ctx, m, args)
}

// InvokeAsync 异步动态调用：任务提交到协程池，完成后通过 onEnd 回调返回结果
// 未配置 Config.Pool 时退化为 go func 执行
func (p *DefaultProxy) InvokeAsync(ctx context.Context, method string, args []interface{}, onEnd func(results []interface{}, err error)) {
	p.submitTask(func() {
		results, err := p.InvokeContext(ctx, method, args...)
		if onEnd != nil {
			onEnd(results, err)
		}
	})
}

// submitTask 向协程池提交任务
func (p *DefaultProxy) submitTask(task func()) {
	if p.config.Pool != nil {
		if err := p.config.Pool.Submit(task); err != nil {
			p.config.Logger.Printf("submit task error: %s", err)
		}
	} else {
		go task()
	}
}

// As 绑定镜像结构体门面
func (p *DefaultProxy) As(facade interface{}) error {
	return BindFacade(facade, p.surface, p.dispatch)
}

// Facade 合成匿名结构体门面
func (p *DefaultProxy) Facade() (interface{}, error) {
	return SynthesizeFacade(p.surface, p.dispatch)
}

func (p *DefaultProxy) dispatch(method types.Method, args []interface{}) ([]interface{}, error) {
	return p.dispatchContext(context.Background(), method, args)
}

// dispatchContext 一次调用的完整路径：解析目标、取链、建调用、走链
func (p *DefaultProxy) dispatchContext(ctx context.Context, method types.Method, args []interface{}) ([]interface{}, error) {
	target, err := p.targetSource.Target()
	if err != nil {
		return nil, types.NewInvocationConfigError(method.Name, "target source failed", err)
	}
	chain, err := p.chainFor(method)
	if err != nil {
		return nil, err
	}
	if p.exposeProxy {
		ctx = WithProxy(ctx, p)
	}
	invocation := NewInvocation(p, target, p.targetSource.TargetType(), method, args, chain, ctx)

	p.metrics.IncrementCurrent()
	p.metrics.IncrementTotal()
	start := time.Now()
	p.trace(types.TraceEvent{ProxyId: p.id, InvocationId: invocation.ID(), Method: method.Name, Phase: types.In})

	results, err := invocation.Proceed()

	p.metrics.DecrementCurrent()
	if err != nil {
		p.metrics.IncrementFailed()
	} else {
		p.metrics.IncrementSuccess()
	}
	p.trace(types.TraceEvent{ProxyId: p.id, InvocationId: invocation.ID(), Method: method.Name, Phase: types.Out, Err: err, Duration: time.Since(start)})
	return results, err
}

func (p *DefaultProxy) trace(event types.TraceEvent) {
	if p.config.OnTrace != nil {
		p.config.OnTrace(event)
	}
	if types.OnTrace != nil {
		types.OnTrace(event)
	}
}

// chainFor 取方法的编译链，懒编译并缓存
// 并发首次调用可能重复编译，结果一致，以先存入的为准
func (p *DefaultProxy) chainFor(method types.Method) ([]types.ChainEntry, error) {
	cache := p.chains.Load().(*sync.Map)
	if cached, ok := cache.Load(method.Name); ok {
		return cached.([]types.ChainEntry), nil
	}
	p.advisorLock.RLock()
	advisors := p.advisors
	p.advisorLock.RUnlock()
	chain, err := InterceptorsForMethod(p.adapters, advisors, p.targetSource.TargetType(), method, p.preFiltered)
	if err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(method.Name, chain)
	return actual.([]types.ChainEntry), nil
}

// InvalidateChains 显式失效链缓存，下一次调用重新编译
func (p *DefaultProxy) InvalidateChains() {
	p.chains.Store(&sync.Map{})
}

// Advisors 顾问列表快照
func (p *DefaultProxy) Advisors() []*types.Advisor {
	p.advisorLock.RLock()
	defer p.advisorLock.RUnlock()
	out := make([]*types.Advisor, len(p.advisors))
	copy(out, p.advisors)
	return out
}

// AddAdvisor 追加顾问，重新排序并失效链缓存
// 不改变构建时定型的暴露面：新引介顾问的接口不会追加到暴露面上
func (p *DefaultProxy) AddAdvisor(advisor *types.Advisor) error {
	if err := advisor.Validate(); err != nil {
		return err
	}
	p.advisorLock.Lock()
	merged := make([]*types.Advisor, 0, len(p.advisors)+1)
	merged = append(merged, p.advisors...)
	merged = append(merged, advisor)
	p.advisors = ExtendAdvisors(SortAdvisors(merged))
	p.advisorLock.Unlock()
	p.InvalidateChains()
	return nil
}

// RemoveAdvisor 按标识删除顾问，存在返回true，删除后失效链缓存
func (p *DefaultProxy) RemoveAdvisor(id string) bool {
	p.advisorLock.Lock()
	removed := false
	out := make([]*types.Advisor, 0, len(p.advisors))
	for _, advisor := range p.advisors {
		if advisor.Id == id {
			removed = true
			continue
		}
		out = append(out, advisor)
	}
	p.advisors = out
	p.advisorLock.Unlock()
	if removed {
		p.InvalidateChains()
	}
	return removed
}

// ReplaceAdvisor 按标识替换顾问，存在返回true，替换后重新排序并失效链缓存
func (p *DefaultProxy) ReplaceAdvisor(id string, advisor *types.Advisor) (bool, error) {
	if err := advisor.Validate(); err != nil {
		return false, err
	}
	p.advisorLock.Lock()
	replaced := false
	out := make([]*types.Advisor, 0, len(p.advisors))
	for _, existing := range p.advisors {
		if existing.Id == id {
			replaced = true
			out = append(out, advisor)
		} else {
			out = append(out, existing)
		}
	}
	if replaced {
		p.advisors = ExtendAdvisors(SortAdvisors(out))
	}
	p.advisorLock.Unlock()
	if replaced {
		p.InvalidateChains()
	}
	return replaced, nil
}
