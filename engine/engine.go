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

// Package engine implements the proxy weaving runtime.
// 包 engine 实现代理织入运行时。
//
// It builds interception chains from advisors, materializes interface or
// subclass proxies around registered targets, and hot reloads weave
// definitions without stopping in-flight invocations.
// 它从顾问构建拦截链，围绕注册的目标实体化接口或子类代理，
// 并在不中断在途调用的情况下热重载织入定义。
package engine

import (
	"sync"

	"github.com/weavego/weavego/api/types"
)

// Compile-time check that ProxyEngine satisfies the api contract.
var _ types.ProxyEngine = (*ProxyEngine)(nil)

// ProxyEngine 代理织入引擎
// 一个引擎运行一个织入定义。代理调用是并发安全的；重载把旧上下文
// 整体换成新上下文，失败时保留旧上下文继续服务
//
// Lifecycle:
// 生命周期：
//  1. Creation with NewProxyEngine()  使用 NewProxyEngine() 创建
//  2. Invocation through woven proxies  通过织入的代理调用
//  3. Optional reloading with ReloadSelf()  使用 ReloadSelf() 可选重载
//  4. Cleanup with Stop()  使用 Stop() 清理
type ProxyEngine struct {
	//Config 引擎配置
	Config types.Config
	//id 引擎实例ID
	id string
	//weaveCtx 当前织入上下文
	weaveCtx *WeaveCtx
	//reloadLock 串行化重载，调用不经过该锁
	reloadLock sync.Mutex
	//OnUpdated 定义重载后的回调
	OnUpdated func(id string, dsl []byte)
}

// NewProxyEngine 使用给定ID和织入定义创建引擎
// ID为空时使用定义里的织入单元ID
func NewProxyEngine(id string, def []byte, opts ...types.ProxyEngineOption) (*ProxyEngine, error) {
	if len(def) == 0 {
		return nil, types.ErrEngineDslEmpty
	}
	engine := &ProxyEngine{
		id:     id,
		Config: NewConfig(),
	}
	err := engine.ReloadSelf(def, opts...)
	if err == nil && engine.weaveCtx != nil {
		if id != "" {
			engine.weaveCtx.Id = id
		} else {
			engine.id = engine.weaveCtx.Id
		}
	}
	return engine, err
}

// Id 引擎实例ID
func (e *ProxyEngine) Id() string {
	return e.id
}

// SetConfig 更新引擎配置，下一次重载生效
func (e *ProxyEngine) SetConfig(config types.Config) {
	e.Config = config
}

// Reload 使用当前定义重载
func (e *ProxyEngine) Reload(opts ...types.ProxyEngineOption) error {
	return e.ReloadSelf(e.DSL(), opts...)
}

// ReloadSelf 使用新定义热重载
// 新定义构建成功后替换旧上下文并销毁其组件；构建失败时旧上下文
// 原样保留
func (e *ProxyEngine) ReloadSelf(dsl []byte, opts ...types.ProxyEngineOption) error {
	e.reloadLock.Lock()
	defer e.reloadLock.Unlock()

	for _, opt := range opts {
		_ = opt(e)
	}
	e.ensureDefaults()

	def, err := e.Config.Parser.DecodeWeave(e.Config, dsl)
	if err != nil {
		return err
	}
	ctx, err := InitWeaveCtx(e.Config, &def)
	if err != nil {
		return err
	}
	if old := e.weaveCtx; old != nil {
		ctx.Id = old.Id
		old.Destroy()
	}
	e.weaveCtx = ctx
	if e.OnUpdated != nil {
		e.OnUpdated(e.id, dsl)
	}
	return nil
}

// ensureDefaults 填充配置缺省项
func (e *ProxyEngine) ensureDefaults() {
	if e.Config.Parser == nil {
		e.Config.Parser = &JsonParser{}
	}
	if e.Config.ComponentsRegistry == nil {
		e.Config.ComponentsRegistry = Registry
	}
	if e.Config.Interfaces == nil {
		e.Config.Interfaces = types.DefaultInterfaceSet
	}
}

// DSL 当前定义的DSL表示
func (e *ProxyEngine) DSL() []byte {
	if e.weaveCtx == nil {
		return nil
	}
	e.ensureDefaults()
	dsl, err := e.Config.Parser.EncodeWeave(e.weaveCtx.Definition())
	if err != nil {
		return nil
	}
	return dsl
}

// Definition 当前织入定义
func (e *ProxyEngine) Definition() types.Weave {
	if e.weaveCtx == nil {
		return types.Weave{}
	}
	return *e.weaveCtx.Definition()
}

// Proxy 按定义ID取织入后的代理
func (e *ProxyEngine) Proxy(proxyId string) (types.Proxy, bool) {
	if e.weaveCtx == nil {
		return nil, false
	}
	proxy, ok := e.weaveCtx.GetProxy(proxyId)
	if !ok {
		return nil, false
	}
	return proxy, true
}

// RootProxy 入口代理，由firstProxyIndex选定
func (e *ProxyEngine) RootProxy() types.Proxy {
	if e.weaveCtx == nil {
		return nil
	}
	if proxy := e.weaveCtx.RootProxy(); proxy != nil {
		return proxy
	}
	return nil
}

// Advised 按定义ID取代理的管理视图
func (e *ProxyEngine) Advised(proxyId string) (types.Advised, bool) {
	if e.weaveCtx == nil {
		return nil, false
	}
	proxy, ok := e.weaveCtx.GetProxy(proxyId)
	if !ok {
		return nil, false
	}
	return proxy, true
}

// Initialized 引擎是否就绪
func (e *ProxyEngine) Initialized() bool {
	return e.weaveCtx != nil && e.weaveCtx.Initialized()
}

// Stop 停止引擎并释放组件资源
func (e *ProxyEngine) Stop() {
	e.reloadLock.Lock()
	defer e.reloadLock.Unlock()
	if e.weaveCtx != nil {
		e.weaveCtx.Destroy()
		e.weaveCtx = nil
	}
}

// NewConfig creates a new Config and applies the options,
// filling in the engine defaults for parser and component registry.
func NewConfig(opts ...types.Option) types.Config {
	c := types.NewConfig(opts...)
	if c.Parser == nil {
		c.Parser = &JsonParser{}
	}
	if c.ComponentsRegistry == nil {
		c.ComponentsRegistry = Registry
	}
	return c
}
