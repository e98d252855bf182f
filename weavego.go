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

// Package weavego provides a lightweight, embedded proxy weaving engine.
//
// # Usage
//
// Register targets and interfaces, then describe advisors and proxies in a
// weave definition. Weave definition format:
//
//	{
//		  "weave": {
//			"id":"weave01"
//		  },
//		  "metadata": {
//		    "advisors": [
//		    ],
//			"proxies": [
//			]
//		 }
//	}
//
// advisors: configure advice components and their pointcuts. You can use
// built-in components and third-party extension components without writing
// any code.
//
// proxies: configure which registered targets get woven and which advisors
// apply to them.
//
// Example:
//
//	var weaveFile = `
//	{
//		"weave": {
//		"id":"weave02",
//		"name": "test",
//		"root": true
//		},
//		"metadata": {
//		"advisors": [
//			{
//			"id": "a1",
//			"type": "log",
//			"name": "audit log",
//			"configuration": {
//				"template": "before ${method}"
//				},
//			"pointcut": {
//				"methods": ["Find*","Save*"]
//				}
//			}
//		],
//		"proxies": [
//			{
//				"id": "p1",
//				"target": "ref://userService"
//			}
//		]
//		}
//	}
//	`
//
// Register the target instance
//
//	weavego.RegisterInstance("userService", &UserService{})
//
// Create Proxy Engine Instance
//
//	proxyEngine, err := weavego.New("weave01", []byte(weaveFile))
//
// Invoke through the woven proxy
//
//	proxy, _ := proxyEngine.Proxy("p1")
//	results, err := proxy.Invoke("FindUser", "admin")
//
// Update Weave Definition
//
//	err := proxyEngine.ReloadSelf([]byte(weaveFile))
//
// Load All Weave Definitions
//
//	err := weavego.Load("./weaves")
//
// Get Engine Instance
//
//	proxyEngine, ok := weavego.Get("weave01")
package weavego

import (
	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/engine"
)

// Registry 组件默认注册器
var Registry = engine.Registry

// DefaultWeaveGo 默认织入引擎池实例
var DefaultWeaveGo = &WeaveGo{pool: engine.DefaultPool}

// WeaveGo 织入引擎实例池
type WeaveGo struct {
	pool *engine.Pool
}

// Pool 底层引擎池
func (g *WeaveGo) Pool() *engine.Pool {
	return g.pool
}

// Load 加载指定文件夹及其子文件夹所有织入定义（以.json结尾文件），到织入引擎实例池
// 织入单元ID，使用定义文件配置的weave.id
func (g *WeaveGo) Load(folderPath string, opts ...types.ProxyEngineOption) error {
	return g.pool.Load(folderPath, opts...)
}

// New 创建一个新的ProxyEngine并将其存储在织入引擎池中
// 如果指定id="",则使用定义文件的weave.id
func (g *WeaveGo) New(id string, dsl []byte, opts ...types.ProxyEngineOption) (types.ProxyEngine, error) {
	return g.pool.New(id, dsl, opts...)
}

// Get 获取指定ID织入引擎实例
func (g *WeaveGo) Get(id string) (types.ProxyEngine, bool) {
	return g.pool.Get(id)
}

// Del 删除指定ID织入引擎实例
func (g *WeaveGo) Del(id string) {
	g.pool.Del(id)
}

// Stop 释放所有织入引擎实例
func (g *WeaveGo) Stop() {
	g.pool.Stop()
}

// Reload 重载所有织入引擎实例
func (g *WeaveGo) Reload(opts ...types.ProxyEngineOption) {
	g.pool.Reload(opts...)
}

// Range 遍历所有织入引擎实例
func (g *WeaveGo) Range(f func(key, value any) bool) {
	g.pool.Range(f)
}

// Load 加载指定文件夹及其子文件夹所有织入定义到默认池
func Load(folderPath string, opts ...types.ProxyEngineOption) error {
	return DefaultWeaveGo.Load(folderPath, opts...)
}

// New 创建一个新的ProxyEngine并将其存储在默认池中
func New(id string, dsl []byte, opts ...types.ProxyEngineOption) (types.ProxyEngine, error) {
	return DefaultWeaveGo.New(id, dsl, opts...)
}

// Get 获取指定ID织入引擎实例
func Get(id string) (types.ProxyEngine, bool) {
	return DefaultWeaveGo.Get(id)
}

// Del 删除指定ID织入引擎实例
func Del(id string) {
	DefaultWeaveGo.Del(id)
}

// Stop 释放默认池所有织入引擎实例
func Stop() {
	DefaultWeaveGo.Stop()
}

// Reload 重载默认池所有织入引擎实例
func Reload(opts ...types.ProxyEngineOption) {
	DefaultWeaveGo.Reload(opts...)
}

// Range 遍历默认池所有织入引擎实例
func Range(f func(key, value any) bool) {
	DefaultWeaveGo.Range(f)
}

// NewConfig 创建带引擎缺省项的配置
func NewConfig(opts ...types.Option) types.Config {
	return engine.NewConfig(opts...)
}

// Register 注册自定义通知或者匹配器组件
func Register(component types.Component) error {
	return engine.Registry.Register(component)
}

// Unregister 删除自定义组件
func Unregister(componentType string) error {
	return engine.Registry.Unregister(componentType)
}

// RegisterInstance 登记命名目标对象或者引介委托对象，
// 织入DSL通过"ref://name"引用
// 实现 types.Initializable 的实例在登记时完成初始化
func RegisterInstance(name string, instance interface{}) error {
	return engine.Instances.Register(name, instance)
}

// UnregisterInstance 删除命名实例
func UnregisterInstance(name string) {
	engine.Instances.Unregister(name)
}

// RegisterInterface 注册候选接口，接口策略和引介按注册表发现接口。
// ifacePtr 使用指向接口的指针，例如：(*Greeter)(nil)
func RegisterInterface(ifacePtr interface{}) error {
	return types.DefaultInterfaceSet.Register(ifacePtr)
}
