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
	"time"
)

// flow direction type
// 流向 调用流入、流出代理的方向
const (
	In  = "IN"
	Out = "OUT"
)

// 脚本类型
const (
	Js        = "Js"
	AllScript = "All"
)

// Configuration 组件配置类型
type Configuration map[string]interface{}

// Component 内置组件接口
// 把通知逻辑或者匹配逻辑封装成组件，然后通过织入DSL配置方式调用该组件
// 实现方式参考`components`包
// 然后注册到`weavego`默认注册器
// weavego.Registry.Register(&MyAdvice{})
type Component interface {
	//New 创建一个组件新实例
	//每个代理里的组件都会创建一个新的实例，数据是独立的
	New() Component
	//Type 组件类型，类型不能重复。
	//用于织入DSL，advice.type/matcher.type配置，初始化对应的组件
	//建议使用`/`区分命名空间，防止冲突。例如：x/dbTx
	Type() string
	//Init 组件初始化，一般做一些组件参数配置或者客户端初始化操作
	//每个代理里的组件初始化会调用一次
	Init(config Config, configuration Configuration) error
	//Destroy 销毁，做一些资源释放操作
	Destroy()
}

// ComponentRegistry 组件注册器
type ComponentRegistry interface {
	//Register 注册组件，如果`component.Type()`已经存在则返回一个`已存在`错误
	Register(component Component) error
	//Unregister 删除组件
	Unregister(componentType string) error
	//NewComponent 通过componentType创建一个新的组件实例
	NewComponent(componentType string) (Component, error)
	//GetComponents 获取所有注册组件列表
	GetComponents() map[string]Component
}

// PluginRegistry go plugin 暴露的组件清单接口
// 插件文件导出的 `Plugins` 符号必须实现该接口
type PluginRegistry interface {
	//Components 插件提供的组件列表
	Components() []Component
}

// Pool is the interface for a coroutine pool.
type Pool interface {
	//Submit 往协程池提交一个任务
	//如果协程池满返回错误
	Submit(task func()) error
	//Release 释放
	Release()
}

// TraceEvent carries one runtime weaving event, reported through Config.OnTrace.
// Phase is In when an invocation enters the interceptor chain and Out when the
// chain unwinds, in which case Duration and Err are populated.
type TraceEvent struct {
	// ProxyId is the ID of the proxy the invocation went through.
	ProxyId string
	// InvocationId is the ID of the invocation.
	InvocationId string
	// Method is the invoked method name.
	Method string
	// Phase is the event direction, In or Out.
	Phase string
	// AdvisorId is set for advisor-level events, empty for call-level events.
	AdvisorId string
	// Err is the invocation outcome, only meaningful for Out events.
	Err error
	// Duration is the wall time of the call, only meaningful for Out events.
	Duration time.Duration
}

// Script 脚本 用于注册原生函数或者使用go定义的自定义函数
type Script struct {
	//Type 脚本类型，默认Js
	Type string
	//Content 脚本内容或者自定义函数
	Content interface{}
}

const ScriptFuncSeparator = "#"
