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
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/reflectx"
)

// Proxier 代理策略：决定一个代理暴露哪些方法
// 代理的物化是可插拔能力：注册新策略可以替换内置的反射合成方案
//
// A Proxier is one proxy-materialization strategy. It computes the method
// surface a proxy exposes; the shared trampoline machinery below turns that
// surface into callable facades. Strategies are registered in a
// ProxierRegistry so embedders can swap the synthesis capability.
type Proxier interface {
	//Kind 策略种类标识
	Kind() string
	//Surface 计算代理暴露的方法集
	Surface(config *ProxyConfig) ([]types.Method, error)
}

// ProxierRegistry 代理策略注册器
type ProxierRegistry struct {
	sync.RWMutex
	proxiers map[string]Proxier
}

// NewProxierRegistry 创建带内置策略的注册器
func NewProxierRegistry() *ProxierRegistry {
	r := &ProxierRegistry{proxiers: make(map[string]Proxier)}
	_ = r.Register(&interfaceProxier{})
	_ = r.Register(&subclassProxier{})
	return r
}

// Proxiers is the default proxy strategy registry.
var Proxiers = NewProxierRegistry()

// Register 注册代理策略，种类重复返回错误
func (r *ProxierRegistry) Register(proxier Proxier) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.proxiers[proxier.Kind()]; ok {
		return errors.New("the proxier already exists. kind=" + proxier.Kind())
	}
	r.proxiers[proxier.Kind()] = proxier
	return nil
}

// Get 按种类获取代理策略
func (r *ProxierRegistry) Get(kind string) (Proxier, bool) {
	r.RLock()
	defer r.RUnlock()
	p, ok := r.proxiers[kind]
	return p, ok
}

// 生命周期回调接口不参与代理面
var lifecycleInterfaces = []reflect.Type{
	reflect.TypeOf((*types.Initializable)(nil)).Elem(),
	reflect.TypeOf((*types.Disposable)(nil)).Elem(),
}

// isInfrastructureInterface 接口是否是容器回调或者内部标记接口
// 内部标记接口按名字模式识别：本模块下以 Aware 结尾或者 Proxied 标记
func isInfrastructureInterface(ifaceType reflect.Type) bool {
	for _, lifecycle := range lifecycleInterfaces {
		if ifaceType == lifecycle {
			return true
		}
	}
	if ifaceType == proxiedType {
		return true
	}
	if strings.HasPrefix(ifaceType.PkgPath(), "github.com/weavego/weavego/") && strings.HasSuffix(ifaceType.Name(), "Aware") {
		return true
	}
	return false
}

// SelectProxier 选择代理策略
// 候选接口有至少一个可用方法走接口策略，暴露目标实现的全部候选接口；
// 否则，或者配置强制子类化，走子类策略。回调和标记接口不计入可用性，
// 但它们的存在不会把决策推向子类路线
func SelectProxier(registry *ProxierRegistry, config *ProxyConfig) (Proxier, error) {
	if registry == nil {
		registry = Proxiers
	}
	kind := types.ProxierSubclass
	if !config.ProxyTargetType {
		for _, ifaceType := range config.exposedInterfaces() {
			if !isInfrastructureInterface(ifaceType) && reflectx.ExportedMethodCount(ifaceType) > 0 {
				kind = types.ProxierInterface
				break
			}
		}
	}
	proxier, ok := registry.Get(kind)
	if !ok {
		return nil, fmt.Errorf("proxier not found. kind=%s", kind)
	}
	return proxier, nil
}

// interfaceProxier 接口策略
// 暴露全部候选接口的方法并上引介方法，同名方法签名必须一致
type interfaceProxier struct {
}

func (p *interfaceProxier) Kind() string {
	return types.ProxierInterface
}

func (p *interfaceProxier) Surface(config *ProxyConfig) ([]types.Method, error) {
	var surface []types.Method
	byName := make(map[string]types.Method)
	for _, ifaceType := range config.exposedInterfaces() {
		if isInfrastructureInterface(ifaceType) {
			continue
		}
		for _, method := range reflectx.MethodsOf(ifaceType) {
			if existing, ok := byName[method.Name]; ok {
				if existing.Type != method.Type {
					return nil, fmt.Errorf("%w: %s declared by %s and %s",
						types.ErrConflictingInterfaces, method.Name, existing.Declaring.String(), ifaceType.String())
				}
				continue
			}
			byName[method.Name] = method
			surface = append(surface, method)
		}
	}
	surface, err := appendIntroducedMethods(surface, byName, config)
	if err != nil {
		return nil, err
	}
	if len(surface) == 0 {
		return nil, fmt.Errorf("%w: no interface method to expose for %s",
			types.ErrUnproxyableTarget, config.TargetType().String())
	}
	return surface, nil
}

// subclassProxier 子类策略
// 镜像目标类型的全部导出方法，目标没有导出方法视为不可扩展，配置错误
type subclassProxier struct {
}

func (p *subclassProxier) Kind() string {
	return types.ProxierSubclass
}

func (p *subclassProxier) Surface(config *ProxyConfig) ([]types.Method, error) {
	targetType := config.TargetType()
	if targetType == nil {
		return nil, fmt.Errorf("%w: target is nil", types.ErrUnproxyableTarget)
	}
	methods := reflectx.MethodsOf(targetType)
	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: %s has no exported methods", types.ErrUnproxyableTarget, targetType.String())
	}
	byName := make(map[string]types.Method, len(methods))
	for _, method := range methods {
		byName[method.Name] = method
	}
	return appendIntroducedMethods(methods, byName, config)
}

// appendIntroducedMethods 追加引介顾问声明的接口方法
// 目标自身已有的同名方法保持原样，目标方法优先于引介
func appendIntroducedMethods(surface []types.Method, byName map[string]types.Method, config *ProxyConfig) ([]types.Method, error) {
	for _, advisor := range config.AdvisorsSnapshot() {
		if advisor.Kind != types.AdvisorKindIntroduction {
			continue
		}
		if !config.PreFiltered && !advisor.EffectiveFilter().Matches(config.TargetType()) {
			continue
		}
		for _, ifaceType := range advisor.Interfaces {
			for _, method := range reflectx.MethodsOf(ifaceType) {
				if existing, ok := byName[method.Name]; ok {
					if existing.Type != method.Type {
						return nil, fmt.Errorf("%w: introduced %s conflicts with %s",
							types.ErrConflictingInterfaces, method.Name, existing.Declaring.String())
					}
					continue
				}
				method.Introduced = true
				byName[method.Name] = method
				surface = append(surface, method)
			}
		}
	}
	return surface, nil
}

// DispatchFunc 蹦床落点：把一次门面调用转交给拦截器链
type DispatchFunc func(method types.Method, args []interface{}) ([]interface{}, error)

// trampoline 为一个方法构造 MakeFunc 蹦床
// 链产生的error在签名没有error返回值时没有出口，蹦床panic抛出
func trampoline(method types.Method, dispatch DispatchFunc) reflect.Value {
	return reflect.MakeFunc(method.Type, func(in []reflect.Value) []reflect.Value {
		args := reflectx.FlattenArgs(method.Type, in)
		results, err := dispatch(method, args)
		if err != nil && !method.HasTrailingError() {
			panic(types.NewInvocationConfigError(method.Name, "method signature has no error result to carry the chain error", err))
		}
		outs, joinErr := reflectx.JoinResults(method.Type, results, err)
		if joinErr != nil {
			panic(types.NewInvocationConfigError(method.Name, "interceptor results do not match the method signature", joinErr))
		}
		return outs
	})
}

// SynthesizeFacade 合成动态门面：一个导出函数字段逐一对应代理面方法的结构体指针
// 字段通过蹦床进入拦截器链。门面是匿名结构体类型，适合脚本和动态场景；
// 静态场景优先使用 Proxy.As 绑定调用方自己声明的镜像结构体
func SynthesizeFacade(surface []types.Method, dispatch DispatchFunc) (interface{}, error) {
	fields := make([]reflect.StructField, 0, len(surface))
	for _, method := range surface {
		fields = append(fields, reflect.StructField{
			Name: method.Name,
			Type: method.Type,
		})
	}
	facadeType := reflect.StructOf(fields)
	facade := reflect.New(facadeType)
	for _, method := range surface {
		facade.Elem().FieldByName(method.Name).Set(trampoline(method, dispatch))
	}
	return facade.Interface(), nil
}

// BindFacade 把代理面绑定到调用方声明的镜像结构体指针
// 结构体的导出函数字段按名字匹配代理方法，签名必须一致；
// 非函数字段和非导出字段跳过；匹配不到方法的函数字段是配置错误
func BindFacade(facade interface{}, surface []types.Method, dispatch DispatchFunc) error {
	fv := reflect.ValueOf(facade)
	if !fv.IsValid() || fv.Kind() != reflect.Ptr || fv.Elem().Kind() != reflect.Struct {
		return types.NewInvocationConfigError("", "facade must be a pointer to struct, got "+fmt.Sprintf("%T", facade), nil)
	}
	byName := make(map[string]types.Method, len(surface))
	for _, method := range surface {
		byName[method.Name] = method
	}
	sv := fv.Elem()
	st := sv.Type()
	bound := 0
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if field.PkgPath != "" || field.Type.Kind() != reflect.Func {
			continue
		}
		method, ok := byName[field.Name]
		if !ok {
			return types.NewInvocationConfigError(field.Name, "proxy surface has no such method", reflectx.ErrMethodNotFound)
		}
		if method.Type != field.Type {
			return types.NewInvocationConfigError(field.Name,
				fmt.Sprintf("facade field signature %s does not match proxy method %s", field.Type.String(), method.Type.String()), nil)
		}
		sv.Field(i).Set(trampoline(method, dispatch))
		bound++
	}
	if bound == 0 {
		return types.NewInvocationConfigError("", "facade has no exported func fields to bind", nil)
	}
	return nil
}
