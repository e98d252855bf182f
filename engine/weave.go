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
	"reflect"
	"sync"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/components/matcher"
	"github.com/weavego/weavego/utils/aes"
	"github.com/weavego/weavego/utils/str"
)

// ErrDisabled is returned when a weave definition is marked disabled.
var ErrDisabled = errors.New("the weave has been disabled")

// WeaveCtx 织入单元上下文
// 持有一个织入定义构建出的全部运行态：顾问、匹配器组件实例和代理。
// 构建完成后代理可以被多个goroutine并发调用；重载通过整体替换上下文完成
type WeaveCtx struct {
	//Id 织入单元ID
	Id string
	//config 引擎配置
	config types.Config
	//SelfDefinition 织入定义
	SelfDefinition *types.Weave
	//vars 定义级变量
	vars map[string]string
	//decryptSecrets 解密后的密钥表
	decryptSecrets map[string]string
	//componentsRegistry 组件注册器
	componentsRegistry types.ComponentRegistry
	//advisors 声明顺序的顾问列表
	advisors []*types.Advisor
	//components 顾问和匹配器组件实例，Destroy 时释放资源
	components []types.Component
	//proxies 代理ID到代理的映射
	proxies map[string]*DefaultProxy
	//proxyIds 声明顺序的代理ID列表
	proxyIds []string
	//initialized 是否构建完成
	initialized bool
	sync.RWMutex
}

// InitWeaveCtx 从织入定义构建上下文
// 先按声明顺序构建全部顾问，再逐个代理做合格性筛选并产出代理。
// 任一环节失败则整体失败，已创建的组件被销毁
func InitWeaveCtx(config types.Config, def *types.Weave) (*WeaveCtx, error) {
	if def == nil {
		return nil, types.ErrEngineDslEmpty
	}
	if def.Weave.Disabled {
		return nil, ErrDisabled
	}
	var ctx = &WeaveCtx{
		config:             config,
		SelfDefinition:     def,
		componentsRegistry: config.ComponentsRegistry,
		proxies:            make(map[string]*DefaultProxy),
	}
	if ctx.componentsRegistry == nil {
		ctx.componentsRegistry = Registry
	}
	if def.Weave.ID != "" {
		ctx.Id = def.Weave.ID
	}
	// 处理定义级vars和secrets
	if def.Weave.Configuration != nil {
		varsConfig := def.Weave.Configuration[types.Vars]
		ctx.vars = str.ToStringMapString(varsConfig)
		envConfig := def.Weave.Configuration[types.Secrets]
		secrets := str.ToStringMapString(envConfig)
		ctx.decryptSecrets = decryptSecret(secrets, []byte(config.SecretKey))
	}

	exposeNeeded := false
	for index, item := range def.Metadata.Advisors {
		advisor, err := ctx.buildAdvisor(index, item)
		if err != nil {
			ctx.Destroy()
			return nil, fmt.Errorf("init advisor %q: %w", item.Id, err)
		}
		ctx.advisors = append(ctx.advisors, advisor)
		if item.ExposeInvocation {
			exposeNeeded = true
		}
	}
	if exposeNeeded {
		// 优先级保证暴露顾问排序后永远在链头
		ctx.advisors = append(ctx.advisors, ExposeInvocationAdvisor)
	}

	factory := NewProxyFactory(config)
	for index, item := range def.Metadata.Proxies {
		if item.Id == "" {
			item.Id = fmt.Sprintf("proxy-%d", index)
		}
		proxy, err := ctx.buildProxy(factory, item)
		if err != nil {
			ctx.Destroy()
			return nil, fmt.Errorf("init proxy %q: %w", item.Id, err)
		}
		ctx.proxies[item.Id] = proxy
		ctx.proxyIds = append(ctx.proxyIds, item.Id)
	}
	ctx.initialized = true
	return ctx, nil
}

// buildAdvisor 从DSL构建一个顾问
func (ctx *WeaveCtx) buildAdvisor(index int, item *types.AdvisorDsl) (*types.Advisor, error) {
	if item.Introduction != nil {
		return ctx.buildIntroduction(index, item)
	}
	if item.Type == "" {
		return nil, errors.New("advisor type can not empty")
	}
	component, err := ctx.componentsRegistry.NewComponent(item.Type)
	if err != nil {
		return nil, err
	}
	configuration, err := ctx.processVariables(item.Configuration)
	if err != nil {
		return nil, err
	}
	if err = component.Init(ctx.config, configuration); err != nil {
		return nil, err
	}
	ctx.components = append(ctx.components, component)

	var advisor *types.Advisor
	if item.Pointcut == nil {
		advisor = types.NewAdvisor(component)
	} else {
		pointcut, pErr := ctx.buildPointcut(item.Pointcut)
		if pErr != nil {
			return nil, pErr
		}
		advisor = types.NewPointcutAdvisor(pointcut, component)
	}
	advisor.WithId(item.Id).WithAspect(item.Aspect, index)
	if item.Order != nil {
		advisor.WithOrder(*item.Order)
	}
	return advisor, advisor.Validate()
}

// buildIntroduction 从DSL构建一个引介顾问
func (ctx *WeaveCtx) buildIntroduction(index int, item *types.AdvisorDsl) (*types.Advisor, error) {
	introduction := item.Introduction
	delegate, err := Instances.Resolve(introduction.Delegate)
	if err != nil {
		return nil, err
	}
	var filter types.TypeFilter
	if introduction.Types != "" {
		filter = matcher.NewTypeNameFilter(introduction.Types)
	}
	interfaces, err := ctx.resolveInterfaces(introduction.Interfaces)
	if err != nil {
		return nil, err
	}
	if len(interfaces) == 0 {
		return nil, errors.New("introduction interfaces can not empty")
	}
	advisor := &types.Advisor{
		Kind:       types.AdvisorKindIntroduction,
		Delegate:   delegate,
		Filter:     filter,
		Interfaces: interfaces,
		Order:      types.OrderLowest,
	}
	advisor.WithId(item.Id).WithAspect(item.Aspect, index)
	if item.Order != nil {
		advisor.WithOrder(*item.Order)
	}
	return advisor, advisor.Validate()
}

// buildPointcut 从DSL构建切入点
// 配置了matcher组件时忽略快捷字段，否则把类型名、方法名和表达式
// 三个快捷字段组合成交集匹配
func (ctx *WeaveCtx) buildPointcut(dsl *types.PointcutDsl) (types.Pointcut, error) {
	if dsl.Matcher != "" {
		component, err := ctx.componentsRegistry.NewComponent(dsl.Matcher)
		if err != nil {
			return nil, err
		}
		configuration, err := ctx.processVariables(dsl.MatcherConfiguration)
		if err != nil {
			return nil, err
		}
		if err = component.Init(ctx.config, configuration); err != nil {
			return nil, err
		}
		methodMatcher, ok := component.(types.MethodMatcher)
		if !ok {
			return nil, fmt.Errorf("component %q is not a method matcher", dsl.Matcher)
		}
		ctx.components = append(ctx.components, component)
		return types.NewPointcut(nil, methodMatcher), nil
	}

	var filter types.TypeFilter
	if dsl.Types != "" {
		filter = matcher.NewTypeNameFilter(dsl.Types)
	}
	var matchers []types.MethodMatcher
	if len(dsl.Methods) > 0 {
		matchers = append(matchers, matcher.NewNameMatcher(dsl.Methods...))
	}
	if dsl.Expr != "" {
		exprMatcher, err := matcher.NewExprMatcher(dsl.Expr, dsl.Runtime)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, exprMatcher)
	}
	var methodMatcher types.MethodMatcher
	switch len(matchers) {
	case 0:
		methodMatcher = nil
	case 1:
		methodMatcher = matchers[0]
	default:
		methodMatcher = &types.IntersectionMethodMatcher{Matchers: matchers}
	}
	return types.NewPointcut(filter, methodMatcher), nil
}

// buildProxy 从DSL构建一个代理
func (ctx *WeaveCtx) buildProxy(factory *ProxyFactory, item *types.ProxyDsl) (*DefaultProxy, error) {
	target, err := Instances.Resolve(item.Target)
	if err != nil {
		return nil, err
	}
	interfaces, err := ctx.resolveInterfaces(item.Interfaces)
	if err != nil {
		return nil, err
	}
	candidates := ctx.advisors
	if len(item.Advisors) > 0 {
		candidates, err = ctx.selectAdvisors(item.Advisors)
		if err != nil {
			return nil, err
		}
	}
	interfaceSet := ctx.config.Interfaces
	if interfaceSet == nil {
		interfaceSet = types.DefaultInterfaceSet
	}
	eligible := FindEligibleAdvisors(candidates, reflect.TypeOf(target), interfaceSet)

	proxy, err := factory.Create(&ProxyConfig{
		Id:              item.Id,
		TargetSource:    types.NewSingletonTargetSource(target),
		Interfaces:      interfaces,
		Advisors:        eligible,
		ProxyTargetType: item.Strategy == types.ProxierSubclass,
		ExposeProxy:     item.ExposeProxy,
		PreFiltered:     true,
	})
	if err != nil {
		return nil, err
	}
	if item.Strategy != "" && proxy.Kind() != item.Strategy {
		return nil, fmt.Errorf("strategy %q not applicable to target %T", item.Strategy, target)
	}
	return proxy, nil
}

// selectAdvisors 按顾问ID选择子集，暴露顾问始终随行
func (ctx *WeaveCtx) selectAdvisors(ids []string) ([]*types.Advisor, error) {
	byId := make(map[string]*types.Advisor, len(ctx.advisors))
	for _, advisor := range ctx.advisors {
		byId[advisor.Id] = advisor
	}
	var out []*types.Advisor
	for _, id := range ids {
		advisor, ok := byId[id]
		if !ok {
			return nil, fmt.Errorf("advisor not found. advisorId=%s", id)
		}
		out = append(out, advisor)
	}
	for _, advisor := range ctx.advisors {
		if advisor == ExposeInvocationAdvisor {
			out = append(out, advisor)
			break
		}
	}
	return out, nil
}

// resolveInterfaces 把接口名列表解析成接口类型列表
func (ctx *WeaveCtx) resolveInterfaces(names []string) ([]reflect.Type, error) {
	if len(names) == 0 {
		return nil, nil
	}
	interfaceSet := ctx.config.Interfaces
	if interfaceSet == nil {
		interfaceSet = types.DefaultInterfaceSet
	}
	out := make([]reflect.Type, 0, len(names))
	for _, name := range names {
		ifaceType, ok := interfaceSet.TypeByName(name)
		if !ok {
			return nil, fmt.Errorf("interface not registered. name=%s", name)
		}
		out = append(out, ifaceType)
	}
	return out, nil
}

// processVariables 使用全局配置和定义级vars替换组件配置占位符，
// 例如：${global.propertyKey}、${vars.host}
func (ctx *WeaveCtx) processVariables(configuration types.Configuration) (types.Configuration, error) {
	var result = make(types.Configuration)
	globalEnv := make(map[string]string)
	if ctx.config.Properties != nil {
		globalEnv = ctx.config.Properties.Values()
	}
	varsEnv := copyMap(ctx.vars)
	decryptSecrets := copyMap(ctx.decryptSecrets)

	for key, value := range configuration {
		if strV, ok := value.(string); ok {
			v := str.SprintfVar(strV, types.Global+".", globalEnv)
			v = str.SprintfVar(v, types.Vars+".", varsEnv)
			v = str.SprintfVar(v, types.Secrets+".", decryptSecrets)
			result[key] = v
		} else {
			result[key] = value
		}
	}
	return result, nil
}

// GetProxy 按ID取代理
func (ctx *WeaveCtx) GetProxy(proxyId string) (*DefaultProxy, bool) {
	ctx.RLock()
	defer ctx.RUnlock()
	proxy, ok := ctx.proxies[proxyId]
	return proxy, ok
}

// RootProxy 入口代理，由firstProxyIndex选定
func (ctx *WeaveCtx) RootProxy() *DefaultProxy {
	ctx.RLock()
	defer ctx.RUnlock()
	index := ctx.SelfDefinition.Metadata.FirstProxyIndex
	if index < 0 || index >= len(ctx.proxyIds) {
		index = 0
	}
	if len(ctx.proxyIds) == 0 {
		return nil
	}
	return ctx.proxies[ctx.proxyIds[index]]
}

// Advisors 上下文持有的顾问列表快照
func (ctx *WeaveCtx) Advisors() []*types.Advisor {
	ctx.RLock()
	defer ctx.RUnlock()
	out := make([]*types.Advisor, len(ctx.advisors))
	copy(out, ctx.advisors)
	return out
}

// Definition 织入定义
func (ctx *WeaveCtx) Definition() *types.Weave {
	return ctx.SelfDefinition
}

// Initialized 是否构建完成
func (ctx *WeaveCtx) Initialized() bool {
	ctx.RLock()
	defer ctx.RUnlock()
	return ctx.initialized
}

// Destroy 销毁上下文，释放组件资源
func (ctx *WeaveCtx) Destroy() {
	ctx.Lock()
	defer ctx.Unlock()
	for _, component := range ctx.components {
		component.Destroy()
	}
	ctx.components = nil
	ctx.initialized = false
}

// decryptSecret decrypts the secrets in the input map using the provided secret key
func decryptSecret(inputMap map[string]string, secretKey []byte) map[string]string {
	result := make(map[string]string)
	for key, value := range inputMap {
		if plaintext, err := aes.Decrypt(value, secretKey); err == nil {
			result[key] = plaintext
		} else {
			result[key] = value
		}
	}
	return result
}

func copyMap(inputMap map[string]string) map[string]string {
	result := make(map[string]string)
	for key, value := range inputMap {
		result[key] = value
	}
	return result
}
