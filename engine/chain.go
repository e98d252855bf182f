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
	"fmt"
	"reflect"
	"sync"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/reflectx"
)

// AdviceAdapterRegistry 通知适配器注册器
// 负责把通知的各种形态适配成拦截器，注册新适配器可以扩展通知词汇表
type AdviceAdapterRegistry struct {
	sync.RWMutex
	adapters []types.AdviceAdapter
}

// NewAdviceAdapterRegistry 创建带内置适配器的注册器
func NewAdviceAdapterRegistry() *AdviceAdapterRegistry {
	r := &AdviceAdapterRegistry{}
	r.RegisterAdapter(&beforeAdviceAdapter{})
	r.RegisterAdapter(&afterReturningAdviceAdapter{})
	r.RegisterAdapter(&afterThrowingAdviceAdapter{})
	r.RegisterAdapter(&afterAdviceAdapter{})
	return r
}

// Adapters is the default advice adapter registry.
var Adapters = NewAdviceAdapterRegistry()

// RegisterAdapter 注册通知适配器
func (r *AdviceAdapterRegistry) RegisterAdapter(adapter types.AdviceAdapter) {
	r.Lock()
	defer r.Unlock()
	r.adapters = append(r.adapters, adapter)
}

// GetInterceptors 把通知适配成拦截器列表
// 拦截器形态直接使用；其余形态按注册的适配器逐个适配，一条通知实现多种
// 形态会得到多个拦截器。一个适配器都不支持返回 ErrUnknownAdviceType
func (r *AdviceAdapterRegistry) GetInterceptors(advice types.Advice) ([]types.Interceptor, error) {
	var interceptors []types.Interceptor
	if interceptor, ok := advice.(types.Interceptor); ok {
		interceptors = append(interceptors, interceptor)
	}
	r.RLock()
	defer r.RUnlock()
	for _, adapter := range r.adapters {
		if adapter.SupportsAdvice(advice) {
			interceptors = append(interceptors, adapter.GetInterceptor(advice))
		}
	}
	if len(interceptors) == 0 {
		return nil, fmt.Errorf("%w: %T", types.ErrUnknownAdviceType, advice)
	}
	return interceptors, nil
}

// 内置适配器：前置通知
type beforeAdviceAdapter struct {
}

func (a *beforeAdviceAdapter) SupportsAdvice(advice types.Advice) bool {
	_, ok := advice.(types.BeforeAdvice)
	return ok
}

func (a *beforeAdviceAdapter) GetInterceptor(advice types.Advice) types.Interceptor {
	return &beforeInterceptor{advice: advice.(types.BeforeAdvice)}
}

type beforeInterceptor struct {
	advice types.BeforeAdvice
}

func (i *beforeInterceptor) Invoke(invocation types.Invocation) ([]interface{}, error) {
	if err := i.advice.Before(invocation); err != nil {
		// 前置通知失败中止调用，目标不执行
		return nil, err
	}
	return invocation.Proceed()
}

// 内置适配器：返回后通知
type afterReturningAdviceAdapter struct {
}

func (a *afterReturningAdviceAdapter) SupportsAdvice(advice types.Advice) bool {
	_, ok := advice.(types.AfterReturningAdvice)
	return ok
}

func (a *afterReturningAdviceAdapter) GetInterceptor(advice types.Advice) types.Interceptor {
	return &afterReturningInterceptor{advice: advice.(types.AfterReturningAdvice)}
}

type afterReturningInterceptor struct {
	advice types.AfterReturningAdvice
}

func (i *afterReturningInterceptor) Invoke(invocation types.Invocation) ([]interface{}, error) {
	results, err := invocation.Proceed()
	if err != nil {
		return results, err
	}
	if err = i.advice.AfterReturning(results, invocation); err != nil {
		return nil, err
	}
	return results, nil
}

// 内置适配器：异常通知
type afterThrowingAdviceAdapter struct {
}

func (a *afterThrowingAdviceAdapter) SupportsAdvice(advice types.Advice) bool {
	_, ok := advice.(types.AfterThrowingAdvice)
	return ok
}

func (a *afterThrowingAdviceAdapter) GetInterceptor(advice types.Advice) types.Interceptor {
	return &afterThrowingInterceptor{advice: advice.(types.AfterThrowingAdvice)}
}

type afterThrowingInterceptor struct {
	advice types.AfterThrowingAdvice
}

func (i *afterThrowingInterceptor) Invoke(invocation types.Invocation) ([]interface{}, error) {
	results, err := invocation.Proceed()
	if err == nil {
		return results, nil
	}
	// 异常通知可以替换错误，不能吞掉错误
	if replaced := i.advice.AfterThrowing(err, invocation); replaced != nil {
		return nil, replaced
	}
	return nil, err
}

// 内置适配器：最终通知
type afterAdviceAdapter struct {
}

func (a *afterAdviceAdapter) SupportsAdvice(advice types.Advice) bool {
	_, ok := advice.(types.AfterAdvice)
	return ok
}

func (a *afterAdviceAdapter) GetInterceptor(advice types.Advice) types.Interceptor {
	return &afterInterceptor{advice: advice.(types.AfterAdvice)}
}

type afterInterceptor struct {
	advice types.AfterAdvice
}

func (i *afterInterceptor) Invoke(invocation types.Invocation) ([]interface{}, error) {
	// defer保证panic路径也执行
	defer i.advice.After(invocation)
	return invocation.Proceed()
}

// introductionInterceptor 引介拦截器
// 引介方法分发到委托对象，其余方法透传
type introductionInterceptor struct {
	delegate   interface{}
	interfaces []reflect.Type
}

func (i *introductionInterceptor) Invoke(invocation types.Invocation) ([]interface{}, error) {
	method := invocation.Method()
	if method.Introduced && i.serves(method) {
		mv := reflect.ValueOf(i.delegate).MethodByName(method.Name)
		if !mv.IsValid() {
			return nil, types.NewInvocationConfigError(method.Name, "introduction delegate has no such method", reflectx.ErrMethodNotFound)
		}
		in, err := reflectx.BuildArgs(mv.Type(), invocation.Arguments())
		if err != nil {
			return nil, types.NewInvocationConfigError(method.Name, "arguments do not match the delegate signature", err)
		}
		outs := mv.Call(in)
		return reflectx.SplitResults(mv.Type(), outs)
	}
	return invocation.Proceed()
}

// serves 方法是否由本引介的接口声明
func (i *introductionInterceptor) serves(method types.Method) bool {
	for _, ifaceType := range i.interfaces {
		if method.Declaring == ifaceType {
			return true
		}
		if m, ok := ifaceType.MethodByName(method.Name); ok && m.Type == method.Type {
			return true
		}
	}
	return false
}

// InterceptorsForMethod 为一个方法编译拦截器链
// 两段式匹配：静态匹配不过的顾问不进链；运行时匹配器和拦截器成对入链，
// 每次调用时携带实参再评估
//
// 顾问列表按给定顺序编译，调用方负责排序。preFiltered 表示类型级匹配
// 已经完成，跳过类型过滤器评估。
func InterceptorsForMethod(adapters *AdviceAdapterRegistry, advisors []*types.Advisor, targetType reflect.Type, method types.Method, preFiltered bool) ([]types.ChainEntry, error) {
	if adapters == nil {
		adapters = Adapters
	}
	hasIntroductions := false
	for _, advisor := range advisors {
		if advisor.Kind == types.AdvisorKindIntroduction && (preFiltered || advisor.EffectiveFilter().Matches(targetType)) {
			hasIntroductions = true
			break
		}
	}

	var chain []types.ChainEntry
	for _, advisor := range advisors {
		switch advisor.Kind {
		case types.AdvisorKindPointcut:
			pointcut := advisor.Pointcut
			if pointcut == nil {
				pointcut = types.TruePointcut
			}
			if !preFiltered && !pointcut.TypeFilter().Matches(targetType) {
				continue
			}
			matcher := pointcut.MethodMatcher()
			var matches bool
			if introductionAware, ok := matcher.(types.IntroductionAwareMethodMatcher); ok {
				matches = introductionAware.MatchesIntroduced(method, targetType, hasIntroductions)
			} else {
				matches = matcher.Matches(method, targetType)
			}
			if !matches {
				continue
			}
			interceptors, err := adapters.GetInterceptors(advisor.Advice)
			if err != nil {
				return nil, fmt.Errorf("advisor %s: %w", advisor.Id, err)
			}
			if matcher.IsRuntime() {
				for _, interceptor := range interceptors {
					chain = append(chain, types.ChainEntry{Interceptor: interceptor, Matcher: matcher, Advisor: advisor})
				}
			} else {
				for _, interceptor := range interceptors {
					chain = append(chain, types.ChainEntry{Interceptor: interceptor, Advisor: advisor})
				}
			}
		case types.AdvisorKindIntroduction:
			if !preFiltered && !advisor.EffectiveFilter().Matches(targetType) {
				continue
			}
			chain = append(chain, types.ChainEntry{
				Interceptor: &introductionInterceptor{delegate: advisor.Delegate, interfaces: advisor.Interfaces},
				Advisor:     advisor,
			})
		case types.AdvisorKindPlain:
			interceptors, err := adapters.GetInterceptors(advisor.Advice)
			if err != nil {
				return nil, fmt.Errorf("advisor %s: %w", advisor.Id, err)
			}
			for _, interceptor := range interceptors {
				chain = append(chain, types.ChainEntry{Interceptor: interceptor, Advisor: advisor})
			}
		default:
			return nil, fmt.Errorf("advisor %s: unknown kind %d", advisor.Id, int(advisor.Kind))
		}
	}
	return chain, nil
}
