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
	"reflect"
)

// TypeFilter 类型过滤器，决定一个切入点是否可能作用于某个目标类型
// TypeFilter restricts a pointcut to a set of target types.
// Implementations must be safe for concurrent use.
type TypeFilter interface {
	//Matches 目标类型是否匹配
	Matches(targetType reflect.Type) bool
}

// TypeFilterFunc is an adapter to allow the use of ordinary functions as type filters.
type TypeFilterFunc func(targetType reflect.Type) bool

func (f TypeFilterFunc) Matches(targetType reflect.Type) bool {
	return f(targetType)
}

// TrueTypeFilter 匹配所有类型的过滤器
// TrueTypeFilter matches every target type.
var TrueTypeFilter TypeFilter = &trueTypeFilter{}

type trueTypeFilter struct {
}

func (f *trueTypeFilter) Matches(targetType reflect.Type) bool {
	return true
}

func (f *trueTypeFilter) String() string {
	return "TypeFilter.TRUE"
}

// MethodMatcher 方法匹配器，决定一个切入点是否作用于某个方法
// MethodMatcher decides whether a pointcut applies to a given method.
//
// Matching is two-staged. Matches is the static check, evaluated once per
// method when the interceptor chain is assembled. If IsRuntime returns true,
// MatchesArgs is additionally evaluated on every call with the live argument
// values; it is never consulted for matchers whose IsRuntime returns false.
// A runtime matcher whose static check fails is dropped from the chain and its
// MatchesArgs will not run.
type MethodMatcher interface {
	//Matches 静态匹配：方法是否匹配，代理链编译时评估一次
	Matches(method Method, targetType reflect.Type) bool
	//MatchesArgs 运行时匹配：每次调用时携带实参评估，仅 IsRuntime 为 true 时调用
	MatchesArgs(method Method, targetType reflect.Type, args []interface{}) bool
	//IsRuntime 是否需要运行时匹配
	IsRuntime() bool
}

// MethodMatcherFunc is an adapter to allow the use of ordinary functions as
// static method matchers.
type MethodMatcherFunc func(method Method, targetType reflect.Type) bool

func (f MethodMatcherFunc) Matches(method Method, targetType reflect.Type) bool {
	return f(method, targetType)
}

func (f MethodMatcherFunc) MatchesArgs(method Method, targetType reflect.Type, args []interface{}) bool {
	return f(method, targetType)
}

func (f MethodMatcherFunc) IsRuntime() bool {
	return false
}

// IntroductionAwareMethodMatcher 感知引介的方法匹配器
// IntroductionAwareMethodMatcher is a MethodMatcher that can short-circuit its
// own evaluation when it knows whether the advised object carries
// introductions. The applicability engine prefers MatchesIntroduced over
// Matches when a matcher implements this interface.
type IntroductionAwareMethodMatcher interface {
	MethodMatcher
	//MatchesIntroduced 静态匹配，hasIntroductions 表示被代理对象上是否存在引介
	MatchesIntroduced(method Method, targetType reflect.Type, hasIntroductions bool) bool
}

// TrueMethodMatcher 匹配所有方法的匹配器
// TrueMethodMatcher matches every method and never requires runtime evaluation.
var TrueMethodMatcher MethodMatcher = &trueMethodMatcher{}

type trueMethodMatcher struct {
}

func (m *trueMethodMatcher) Matches(method Method, targetType reflect.Type) bool {
	return true
}

func (m *trueMethodMatcher) MatchesArgs(method Method, targetType reflect.Type, args []interface{}) bool {
	return true
}

func (m *trueMethodMatcher) IsRuntime() bool {
	return false
}

func (m *trueMethodMatcher) String() string {
	return "MethodMatcher.TRUE"
}

// IsTrueMethodMatcher 是否是全匹配器，用于短路方法级别的匹配循环
// IsTrueMethodMatcher reports whether matcher is the universal matcher. A nil
// matcher counts as universal: pointcuts leave it unset to mean "all methods".
func IsTrueMethodMatcher(matcher MethodMatcher) bool {
	if matcher == nil {
		return true
	}
	_, ok := matcher.(*trueMethodMatcher)
	return ok
}

// Pointcut 切入点，由类型过滤器和方法匹配器组成
// Pointcut pairs a TypeFilter with a MethodMatcher. Either half may be the
// universal one; TypeFilter and MethodMatcher never return nil.
type Pointcut interface {
	//TypeFilter 类型过滤器
	TypeFilter() TypeFilter
	//MethodMatcher 方法匹配器
	MethodMatcher() MethodMatcher
}

// TruePointcut 匹配所有类型所有方法的切入点
var TruePointcut Pointcut = &DefaultPointcut{}

// DefaultPointcut is a Pointcut built from plain filter/matcher values.
// A nil Filter means all types, a nil Matcher means all methods.
type DefaultPointcut struct {
	Filter  TypeFilter
	Matcher MethodMatcher
}

func (p *DefaultPointcut) TypeFilter() TypeFilter {
	if p.Filter == nil {
		return TrueTypeFilter
	}
	return p.Filter
}

func (p *DefaultPointcut) MethodMatcher() MethodMatcher {
	if p.Matcher == nil {
		return TrueMethodMatcher
	}
	return p.Matcher
}

// NewPointcut 创建切入点，filter 或者 matcher 为 nil 表示全匹配
func NewPointcut(filter TypeFilter, matcher MethodMatcher) Pointcut {
	return &DefaultPointcut{Filter: filter, Matcher: matcher}
}

// IntersectionMethodMatcher 交集匹配器：所有匹配器都匹配才算匹配
// IntersectionMethodMatcher matches only when all of its parts match. It is a
// runtime matcher if any part is; the runtime stage re-checks only the runtime
// parts, static parts are assumed settled.
type IntersectionMethodMatcher struct {
	Matchers []MethodMatcher
}

func (m *IntersectionMethodMatcher) Matches(method Method, targetType reflect.Type) bool {
	for _, matcher := range m.Matchers {
		if !matcher.Matches(method, targetType) {
			return false
		}
	}
	return true
}

func (m *IntersectionMethodMatcher) MatchesArgs(method Method, targetType reflect.Type, args []interface{}) bool {
	for _, matcher := range m.Matchers {
		if matcher.IsRuntime() && !matcher.MatchesArgs(method, targetType, args) {
			return false
		}
	}
	return true
}

func (m *IntersectionMethodMatcher) IsRuntime() bool {
	for _, matcher := range m.Matchers {
		if matcher.IsRuntime() {
			return true
		}
	}
	return false
}

// UnionTypeFilter 并集过滤器：任意一个过滤器匹配即算匹配
type UnionTypeFilter struct {
	Filters []TypeFilter
}

func (f *UnionTypeFilter) Matches(targetType reflect.Type) bool {
	for _, filter := range f.Filters {
		if filter.Matches(targetType) {
			return true
		}
	}
	return false
}
