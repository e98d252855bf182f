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
	"errors"
	"fmt"
)

// Advice 通知标记类型，持有以下五种形态之一：
// BeforeAdvice、AfterReturningAdvice、AfterThrowingAdvice、AfterAdvice、Interceptor
// Advice is the marker type for any advice value. The chain factory adapts an
// advice into an Interceptor through the registered AdviceAdapter list; a value
// that satisfies none of the known advice forms fails with ErrUnknownAdviceType.
type Advice interface{}

// BeforeAdvice 前置通知，在目标方法调用前执行
// BeforeAdvice runs before the target method. A non-nil error aborts the
// invocation: deeper interceptors and the target do not run, and the error
// unwinds through the outer layers as the invocation outcome.
type BeforeAdvice interface {
	Before(invocation Invocation) error
}

// AfterReturningAdvice 返回后通知，目标方法正常返回后执行
// AfterReturningAdvice runs after the invocation completed without error. It
// may inspect the results but not replace them; a non-nil error turns the
// successful invocation into a failed one.
type AfterReturningAdvice interface {
	AfterReturning(results []interface{}, invocation Invocation) error
}

// AfterThrowingAdvice 异常通知，目标方法返回错误后执行
// AfterThrowingAdvice runs when the invocation failed. The returned error
// replaces the original when non-nil; returning nil keeps the original error.
// An AfterThrowingAdvice can never turn a failure into a success.
type AfterThrowingAdvice interface {
	AfterThrowing(err error, invocation Invocation) error
}

// AfterAdvice 最终通知，无论调用成功失败都执行，不能修改结果
// AfterAdvice runs on the way out regardless of outcome, finally-style.
type AfterAdvice interface {
	After(invocation Invocation)
}

// Interceptor 环绕通知，完全控制调用：可以修改参数、短路、替换结果
// Interceptor is the around form of advice. Invoke receives the invocation and
// decides whether and how to continue via invocation.Proceed; it may return
// without proceeding (short-circuit), proceed once, or proceed on clones of the
// invocation. The returned values are the invocation outcome seen by the
// caller side of this interceptor.
type Interceptor interface {
	Invoke(invocation Invocation) ([]interface{}, error)
}

// InterceptorFunc is an adapter to allow the use of ordinary functions as interceptors.
type InterceptorFunc func(invocation Invocation) ([]interface{}, error)

func (f InterceptorFunc) Invoke(invocation Invocation) ([]interface{}, error) {
	return f(invocation)
}

// AdviceAdapter 通知适配器，把某一种通知形态适配成拦截器
// AdviceAdapter turns one advice form into an Interceptor. The adapter list is
// extensible: registering a new adapter teaches the chain factory a new advice
// form without touching the closed built-in vocabulary.
type AdviceAdapter interface {
	//SupportsAdvice 是否支持该通知
	SupportsAdvice(advice Advice) bool
	//GetInterceptor 把通知适配成拦截器，调用方保证 SupportsAdvice 为 true
	GetInterceptor(advice Advice) Interceptor
}

// AmbientAdvice 需要环境暴露的通知实现该接口，链装配时会自动在链头插入暴露拦截器
// AmbientAdvice marks an advice that reads the current invocation from the
// ambient context instead of receiving it as a parameter. When any advisor of
// a chain carries such an advice, the expose interceptor is prepended so that
// CurrentInvocation resolves during the call.
type AmbientAdvice interface {
	RequiresInvocationContext() bool
}

var (
	// ErrUnknownAdviceType is returned when an advice value satisfies none of
	// the known advice forms and no registered adapter supports it.
	ErrUnknownAdviceType = errors.New("unknown advice type")
	// ErrUnproxyableTarget is returned when a target exposes no proxyable
	// methods under the selected proxy strategy.
	ErrUnproxyableTarget = errors.New("target has no proxyable methods")
	// ErrConflictingInterfaces is returned when two exposed interfaces declare
	// the same method name with different signatures.
	ErrConflictingInterfaces = errors.New("conflicting method signatures in exposed interfaces")
	// ErrNoCurrentInvocation is returned when the ambient invocation is read
	// outside an exposed invocation.
	ErrNoCurrentInvocation = errors.New("no current invocation: the calling chain does not expose the invocation")
)

// InvocationConfigError 调用配置错误：参数不匹配、方法不存在等织入配置问题
// InvocationConfigError reports a proxy plumbing failure, as opposed to a
// business error returned by the target. It wraps the underlying cause.
type InvocationConfigError struct {
	//Method 出错的方法名
	Method string
	//Reason 失败原因
	Reason string
	//Err 底层错误，可以为 nil
	Err error
}

func (e *InvocationConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invocation config error: method=%s %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("invocation config error: method=%s %s: %v", e.Method, e.Reason, e.Err)
}

func (e *InvocationConfigError) Unwrap() error {
	return e.Err
}

// NewInvocationConfigError 创建调用配置错误
func NewInvocationConfigError(method string, reason string, err error) *InvocationConfigError {
	return &InvocationConfigError{Method: method, Reason: reason, Err: err}
}
