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
	"math"

	"github.com/weavego/weavego/api/types"
)

// ErrNoCurrentProxy is returned when the ambient proxy is read outside an
// exposing proxy call.
var ErrNoCurrentProxy = errors.New("no current proxy: the proxy does not expose itself")

type contextKey int

const (
	currentInvocationKey contextKey = iota
	currentProxyKey
)

// CurrentInvocation 读取环境里的当前调用
// 只有链头插入了暴露拦截器的调用才能读到，否则返回 ErrNoCurrentInvocation
func CurrentInvocation(ctx context.Context) (types.Invocation, error) {
	if ctx != nil {
		if invocation, ok := ctx.Value(currentInvocationKey).(types.Invocation); ok {
			return invocation, nil
		}
	}
	return nil, types.ErrNoCurrentInvocation
}

// CurrentProxy 读取环境里的当前代理
// 只有 ExposeProxy 开启的代理调用期间才能读到，否则返回 ErrNoCurrentProxy
func CurrentProxy(ctx context.Context) (types.Proxy, error) {
	if ctx != nil {
		if proxy, ok := ctx.Value(currentProxyKey).(types.Proxy); ok {
			return proxy, nil
		}
	}
	return nil, ErrNoCurrentProxy
}

// WithProxy 把代理放进上下文
func WithProxy(ctx context.Context, proxy types.Proxy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, currentProxyKey, proxy)
}

// exposeInvocationInterceptor 暴露拦截器
// 把当前调用放进调用上下文，链退出时恢复原上下文，嵌套代理调用各见各的
type exposeInvocationInterceptor struct {
}

func (i *exposeInvocationInterceptor) Invoke(invocation types.Invocation) ([]interface{}, error) {
	prev := invocation.Context()
	invocation.SetContext(context.WithValue(prev, currentInvocationKey, invocation))
	defer invocation.SetContext(prev)
	return invocation.Proceed()
}

// ExposeInvocationAdvisor 暴露顾问单例
// 永远排在链头，让链上其余拦截器和目标方法都能读到环境里的当前调用
var ExposeInvocationAdvisor = &types.Advisor{
	Id:     "$exposeInvocation",
	Kind:   types.AdvisorKindPlain,
	Advice: &exposeInvocationInterceptor{},
	Order:  math.MinInt32,
	Aspect: "",
}

// ExtendAdvisors 按需在顾问列表头部插入暴露顾问
// 列表里有通知声明需要环境访问时插入；插入是幂等的：单例已经在列表里
// 则只把它挪到头部。在排序之后调用，插入不破坏已排好的相对顺序
func ExtendAdvisors(advisors []*types.Advisor) []*types.Advisor {
	needed := false
	for _, advisor := range advisors {
		if advisor == ExposeInvocationAdvisor {
			continue
		}
		if ambient, ok := advisor.Advice.(types.AmbientAdvice); ok && ambient.RequiresInvocationContext() {
			needed = true
			break
		}
	}
	if !needed {
		return advisors
	}
	return PrependExposeAdvisor(advisors)
}

// PrependExposeAdvisor 无条件把暴露顾问插到列表头部，幂等
func PrependExposeAdvisor(advisors []*types.Advisor) []*types.Advisor {
	if len(advisors) > 0 && advisors[0] == ExposeInvocationAdvisor {
		return advisors
	}
	out := make([]*types.Advisor, 0, len(advisors)+1)
	out = append(out, ExposeInvocationAdvisor)
	for _, advisor := range advisors {
		if advisor != ExposeInvocationAdvisor {
			out = append(out, advisor)
		}
	}
	return out
}
