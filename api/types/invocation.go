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
	"context"
	"fmt"
	"reflect"
)

// Method 被织入方法的描述，脱离接收者的规范形态
// Method describes one method of a proxy surface. Type is the func signature
// with the receiver stripped, so methods sourced from concrete types and from
// interface types compare equal when their user-visible signatures agree.
type Method struct {
	//Name 方法名
	Name string
	//Type 去掉接收者的函数签名
	Type reflect.Type
	//Declaring 声明该方法的类型：目标类型或者引介接口类型
	Declaring reflect.Type
	//Introduced 是否由引介委托提供而不是目标对象
	Introduced bool
}

// String returns "Name func(...) ..." for logs and error messages.
func (m Method) String() string {
	if m.Type == nil {
		return m.Name
	}
	return fmt.Sprintf("%s %s", m.Name, m.Type.String())
}

// HasTrailingError 方法签名最后一个返回值是否是 error
func (m Method) HasTrailingError() bool {
	if m.Type == nil || m.Type.NumOut() == 0 {
		return false
	}
	return m.Type.Out(m.Type.NumOut()-1) == errorType
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Invocation 一次被代理的方法调用，贯穿整条拦截器链
// Invocation is one in-flight proxied call, threaded through the interceptor
// chain. Interceptors drive it forward with Proceed; each Invocation value may
// be proceeded at most once to completion, re-execution goes through Clone.
//
// Implementations are not safe for concurrent use: an invocation belongs to
// the goroutine executing the call.
type Invocation interface {
	//ID 调用唯一标识
	ID() string
	//Target 目标对象
	Target() interface{}
	//TargetType 目标类型
	TargetType() reflect.Type
	//Method 被调用方法
	Method() Method
	//Arguments 实参列表，调用期间可以被拦截器替换
	Arguments() []interface{}
	//SetArguments 替换实参，影响后续拦截器和目标调用
	SetArguments(args ...interface{})
	//Proxy 发起本次调用的代理
	Proxy() Proxy
	//Context 调用上下文
	Context() context.Context
	//SetContext 替换调用上下文，影响后续拦截器和目标调用
	SetContext(ctx context.Context)
	//Proceed 推进到下一个拦截器，链走完后调用目标方法
	//返回值是本层看到的调用结果
	Proceed() ([]interface{}, error)
	//Clone 复制一个游标归零的调用，用于重试等再次执行场景
	//附件表浅拷贝：新表、共享值
	Clone() Invocation
	//Attachment 读取附件
	Attachment(key string) (interface{}, bool)
	//SetAttachment 设置附件，生命周期跟随本次调用
	SetAttachment(key string, value interface{})
}

// ChainEntry 编译后的链元素：拦截器加可选的运行时匹配器
// ChainEntry is one element of a compiled interceptor chain. Matcher is nil
// for unconditional entries; a non-nil Matcher is a runtime matcher that must
// approve the live arguments before Interceptor runs, otherwise the entry is
// skipped for that call.
type ChainEntry struct {
	//Interceptor 拦截器
	Interceptor Interceptor
	//Matcher 运行时匹配器，nil 表示无条件执行
	Matcher MethodMatcher
	//Advisor 来源顾问，用于追踪和管理接口展示
	Advisor *Advisor
}
