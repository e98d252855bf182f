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
	"reflect"

	"github.com/gofrs/uuid/v5"
	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/reflectx"
)

// DefaultInvocation 默认调用执行器
// 持有编译后的拦截器链和一个游标，Proceed 递归推进：
// 游标从-1开始，每次 Proceed 前进一格；带运行时匹配器的链元素
// 匹配失败时跳过并继续递归；游标走到链尾后反射调用目标方法
//
// DefaultInvocation executes one proxied call. It is created per call and
// belongs to the calling goroutine; a clone must be used to run the same call
// again.
type DefaultInvocation struct {
	id          string
	target      interface{}
	targetType  reflect.Type
	method      types.Method
	args        []interface{}
	proxy       types.Proxy
	ctx         context.Context
	chain       []types.ChainEntry
	cursor      int
	attachments map[string]interface{}
}

var _ types.Invocation = (*DefaultInvocation)(nil)

// NewInvocation 创建调用执行器，游标位于链前
func NewInvocation(proxy types.Proxy, target interface{}, targetType reflect.Type, method types.Method, args []interface{}, chain []types.ChainEntry, ctx context.Context) *DefaultInvocation {
	if ctx == nil {
		ctx = context.Background()
	}
	uuId, _ := uuid.NewV4()
	return &DefaultInvocation{
		id:         uuId.String(),
		target:     target,
		targetType: targetType,
		method:     method,
		args:       args,
		proxy:      proxy,
		ctx:        ctx,
		chain:      chain,
		cursor:     -1,
	}
}

func (inv *DefaultInvocation) ID() string {
	return inv.id
}

func (inv *DefaultInvocation) Target() interface{} {
	return inv.target
}

func (inv *DefaultInvocation) TargetType() reflect.Type {
	return inv.targetType
}

func (inv *DefaultInvocation) Method() types.Method {
	return inv.method
}

func (inv *DefaultInvocation) Arguments() []interface{} {
	return inv.args
}

func (inv *DefaultInvocation) SetArguments(args ...interface{}) {
	inv.args = args
}

func (inv *DefaultInvocation) Proxy() types.Proxy {
	return inv.proxy
}

func (inv *DefaultInvocation) Context() context.Context {
	return inv.ctx
}

func (inv *DefaultInvocation) SetContext(ctx context.Context) {
	if ctx != nil {
		inv.ctx = ctx
	}
}

// Proceed 推进到下一个拦截器，链走完后调用目标方法
func (inv *DefaultInvocation) Proceed() ([]interface{}, error) {
	// 游标停在链尾：所有拦截器已经执行，调用目标
	if inv.cursor == len(inv.chain)-1 {
		return inv.invokeTarget()
	}
	inv.cursor++
	entry := inv.chain[inv.cursor]
	if entry.Matcher != nil {
		// 运行时匹配器对实参再评估，不匹配则跳过本元素继续推进
		if entry.Matcher.MatchesArgs(inv.method, inv.targetType, inv.args) {
			return entry.Interceptor.Invoke(inv)
		}
		return inv.Proceed()
	}
	return entry.Interceptor.Invoke(inv)
}

// Clone 复制一个游标归零的调用，拿到自己的ID和附件表副本
func (inv *DefaultInvocation) Clone() types.Invocation {
	uuId, _ := uuid.NewV4()
	clone := &DefaultInvocation{
		id:         uuId.String(),
		target:     inv.target,
		targetType: inv.targetType,
		method:     inv.method,
		args:       append([]interface{}(nil), inv.args...),
		proxy:      inv.proxy,
		ctx:        inv.ctx,
		chain:      inv.chain,
		cursor:     -1,
	}
	if inv.attachments != nil {
		clone.attachments = make(map[string]interface{}, len(inv.attachments))
		for k, v := range inv.attachments {
			clone.attachments[k] = v
		}
	}
	return clone
}

func (inv *DefaultInvocation) Attachment(key string) (interface{}, bool) {
	if inv.attachments == nil {
		return nil, false
	}
	v, ok := inv.attachments[key]
	return v, ok
}

func (inv *DefaultInvocation) SetAttachment(key string, value interface{}) {
	if inv.attachments == nil {
		inv.attachments = make(map[string]interface{})
	}
	inv.attachments[key] = value
}

// invokeTarget 终端分发：反射调用目标方法
// 业务错误保持原样返回；参数和签名不匹配返回 InvocationConfigError
func (inv *DefaultInvocation) invokeTarget() ([]interface{}, error) {
	if inv.method.Introduced {
		// 引介方法由引介拦截器服务，走到这里说明链配置有问题
		return nil, types.NewInvocationConfigError(inv.method.Name, "introduced method reached the target", reflectx.ErrMethodNotFound)
	}
	if inv.target == nil {
		return nil, types.NewInvocationConfigError(inv.method.Name, "target is nil", nil)
	}
	mv := reflect.ValueOf(inv.target).MethodByName(inv.method.Name)
	if !mv.IsValid() {
		return nil, types.NewInvocationConfigError(inv.method.Name, "target "+inv.targetType.String()+" has no such method", reflectx.ErrMethodNotFound)
	}
	in, err := reflectx.BuildArgs(mv.Type(), inv.args)
	if err != nil {
		return nil, types.NewInvocationConfigError(inv.method.Name, "arguments do not match the target signature", err)
	}
	outs := mv.Call(in)
	return reflectx.SplitResults(mv.Type(), outs)
}
