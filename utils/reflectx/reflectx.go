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

// Package reflectx 反射工具：方法枚举、参数校验、结果拆分
// Package reflectx holds the reflection plumbing shared by the proxy
// strategies and the invocation executor: method-set enumeration in the
// receiver-free normal form, argument validation ahead of reflect.Call, and
// result splitting around the trailing-error convention.
package reflectx

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/weavego/weavego/api/types"
)

var (
	// ErrMethodNotFound 目标上找不到方法
	ErrMethodNotFound = errors.New("method not found")
	// ErrIncorrectArgumentCount 实参个数和方法签名不一致
	ErrIncorrectArgumentCount = errors.New("incorrect number of arguments")
	// ErrInvalidArgumentValue 实参类型和方法签名不兼容
	ErrInvalidArgumentValue = errors.New("invalid argument value")
	// ErrIncorrectResultCount 结果个数和方法签名不一致
	ErrIncorrectResultCount = errors.New("incorrect number of results")
	// ErrInvalidResultValue 结果类型和方法签名不兼容
	ErrInvalidResultValue = errors.New("invalid result value")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// StripReceiver 去掉具体类型方法签名的接收者参数
// StripReceiver converts a concrete method signature, whose first input is
// the receiver, into the receiver-free normal form.
func StripReceiver(fn reflect.Type) reflect.Type {
	numIn := fn.NumIn()
	in := make([]reflect.Type, 0, numIn-1)
	for i := 1; i < numIn; i++ {
		in = append(in, fn.In(i))
	}
	out := make([]reflect.Type, 0, fn.NumOut())
	for i := 0; i < fn.NumOut(); i++ {
		out = append(out, fn.Out(i))
	}
	return reflect.FuncOf(in, out, fn.IsVariadic())
}

// MethodsOf 枚举类型的导出方法，统一成去接收者的规范形态
// 接口类型取接口声明的方法，具体类型取其方法集
// MethodsOf enumerates the exported methods of t in Method normal form.
// reflect reports methods sorted by name, so the result is deterministic.
func MethodsOf(t reflect.Type) []types.Method {
	if t == nil {
		return nil
	}
	var out []types.Method
	if t.Kind() == reflect.Interface {
		for i := 0; i < t.NumMethod(); i++ {
			m := t.Method(i)
			if m.PkgPath != "" {
				continue
			}
			out = append(out, types.Method{
				Name:      m.Name,
				Type:      m.Type,
				Declaring: t,
			})
		}
		return out
	}
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.PkgPath != "" {
			continue
		}
		out = append(out, types.Method{
			Name:      m.Name,
			Type:      StripReceiver(m.Type),
			Declaring: t,
		})
	}
	return out
}

// MethodByName 在类型的导出方法集里按名字查找
func MethodByName(t reflect.Type, name string) (types.Method, bool) {
	if t == nil {
		return types.Method{}, false
	}
	m, ok := t.MethodByName(name)
	if !ok || m.PkgPath != "" {
		return types.Method{}, false
	}
	if t.Kind() == reflect.Interface {
		return types.Method{Name: m.Name, Type: m.Type, Declaring: t}, true
	}
	return types.Method{Name: m.Name, Type: StripReceiver(m.Type), Declaring: t}, true
}

// BuildArgs 校验实参并转换成reflect.Call需要的形态
// 可变参数方法传入打平后的实参列表，Call 会自动打包
// BuildArgs validates args against the receiver-free signature fn and
// converts them to call values. Nil args become zero values when the
// parameter type is nilable; anything else fails before reflect.Call can
// panic.
func BuildArgs(fn reflect.Type, args []interface{}) ([]reflect.Value, error) {
	numIn := fn.NumIn()
	if fn.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, fmt.Errorf("%w: expected at least %d, got %d", ErrIncorrectArgumentCount, numIn-1, len(args))
		}
	} else if len(args) != numIn {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrIncorrectArgumentCount, numIn, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var paramType reflect.Type
		if fn.IsVariadic() && i >= numIn-1 {
			paramType = fn.In(numIn - 1).Elem()
		} else {
			paramType = fn.In(i)
		}
		value, err := valueOf(arg, paramType)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrInvalidArgumentValue, i, err)
		}
		in[i] = value
	}
	return in, nil
}

// valueOf converts one interface value to a reflect value of the wanted type.
func valueOf(arg interface{}, wanted reflect.Type) (reflect.Value, error) {
	if arg == nil {
		if !isNilable(wanted) {
			return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", wanted.String())
		}
		return reflect.Zero(wanted), nil
	}
	value := reflect.ValueOf(arg)
	if value.Type() == wanted {
		return value, nil
	}
	if value.Type().AssignableTo(wanted) {
		normalized := reflect.New(wanted).Elem()
		normalized.Set(value)
		return normalized, nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", value.Type().String(), wanted.String())
}

func isNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}

// SplitResults 按尾部error约定拆分调用结果
// SplitResults separates the business results from the trailing error, when
// the signature declares one. The error keeps its identity.
func SplitResults(fn reflect.Type, outs []reflect.Value) ([]interface{}, error) {
	numOut := fn.NumOut()
	hasErr := numOut > 0 && fn.Out(numOut-1) == errorType
	var err error
	limit := numOut
	if hasErr {
		limit = numOut - 1
		if last := outs[numOut-1]; !last.IsNil() {
			err = last.Interface().(error)
		}
	}
	results := make([]interface{}, 0, limit)
	for i := 0; i < limit; i++ {
		results = append(results, outs[i].Interface())
	}
	return results, err
}

// JoinResults 把业务结果和error组装成签名要求的返回值列表
// 供 reflect.MakeFunc 蹦床使用；结果个数或者类型对不上返回错误
// JoinResults is the inverse of SplitResults: it assembles the out values a
// MakeFunc trampoline must return for signature fn.
func JoinResults(fn reflect.Type, results []interface{}, err error) ([]reflect.Value, error) {
	numOut := fn.NumOut()
	hasErr := numOut > 0 && fn.Out(numOut-1) == errorType
	limit := numOut
	if hasErr {
		limit = numOut - 1
	}
	if len(results) != limit {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrIncorrectResultCount, limit, len(results))
	}
	outs := make([]reflect.Value, numOut)
	for i := 0; i < limit; i++ {
		value, convErr := valueOf(results[i], fn.Out(i))
		if convErr != nil {
			return nil, fmt.Errorf("%w: result %d: %v", ErrInvalidResultValue, i, convErr)
		}
		outs[i] = value
	}
	if hasErr {
		if err == nil {
			outs[numOut-1] = reflect.Zero(errorType)
		} else {
			outs[numOut-1] = reflect.ValueOf(&err).Elem()
		}
	}
	return outs, nil
}

// FlattenArgs 把MakeFunc蹦床收到的入参展开成打平的实参列表
// 可变参数方法的最后一个入参是slice，展开成独立实参
// FlattenArgs turns the in values a MakeFunc trampoline receives into the
// flat argument list interceptors and runtime matchers observe.
func FlattenArgs(fn reflect.Type, in []reflect.Value) []interface{} {
	if !fn.IsVariadic() {
		args := make([]interface{}, len(in))
		for i, v := range in {
			args[i] = v.Interface()
		}
		return args
	}
	numIn := fn.NumIn()
	args := make([]interface{}, 0, len(in))
	for i := 0; i < numIn-1; i++ {
		args = append(args, in[i].Interface())
	}
	variadic := in[numIn-1]
	for i := 0; i < variadic.Len(); i++ {
		args = append(args, variadic.Index(i).Interface())
	}
	return args
}

// ExportedMethodCount 类型导出方法数量
func ExportedMethodCount(t reflect.Type) int {
	if t == nil {
		return 0
	}
	count := 0
	for i := 0; i < t.NumMethod(); i++ {
		if t.Method(i).PkgPath == "" {
			count++
		}
	}
	return count
}

// ImplementsAll 类型是否实现了所有给定接口
func ImplementsAll(t reflect.Type, ifaces ...reflect.Type) bool {
	for _, iface := range ifaces {
		if !t.Implements(iface) {
			return false
		}
	}
	return true
}
