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

package types

import (
	"fmt"
	"reflect"
	"sync"
)

// InterfaceSet 接口注册表
// Go 运行时无法枚举一个类型实现了哪些接口，织入需要的"目标实现的所有接口"
// 从这里登记的候选集合里筛选得出
//
// InterfaceSet is the registry of candidate interface types. Reflection cannot
// enumerate the interfaces a type satisfies, so the interface proxy strategy
// and the applicability engine intersect the target's method set with the
// interfaces registered here. Registration order is preserved and determines
// surface assembly order.
type InterfaceSet struct {
	sync.RWMutex
	ifaces []reflect.Type
}

// NewInterfaceSet 创建接口注册表
func NewInterfaceSet() *InterfaceSet {
	return &InterfaceSet{}
}

// DefaultInterfaceSet 默认接口注册表，Config 未配置时使用
var DefaultInterfaceSet = NewInterfaceSet()

// Register 注册接口类型，使用指向接口的指针表示，例如：Register((*Greeter)(nil))
// 重复注册是幂等的
func (s *InterfaceSet) Register(ifacePtr interface{}) error {
	ifaceType, err := InterfaceTypeOf(ifacePtr)
	if err != nil {
		return err
	}
	return s.RegisterType(ifaceType)
}

// RegisterType 注册接口类型
func (s *InterfaceSet) RegisterType(ifaceType reflect.Type) error {
	if ifaceType == nil || ifaceType.Kind() != reflect.Interface {
		return fmt.Errorf("not an interface type: %v", ifaceType)
	}
	s.Lock()
	defer s.Unlock()
	for _, existing := range s.ifaces {
		if existing == ifaceType {
			return nil
		}
	}
	s.ifaces = append(s.ifaces, ifaceType)
	return nil
}

// Types 所有注册的接口类型快照
func (s *InterfaceSet) Types() []reflect.Type {
	s.RLock()
	defer s.RUnlock()
	out := make([]reflect.Type, len(s.ifaces))
	copy(out, s.ifaces)
	return out
}

// ImplementedBy 返回 targetType 实现的所有已注册接口
func (s *InterfaceSet) ImplementedBy(targetType reflect.Type) []reflect.Type {
	if targetType == nil {
		return nil
	}
	s.RLock()
	defer s.RUnlock()
	var out []reflect.Type
	for _, ifaceType := range s.ifaces {
		if targetType.Implements(ifaceType) {
			out = append(out, ifaceType)
		}
	}
	return out
}

// TypeByName 按名字查找已注册的接口类型
// 先按完整名（包路径.名字）匹配，再按短名匹配，供DSL层解析接口名引用
func (s *InterfaceSet) TypeByName(name string) (reflect.Type, bool) {
	s.RLock()
	defer s.RUnlock()
	for _, ifaceType := range s.ifaces {
		if ifaceType.String() == name {
			return ifaceType, true
		}
	}
	for _, ifaceType := range s.ifaces {
		if ifaceType.Name() == name {
			return ifaceType, true
		}
	}
	return nil, false
}

// Contains 接口类型是否已注册
func (s *InterfaceSet) Contains(ifaceType reflect.Type) bool {
	s.RLock()
	defer s.RUnlock()
	for _, existing := range s.ifaces {
		if existing == ifaceType {
			return true
		}
	}
	return false
}

// Len 注册的接口数量
func (s *InterfaceSet) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.ifaces)
}
