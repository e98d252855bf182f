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
	"fmt"
	"math"
	"reflect"
)

// AdvisorKind 顾问种类
// AdvisorKind tags the Advisor variant. Code consuming advisors switches over
// the kind exhaustively and treats unknown values as configuration errors.
type AdvisorKind int

const (
	//AdvisorKindPlain 普通顾问：通知作用于所有类型所有方法
	AdvisorKindPlain AdvisorKind = iota
	//AdvisorKindPointcut 切入点顾问：通知作用范围由切入点决定
	AdvisorKindPointcut
	//AdvisorKindIntroduction 引介顾问：给目标类型追加接口实现
	AdvisorKindIntroduction
)

func (k AdvisorKind) String() string {
	switch k {
	case AdvisorKindPlain:
		return "plain"
	case AdvisorKindPointcut:
		return "pointcut"
	case AdvisorKindIntroduction:
		return "introduction"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// OrderLowest 最低优先级，构造器的默认值：未指定顺序的顾问排在最后
// Order values sort ascending: lower runs closer to the caller (outermost).
const OrderLowest = math.MaxInt32

// Advisor 顾问：一条通知加上它的作用范围和排序元数据
// Advisor binds an advice to its applicability and ordering metadata. It is a
// tagged variant: Kind selects which fields are meaningful.
//
//   - AdvisorKindPlain: Advice only, applies everywhere.
//   - AdvisorKindPointcut: Advice plus Pointcut.
//   - AdvisorKindIntroduction: Delegate plus Interfaces, optionally narrowed
//     by Filter. The delegate serves the introduced methods; Advice is unused.
//
// Order, Aspect and Declaration drive precedence: advisors from the same
// Aspect keep their Declaration order, advisors from different aspects order
// by Order (lower first), and pairs constrained by neither stay in input
// order.
type Advisor struct {
	//Id 顾问唯一标识，池和DSL层使用
	Id string
	//Kind 顾问种类
	Kind AdvisorKind
	//Advice 通知，Plain/Pointcut 种类使用
	Advice Advice
	//Pointcut 切入点，Pointcut 种类使用，nil 表示全匹配
	Pointcut Pointcut
	//Filter 类型过滤器，Introduction 种类使用，nil 表示全匹配
	Filter TypeFilter
	//Interfaces 引介的接口类型列表，Introduction 种类使用
	Interfaces []reflect.Type
	//Delegate 引介委托对象，必须实现 Interfaces 里的所有接口
	Delegate interface{}
	//Order 优先级，越小越先执行（最外层）
	Order int
	//Aspect 声明该顾问的切面名，空表示独立顾问
	Aspect string
	//Declaration 在切面内的声明序号
	Declaration int
}

// NewAdvisor 创建普通顾问，作用于所有方法
func NewAdvisor(advice Advice) *Advisor {
	return &Advisor{
		Kind:   AdvisorKindPlain,
		Advice: advice,
		Order:  OrderLowest,
	}
}

// NewPointcutAdvisor 创建切入点顾问
func NewPointcutAdvisor(pointcut Pointcut, advice Advice) *Advisor {
	return &Advisor{
		Kind:     AdvisorKindPointcut,
		Advice:   advice,
		Pointcut: pointcut,
		Order:    OrderLowest,
	}
}

// NewIntroductionAdvisor 创建引介顾问
// interfaces 使用指向接口的指针表示接口类型，例如：(*Greeter)(nil)
func NewIntroductionAdvisor(delegate interface{}, filter TypeFilter, interfaces ...interface{}) (*Advisor, error) {
	advisor := &Advisor{
		Kind:     AdvisorKindIntroduction,
		Delegate: delegate,
		Filter:   filter,
		Order:    OrderLowest,
	}
	for _, item := range interfaces {
		ifaceType, err := InterfaceTypeOf(item)
		if err != nil {
			return nil, err
		}
		advisor.Interfaces = append(advisor.Interfaces, ifaceType)
	}
	if err := advisor.Validate(); err != nil {
		return nil, err
	}
	return advisor, nil
}

// WithOrder 设置优先级并返回自身，便于链式构造
func (a *Advisor) WithOrder(order int) *Advisor {
	a.Order = order
	return a
}

// WithAspect 设置切面名和声明序号并返回自身
func (a *Advisor) WithAspect(aspect string, declaration int) *Advisor {
	a.Aspect = aspect
	a.Declaration = declaration
	return a
}

// WithId 设置顾问标识并返回自身
func (a *Advisor) WithId(id string) *Advisor {
	a.Id = id
	return a
}

// EffectiveFilter 按种类返回生效的类型过滤器
func (a *Advisor) EffectiveFilter() TypeFilter {
	switch a.Kind {
	case AdvisorKindPointcut:
		if a.Pointcut == nil {
			return TrueTypeFilter
		}
		return a.Pointcut.TypeFilter()
	case AdvisorKindIntroduction:
		if a.Filter == nil {
			return TrueTypeFilter
		}
		return a.Filter
	default:
		return TrueTypeFilter
	}
}

// EffectiveMatcher 按种类返回生效的方法匹配器
func (a *Advisor) EffectiveMatcher() MethodMatcher {
	if a.Kind == AdvisorKindPointcut && a.Pointcut != nil {
		return a.Pointcut.MethodMatcher()
	}
	return TrueMethodMatcher
}

// Validate 校验顾问自身的一致性
// 引介顾问检查委托实现了声明的所有接口
func (a *Advisor) Validate() error {
	switch a.Kind {
	case AdvisorKindPlain, AdvisorKindPointcut:
		if a.Advice == nil {
			return fmt.Errorf("advisor %s: advice can not be nil", a.Id)
		}
		return nil
	case AdvisorKindIntroduction:
		if a.Delegate == nil {
			return fmt.Errorf("introduction advisor %s: delegate can not be nil", a.Id)
		}
		if len(a.Interfaces) == 0 {
			return fmt.Errorf("introduction advisor %s: no interfaces declared", a.Id)
		}
		delegateType := reflect.TypeOf(a.Delegate)
		for _, ifaceType := range a.Interfaces {
			if ifaceType.Kind() != reflect.Interface {
				return fmt.Errorf("introduction advisor %s: %s is not an interface", a.Id, ifaceType.String())
			}
			if !delegateType.Implements(ifaceType) {
				return fmt.Errorf("introduction advisor %s: delegate %s does not implement %s",
					a.Id, delegateType.String(), ifaceType.String())
			}
		}
		return nil
	default:
		return fmt.Errorf("advisor %s: unknown kind %d", a.Id, int(a.Kind))
	}
}

func (a *Advisor) String() string {
	return fmt.Sprintf("advisor(id=%s kind=%s aspect=%s order=%d)", a.Id, a.Kind, a.Aspect, a.Order)
}

// InterfaceTypeOf 从指向接口的指针取接口类型，例如：InterfaceTypeOf((*Greeter)(nil))
// InterfaceTypeOf extracts the interface type from a pointer-to-interface
// value. This is the registration currency everywhere interface types are
// configured, since interface types have no value-level literal in Go.
func InterfaceTypeOf(ifacePtr interface{}) (reflect.Type, error) {
	t := reflect.TypeOf(ifacePtr)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Interface {
		return nil, fmt.Errorf("not a pointer to interface: %T", ifacePtr)
	}
	return t.Elem(), nil
}
