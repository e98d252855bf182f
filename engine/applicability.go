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
	"reflect"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/reflectx"
)

// CanApply 顾问是否可能作用于目标类型
// 类型过滤器先行短路；引介顾问只评估类型过滤器；切入点顾问在类型过滤
// 通过后逐个方法评估静态匹配，任何一个方法命中即可。全匹配器直接通过，
// 不枚举方法。粒度是对象级：只要有一个方法命中，对象就会被代理
func CanApply(advisor *types.Advisor, targetType reflect.Type, hasIntroductions bool, interfaces *types.InterfaceSet) bool {
	switch advisor.Kind {
	case types.AdvisorKindIntroduction:
		return advisor.EffectiveFilter().Matches(targetType)
	case types.AdvisorKindPointcut:
		pointcut := advisor.Pointcut
		if pointcut == nil {
			pointcut = types.TruePointcut
		}
		return canApplyPointcut(pointcut, targetType, hasIntroductions, interfaces)
	case types.AdvisorKindPlain:
		return true
	default:
		return false
	}
}

func canApplyPointcut(pointcut types.Pointcut, targetType reflect.Type, hasIntroductions bool, interfaces *types.InterfaceSet) bool {
	if !pointcut.TypeFilter().Matches(targetType) {
		return false
	}
	matcher := pointcut.MethodMatcher()
	if types.IsTrueMethodMatcher(matcher) {
		// 全匹配器不需要枚举方法
		return true
	}
	introductionAware, isIntroductionAware := matcher.(types.IntroductionAwareMethodMatcher)
	for _, method := range CandidateMethods(targetType, interfaces) {
		if isIntroductionAware {
			if introductionAware.MatchesIntroduced(method, targetType, hasIntroductions) {
				return true
			}
		} else if matcher.Matches(method, targetType) {
			return true
		}
	}
	return false
}

// CandidateMethods 类型参与匹配评估的候选方法集
// 目标类型自身的方法加上它实现的已注册接口的方法；合成代理类型不展开
// 接口，防止代理套代理时重复评估
func CandidateMethods(targetType reflect.Type, interfaces *types.InterfaceSet) []types.Method {
	methods := reflectx.MethodsOf(targetType)
	if targetType.Implements(proxiedType) {
		return methods
	}
	if interfaces == nil {
		interfaces = types.DefaultInterfaceSet
	}
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		seen[m.Name] = true
	}
	for _, ifaceType := range interfaces.ImplementedBy(targetType) {
		for _, m := range reflectx.MethodsOf(ifaceType) {
			if !seen[m.Name] {
				seen[m.Name] = true
				methods = append(methods, m)
			}
		}
	}
	return methods
}

var proxiedType = reflect.TypeOf((*types.Proxied)(nil)).Elem()

// FindEligibleAdvisors 从候选顾问里筛选可以作用于目标类型的顾问
// 两趟筛选：先引介顾问，再其余顾问；第二趟的匹配评估感知第一趟是否
// 选中了引介。输出保持输入相对顺序，引介在前
func FindEligibleAdvisors(candidates []*types.Advisor, targetType reflect.Type, interfaces *types.InterfaceSet) []*types.Advisor {
	var eligible []*types.Advisor
	for _, advisor := range candidates {
		if advisor.Kind == types.AdvisorKindIntroduction && CanApply(advisor, targetType, false, interfaces) {
			eligible = append(eligible, advisor)
		}
	}
	hasIntroductions := len(eligible) > 0
	for _, advisor := range candidates {
		if advisor.Kind == types.AdvisorKindIntroduction {
			continue
		}
		if CanApply(advisor, targetType, hasIntroductions, interfaces) {
			eligible = append(eligible, advisor)
		}
	}
	return eligible
}
