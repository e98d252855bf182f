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

// Package matcher 内置匹配器组件
// 匹配器组件同时实现组件契约和 types.MethodMatcher，织入DSL通过
// pointcut.matcher 字段按类型引用
package matcher

import (
	"github.com/weavego/weavego/api/types"
)

// Registry 本包组件注册清单
var Registry = new(Components)

// Components 组件清单
type Components struct {
	components []types.Component
}

// Add 登记组件
func (r *Components) Add(component types.Component) {
	r.components = append(r.components, component)
}

// Components 登记的组件列表
func (r *Components) Components() []types.Component {
	return r.components
}
