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

package matcher

//织入DSL切入点配置示例：
//{
//   "pointcut": {
//     "matcher": "nameMatcher",
//     "matcherConfiguration": {
//       "methods": ["Find*", "Get*"]
//     }
//   }
//}
import (
	"reflect"
	"strings"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/maps"
)

// 注册组件
func init() {
	Registry.Add(&NameMatcher{})
}

// MatchWildcard 通配符匹配，`*`匹配任意段
// 没有`*`时是精确匹配
func MatchWildcard(pattern, name string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return pattern == name
	}
	parts := strings.Split(pattern, "*")
	rest := name
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		// 首段必须锚定开头，尾段必须锚定结尾
		if i == 0 && idx != 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(name, last) {
		return false
	}
	return true
}

// NameMatcherConfiguration 组件配置
type NameMatcherConfiguration struct {
	//Methods 方法名模式列表，支持`*`通配符，空列表匹配所有方法
	Methods []string
}

// NameMatcher 方法名通配符匹配器
// 静态匹配器：只依赖方法名，不依赖实参
type NameMatcher struct {
	//Config 组件配置
	Config NameMatcherConfiguration
}

// Type 组件类型
func (m *NameMatcher) Type() string {
	return "nameMatcher"
}

func (m *NameMatcher) New() types.Component {
	return &NameMatcher{}
}

// Init 初始化
func (m *NameMatcher) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &m.Config)
}

// Destroy 销毁
func (m *NameMatcher) Destroy() {
}

func (m *NameMatcher) Matches(method types.Method, targetType reflect.Type) bool {
	if len(m.Config.Methods) == 0 {
		return true
	}
	for _, pattern := range m.Config.Methods {
		if MatchWildcard(pattern, method.Name) {
			return true
		}
	}
	return false
}

func (m *NameMatcher) MatchesArgs(method types.Method, targetType reflect.Type, args []interface{}) bool {
	return m.Matches(method, targetType)
}

func (m *NameMatcher) IsRuntime() bool {
	return false
}

// NewNameMatcher 按方法名模式创建匹配器
func NewNameMatcher(patterns ...string) *NameMatcher {
	return &NameMatcher{Config: NameMatcherConfiguration{Methods: patterns}}
}

// TypeNameFilter 类型名通配符过滤器
// 对目标类型的短名和完整名都尝试匹配，指针类型先剥掉`*`
type TypeNameFilter struct {
	//Pattern 类型名模式，支持`*`通配符
	Pattern string
}

// NewTypeNameFilter 创建类型名过滤器
func NewTypeNameFilter(pattern string) *TypeNameFilter {
	return &TypeNameFilter{Pattern: pattern}
}

func (f *TypeNameFilter) Matches(targetType reflect.Type) bool {
	if f.Pattern == "" || f.Pattern == "*" {
		return true
	}
	if targetType == nil {
		return false
	}
	elem := targetType
	for elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if MatchWildcard(f.Pattern, elem.Name()) {
		return true
	}
	return MatchWildcard(f.Pattern, strings.TrimPrefix(targetType.String(), "*"))
}
