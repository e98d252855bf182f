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

import (
	"reflect"
	"testing"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/test/assert"
)

type orderService struct {
}

func (s *orderService) FindOrder(id string) string {
	return "order-" + id
}

func (s *orderService) CancelOrder(id string) error {
	return nil
}

func methodOf(t *testing.T, target interface{}, name string) types.Method {
	t.Helper()
	m, ok := reflect.TypeOf(target).MethodByName(name)
	assert.True(t, ok)
	return types.Method{Name: m.Name, Type: m.Type}
}

func TestMatchWildcard(t *testing.T) {
	var tests = []struct {
		pattern string
		name    string
		want    bool
	}{
		{"", "anything", true},
		{"*", "anything", true},
		{"Find", "Find", true},
		{"Find", "FindOrder", false},
		{"Find*", "FindOrder", true},
		{"Find*", "RefindOrder", false},
		{"*Order", "FindOrder", true},
		{"*Order", "FindOrderById", false},
		{"Find*ById", "FindOrderById", true},
		{"Find*ById", "FindOrder", false},
		{"*Order*", "FindOrderById", true},
		{"*Order*", "FindUser", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchWildcard(tt.pattern, tt.name),
			"pattern=%s name=%s", tt.pattern, tt.name)
	}
}

func TestNameMatcher(t *testing.T) {
	target := &orderService{}
	targetType := reflect.TypeOf(target)
	find := methodOf(t, target, "FindOrder")
	cancel := methodOf(t, target, "CancelOrder")

	m := NewNameMatcher("Find*")
	assert.True(t, m.Matches(find, targetType))
	assert.False(t, m.Matches(cancel, targetType))
	assert.False(t, m.IsRuntime())

	// 空模式列表匹配所有方法
	all := NewNameMatcher()
	assert.True(t, all.Matches(find, targetType))
	assert.True(t, all.Matches(cancel, targetType))
}

func TestNameMatcherInitFromConfiguration(t *testing.T) {
	m := (&NameMatcher{}).New().(*NameMatcher)
	err := m.Init(types.Config{}, types.Configuration{
		"methods": []string{"Cancel*"},
	})
	assert.Nil(t, err)

	target := &orderService{}
	targetType := reflect.TypeOf(target)
	assert.True(t, m.Matches(methodOf(t, target, "CancelOrder"), targetType))
	assert.False(t, m.Matches(methodOf(t, target, "FindOrder"), targetType))
}

func TestTypeNameFilter(t *testing.T) {
	targetType := reflect.TypeOf(&orderService{})

	// 短名和带包名的完整名都可以匹配，指针先剥掉`*`
	assert.True(t, NewTypeNameFilter("orderService").Matches(targetType))
	assert.True(t, NewTypeNameFilter("*Service").Matches(targetType))
	assert.True(t, NewTypeNameFilter("matcher.*").Matches(targetType))
	assert.False(t, NewTypeNameFilter("*Repository").Matches(targetType))
	assert.True(t, NewTypeNameFilter("*").Matches(targetType))
	assert.True(t, NewTypeNameFilter("").Matches(targetType))
	assert.False(t, NewTypeNameFilter("x").Matches(nil))
}

func TestExprMatcherStatic(t *testing.T) {
	m, err := NewExprMatcher("method.name startsWith 'Find'", false)
	assert.Nil(t, err)
	assert.False(t, m.IsRuntime())

	target := &orderService{}
	targetType := reflect.TypeOf(target)
	assert.True(t, m.Matches(methodOf(t, target, "FindOrder"), targetType))
	assert.False(t, m.Matches(methodOf(t, target, "CancelOrder"), targetType))
}

func TestExprMatcherRuntime(t *testing.T) {
	m, err := NewExprMatcher("args[0] == 'vip'", true)
	assert.Nil(t, err)
	assert.True(t, m.IsRuntime())

	target := &orderService{}
	targetType := reflect.TypeOf(target)
	find := methodOf(t, target, "FindOrder")

	// 静态阶段放行，真正的决定在运行时
	assert.True(t, m.Matches(find, targetType))
	assert.True(t, m.MatchesArgs(find, targetType, []interface{}{"vip"}))
	assert.False(t, m.MatchesArgs(find, targetType, []interface{}{"guest"}))
	assert.False(t, m.MatchesArgs(find, targetType, nil))
}

func TestExprMatcherTargetAndSignature(t *testing.T) {
	m, err := NewExprMatcher("target contains 'orderService' && method.signature contains 'string'", false)
	assert.Nil(t, err)

	target := &orderService{}
	assert.True(t, m.Matches(methodOf(t, target, "FindOrder"), reflect.TypeOf(target)))
}

func TestExprMatcherInvalidExpression(t *testing.T) {
	_, err := NewExprMatcher("method.name startsWith", false)
	assert.NotNil(t, err)
}

func TestRegistryListsComponents(t *testing.T) {
	names := make(map[string]bool)
	for _, component := range Registry.Components() {
		names[component.Type()] = true
	}
	assert.True(t, names["nameMatcher"])
	assert.True(t, names["exprMatcher"])
}
