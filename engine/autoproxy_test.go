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
	"testing"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/components/matcher"
	"github.com/weavego/weavego/test/assert"
)

func TestPostProcessWithoutEligibleAdvisors(t *testing.T) {
	config := newTestConfig()
	creator := NewAutoProxyCreator(config)

	target := &userService{}
	out, err := creator.PostProcess(target, "userService")
	assert.Nil(t, err)
	// 没有候选顾问时原样放行
	assert.Equal(t, target, out)

	// 类型过滤不命中也原样放行
	pointcut := types.NewPointcut(matcher.NewTypeNameFilter("*OrderService"), nil)
	advice := types.InterceptorFunc(func(invocation types.Invocation) ([]interface{}, error) { return invocation.Proceed() })
	assert.Nil(t, creator.AddAdvisor(types.NewPointcutAdvisor(pointcut, advice).WithId("orders")))
	out, err = creator.PostProcess(target, "userService")
	assert.Nil(t, err)
	assert.Equal(t, target, out)
}

func TestPostProcessWeavesEligibleTarget(t *testing.T) {
	var log []string
	config := newTestConfig((*UserFinder)(nil))
	creator := NewAutoProxyCreator(config, types.NewAdvisor(&recordingAdvice{name: "audit", log: &log}).WithId("audit"))

	target := &userService{}
	out, err := creator.PostProcess(target, "userService")
	assert.Nil(t, err)
	assert.NotEqual(t, target, out)

	proxy, ok := out.(*DefaultProxy)
	assert.True(t, ok)
	results, err := proxy.Invoke("Find", "9")
	assert.Nil(t, err)
	assert.Equal(t, "user-9", results[0])
	assert.Equal(t, []string{"enter:audit", "exit:audit"}, log)
}

func TestShouldSkipInfrastructure(t *testing.T) {
	creator := NewAutoProxyCreator(newTestConfig())

	assert.True(t, creator.ShouldSkip(nil, "nil"))
	assert.True(t, creator.ShouldSkip(&types.Advisor{Id: "a"}, "advisor"))
	interceptor := types.InterceptorFunc(func(invocation types.Invocation) ([]interface{}, error) { return invocation.Proceed() })
	assert.True(t, creator.ShouldSkip(interceptor, "interceptor"))
	assert.True(t, creator.ShouldSkip(matcher.NewNameMatcher("Find*"), "matcher"))
	assert.False(t, creator.ShouldSkip(&userService{}, "userService"))
}

func TestShouldSkipProxies(t *testing.T) {
	config := newTestConfig((*UserFinder)(nil))
	proxy := newTestProxy(t, config, &userService{})
	creator := NewAutoProxyCreator(config)

	assert.True(t, creator.ShouldSkip(proxy, "proxy"))
}

func TestExcludeByName(t *testing.T) {
	var log []string
	config := newTestConfig((*UserFinder)(nil))
	creator := NewAutoProxyCreator(config, types.NewAdvisor(&recordingAdvice{name: "audit", log: &log}).WithId("audit"))
	creator.Exclude("legacyUserService")

	target := &userService{}
	out, err := creator.PostProcess(target, "legacyUserService")
	assert.Nil(t, err)
	assert.Equal(t, target, out)

	out, err = creator.PostProcess(target, "userService")
	assert.Nil(t, err)
	assert.NotEqual(t, target, out)
}

func TestAddAdvisorValidates(t *testing.T) {
	creator := NewAutoProxyCreator(newTestConfig())
	err := creator.AddAdvisor(&types.Advisor{Id: "broken", Kind: types.AdvisorKindPlain})
	assert.NotNil(t, err)
	assert.Equal(t, 0, len(creator.Advisors()))
}
