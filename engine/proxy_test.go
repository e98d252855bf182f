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

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/components/matcher"
	"github.com/weavego/weavego/test/assert"
)

// 测试目标和接口
type UserFinder interface {
	Find(id string) (string, error)
}

type UserStore interface {
	Save(name string) (string, error)
}

type Greeter interface {
	Greet(name string) string
}

var errUserNotFound = errors.New("user not found")

type userService struct {
	calls []string
}

func (s *userService) Find(id string) (string, error) {
	s.calls = append(s.calls, "Find:"+id)
	if id == "missing" {
		return "", errUserNotFound
	}
	return "user-" + id, nil
}

func (s *userService) Save(name string) (string, error) {
	s.calls = append(s.calls, "Save:"+name)
	return "saved-" + name, nil
}

type greeterDelegate struct {
}

func (d *greeterDelegate) Greet(name string) string {
	return "hello " + name
}

// recordingAdvice 环绕通知，记录进出事件
type recordingAdvice struct {
	name string
	log  *[]string
}

func (a *recordingAdvice) Invoke(invocation types.Invocation) ([]interface{}, error) {
	*a.log = append(*a.log, "enter:"+a.name)
	results, err := invocation.Proceed()
	*a.log = append(*a.log, "exit:"+a.name)
	return results, err
}

// beforeFunc 函数形式的前置通知
type beforeFunc func(invocation types.Invocation) error

func (f beforeFunc) Before(invocation types.Invocation) error {
	return f(invocation)
}

// afterReturningFunc 函数形式的返回后通知
type afterReturningFunc func(results []interface{}, invocation types.Invocation) error

func (f afterReturningFunc) AfterReturning(results []interface{}, invocation types.Invocation) error {
	return f(results, invocation)
}

func newTestConfig(ifacePtrs ...interface{}) types.Config {
	config := NewConfig()
	set := types.NewInterfaceSet()
	for _, ifacePtr := range ifacePtrs {
		_ = set.Register(ifacePtr)
	}
	config.Interfaces = set
	return config
}

func newTestProxy(t *testing.T, config types.Config, target interface{}, advisors ...*types.Advisor) *DefaultProxy {
	t.Helper()
	factory := NewProxyFactory(config)
	proxy, err := factory.Create(&ProxyConfig{
		TargetSource: types.NewSingletonTargetSource(target),
		Advisors:     advisors,
	})
	assert.Nil(t, err)
	return proxy
}

func TestInterfaceProxyExposesAllInterfaces(t *testing.T) {
	config := newTestConfig((*UserFinder)(nil), (*UserStore)(nil))
	proxy := newTestProxy(t, config, &userService{})

	assert.Equal(t, types.ProxierInterface, proxy.Kind())
	names := make(map[string]bool)
	for _, method := range proxy.Surface() {
		names[method.Name] = true
	}
	assert.True(t, names["Find"])
	assert.True(t, names["Save"])
	assert.Equal(t, 2, len(proxy.Surface()))
}

func TestSubclassProxyMirrorsExportedMethods(t *testing.T) {
	config := newTestConfig()
	proxy := newTestProxy(t, config, &userService{})

	assert.Equal(t, types.ProxierSubclass, proxy.Kind())
	names := make(map[string]bool)
	for _, method := range proxy.Surface() {
		names[method.Name] = true
	}
	assert.True(t, names["Find"])
	assert.True(t, names["Save"])
}

func TestForcedSubclassStrategy(t *testing.T) {
	config := newTestConfig((*UserFinder)(nil))
	factory := NewProxyFactory(config)
	proxy, err := factory.Create(&ProxyConfig{
		TargetSource:    types.NewSingletonTargetSource(&userService{}),
		ProxyTargetType: true,
	})
	assert.Nil(t, err)
	assert.Equal(t, types.ProxierSubclass, proxy.Kind())
}

func TestUnproxyableTarget(t *testing.T) {
	type empty struct{}
	config := newTestConfig()
	factory := NewProxyFactory(config)
	_, err := factory.Create(&ProxyConfig{
		TargetSource: types.NewSingletonTargetSource(&empty{}),
	})
	assert.True(t, errors.Is(err, types.ErrUnproxyableTarget))
}

func TestInvokePassesThroughChain(t *testing.T) {
	var log []string
	config := newTestConfig((*UserFinder)(nil))
	a1 := types.NewAdvisor(&recordingAdvice{name: "a1", log: &log}).WithId("a1").WithOrder(1)
	a2 := types.NewAdvisor(&recordingAdvice{name: "a2", log: &log}).WithId("a2").WithOrder(2)
	proxy := newTestProxy(t, config, &userService{}, a2, a1)

	results, err := proxy.Invoke("Find", "42")
	assert.Nil(t, err)
	assert.Equal(t, "user-42", results[0])
	// Order小的在外层，进入顺序a1->a2，退出顺序相反
	assert.Equal(t, []string{"enter:a1", "enter:a2", "exit:a2", "exit:a1"}, log)
}

func TestSameAspectAdviceOrder(t *testing.T) {
	var log []string
	config := newTestConfig((*UserFinder)(nil))
	recordBefore := func(tag string) beforeFunc {
		return func(invocation types.Invocation) error {
			log = append(log, "before:"+tag)
			return nil
		}
	}
	recordAfter := func(tag string) afterReturningFunc {
		return func(results []interface{}, invocation types.Invocation) error {
			log = append(log, "after:"+tag)
			return nil
		}
	}
	bx := types.NewAdvisor(recordBefore("x")).WithId("bx").WithAspect("audit", 0)
	by := types.NewAdvisor(recordBefore("y")).WithId("by").WithAspect("audit", 1)
	ax := types.NewAdvisor(recordAfter("x")).WithId("ax").WithAspect("audit", 2)
	ay := types.NewAdvisor(recordAfter("y")).WithId("ay").WithAspect("audit", 3)
	proxy := newTestProxy(t, config, &userService{}, bx, by, ax, ay)

	_, err := proxy.Invoke("Find", "1")
	assert.Nil(t, err)
	// 同切面按声明顺序嵌套：前置按声明顺序进入，后置效果在退出侧反向
	assert.Equal(t, []string{"before:x", "before:y", "after:y", "after:x"}, log)
}

func TestBeforeAdviceAbortsInvocation(t *testing.T) {
	denied := errors.New("denied")
	target := &userService{}
	config := newTestConfig((*UserFinder)(nil))
	advisor := types.NewAdvisor(beforeFunc(func(invocation types.Invocation) error {
		return denied
	}))
	proxy := newTestProxy(t, config, target, advisor)

	_, err := proxy.Invoke("Find", "42")
	assert.True(t, errors.Is(err, denied))
	// 前置通知失败，目标不执行
	assert.Equal(t, 0, len(target.calls))
}

func TestTargetErrorKeepsIdentity(t *testing.T) {
	var log []string
	config := newTestConfig((*UserFinder)(nil))
	advisor := types.NewAdvisor(&recordingAdvice{name: "a1", log: &log})
	proxy := newTestProxy(t, config, &userService{}, advisor)

	_, err := proxy.Invoke("Find", "missing")
	assert.True(t, errors.Is(err, errUserNotFound))
}

func TestInterceptorShortCircuit(t *testing.T) {
	target := &userService{}
	config := newTestConfig((*UserFinder)(nil))
	advisor := types.NewAdvisor(types.InterceptorFunc(func(invocation types.Invocation) ([]interface{}, error) {
		// 零次proceed，直接替换结果
		return []interface{}{"cached", nil}, nil
	}))
	proxy := newTestProxy(t, config, target, advisor)

	results, err := proxy.Invoke("Find", "42")
	assert.Nil(t, err)
	assert.Equal(t, "cached", results[0])
	assert.Equal(t, 0, len(target.calls))
}

func TestRuntimeMatcherEvaluatesPerCall(t *testing.T) {
	count := 0
	config := newTestConfig((*UserFinder)(nil))
	exprMatcher, err := matcher.NewExprMatcher("args[0] == 'admin'", true)
	assert.Nil(t, err)
	advisor := types.NewPointcutAdvisor(
		types.NewPointcut(nil, exprMatcher),
		beforeFunc(func(invocation types.Invocation) error {
			count++
			return nil
		}))
	proxy := newTestProxy(t, config, &userService{}, advisor)

	_, err = proxy.Invoke("Find", "admin")
	assert.Nil(t, err)
	assert.Equal(t, 1, count)

	// 静态匹配通过，运行时匹配失败，通知跳过但目标照常执行
	results, err := proxy.Invoke("Find", "guest")
	assert.Nil(t, err)
	assert.Equal(t, "user-guest", results[0])
	assert.Equal(t, 1, count)
}

func TestStaticMatcherFiltersAtCompileTime(t *testing.T) {
	count := 0
	config := newTestConfig((*UserFinder)(nil), (*UserStore)(nil))
	advisor := types.NewPointcutAdvisor(
		types.NewPointcut(nil, matcher.NewNameMatcher("Find*")),
		beforeFunc(func(invocation types.Invocation) error {
			count++
			return nil
		}))
	proxy := newTestProxy(t, config, &userService{}, advisor)

	_, _ = proxy.Invoke("Find", "42")
	_, _ = proxy.Invoke("Save", "bob")
	assert.Equal(t, 1, count)
}

func TestAsBindsMirrorStruct(t *testing.T) {
	config := newTestConfig((*UserFinder)(nil))
	proxy := newTestProxy(t, config, &userService{})

	var facade struct {
		Find func(id string) (string, error)
	}
	assert.Nil(t, proxy.As(&facade))
	v, err := facade.Find("42")
	assert.Nil(t, err)
	assert.Equal(t, "user-42", v)
}

func TestAsRejectsUnknownField(t *testing.T) {
	config := newTestConfig((*UserFinder)(nil))
	proxy := newTestProxy(t, config, &userService{})

	var facade struct {
		Delete func(id string) error
	}
	assert.NotNil(t, proxy.As(&facade))
}

func TestInvokeUnknownMethod(t *testing.T) {
	config := newTestConfig((*UserFinder)(nil))
	proxy := newTestProxy(t, config, &userService{})
	_, err := proxy.Invoke("Delete", "42")
	assert.NotNil(t, err)
	var configErr *types.InvocationConfigError
	assert.True(t, errors.As(err, &configErr))
}

func TestAddRemoveAdvisor(t *testing.T) {
	var log []string
	config := newTestConfig((*UserFinder)(nil))
	proxy := newTestProxy(t, config, &userService{})

	_, err := proxy.Invoke("Find", "1")
	assert.Nil(t, err)
	assert.Equal(t, 0, len(log))

	advisor := types.NewAdvisor(&recordingAdvice{name: "late", log: &log}).WithId("late")
	assert.Nil(t, proxy.AddAdvisor(advisor))
	_, err = proxy.Invoke("Find", "2")
	assert.Nil(t, err)
	assert.Equal(t, 2, len(log))

	assert.True(t, proxy.RemoveAdvisor("late"))
	_, err = proxy.Invoke("Find", "3")
	assert.Nil(t, err)
	assert.Equal(t, 2, len(log))
	assert.False(t, proxy.RemoveAdvisor("late"))
}

func TestReplaceAdvisor(t *testing.T) {
	var log []string
	config := newTestConfig((*UserFinder)(nil))
	a1 := types.NewAdvisor(&recordingAdvice{name: "old", log: &log}).WithId("a1")
	proxy := newTestProxy(t, config, &userService{}, a1)

	replacement := types.NewAdvisor(&recordingAdvice{name: "new", log: &log}).WithId("a1")
	replaced, err := proxy.ReplaceAdvisor("a1", replacement)
	assert.Nil(t, err)
	assert.True(t, replaced)

	_, err = proxy.Invoke("Find", "1")
	assert.Nil(t, err)
	assert.Equal(t, []string{"enter:new", "exit:new"}, log)
}

func TestProxyMetrics(t *testing.T) {
	config := newTestConfig((*UserFinder)(nil))
	proxy := newTestProxy(t, config, &userService{})

	_, _ = proxy.Invoke("Find", "1")
	_, _ = proxy.Invoke("Find", "missing")

	m := proxy.Metrics()
	assert.Equal(t, int64(2), m.Total)
	assert.Equal(t, int64(1), m.Success)
	assert.Equal(t, int64(1), m.Failed)
	assert.Equal(t, int64(0), m.Current)
}

func TestTraceEvents(t *testing.T) {
	var events []types.TraceEvent
	config := newTestConfig((*UserFinder)(nil))
	config.OnTrace = func(trace types.TraceEvent) {
		events = append(events, trace)
	}
	proxy := newTestProxy(t, config, &userService{})

	_, err := proxy.Invoke("Find", "1")
	assert.Nil(t, err)
	assert.Equal(t, 2, len(events))
	assert.Equal(t, types.In, events[0].Phase)
	assert.Equal(t, types.Out, events[1].Phase)
	assert.Equal(t, "Find", events[0].Method)
	assert.Equal(t, events[0].InvocationId, events[1].InvocationId)
}

func TestIntroductionAddsInterface(t *testing.T) {
	config := newTestConfig((*UserFinder)(nil), (*Greeter)(nil))
	advisor, err := types.NewIntroductionAdvisor(&greeterDelegate{}, nil, (*Greeter)(nil))
	assert.Nil(t, err)
	proxy := newTestProxy(t, config, &userService{}, advisor)

	// 引介方法出现在暴露面上并分发到委托
	results, err := proxy.Invoke("Greet", "bob")
	assert.Nil(t, err)
	assert.Equal(t, "hello bob", results[0])

	// 目标自身的方法不受影响
	results, err = proxy.Invoke("Find", "42")
	assert.Nil(t, err)
	assert.Equal(t, "user-42", results[0])
}

func TestInvokeAsyncWithPool(t *testing.T) {
	config := newTestConfig((*UserFinder)(nil))
	config.Pool = types.DefaultPool()
	defer config.Pool.Release()
	proxy := newTestProxy(t, config, &userService{})

	done := make(chan struct{})
	var got []interface{}
	var gotErr error
	proxy.InvokeAsync(context.Background(), "Find", []interface{}{"7"}, func(results []interface{}, err error) {
		got = results
		gotErr = err
		close(done)
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async invocation did not complete")
	}
	assert.Nil(t, gotErr)
	assert.Equal(t, "user-7", got[0])
}

func TestInvokeAsyncWithoutPool(t *testing.T) {
	config := newTestConfig((*UserFinder)(nil))
	config.Pool = nil
	proxy := newTestProxy(t, config, &userService{})

	done := make(chan error, 1)
	proxy.InvokeAsync(context.Background(), "Find", []interface{}{"missing"}, func(results []interface{}, err error) {
		done <- err
	})
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, errUserNotFound))
	case <-time.After(time.Second):
		t.Fatal("async invocation did not complete")
	}
}
