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
//     "matcher": "exprMatcher",
//     "matcherConfiguration": {
//       "expr": "method.name startsWith 'Find' && args[0] == 'admin'",
//       "runtime": true
//     }
//   }
//}
import (
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/maps"
)

// 注册组件
func init() {
	Registry.Add(&ExprMatcher{})
}

// ExprMatcherConfiguration 组件配置
type ExprMatcherConfiguration struct {
	//Expr expr表达式，返回值必须是布尔
	//通过`method.name`访问方法名，`method.signature`访问方法签名
	//通过`target`访问目标类型名
	//运行时匹配额外通过`args`访问实参列表
	Expr string
	//Runtime 是否携带实参在每次调用时评估
	Runtime bool
}

// ExprMatcher expr表达式匹配器
// Runtime 为 false 时是静态匹配器，编链时评估一次；
// 为 true 时静态阶段放行（args为空评估留给运行时），每次调用携带实参评估
type ExprMatcher struct {
	//Config 组件配置
	Config  ExprMatcherConfiguration
	program *vm.Program
}

// Type 组件类型
func (m *ExprMatcher) Type() string {
	return "exprMatcher"
}

func (m *ExprMatcher) New() types.Component {
	return &ExprMatcher{}
}

// Init 初始化，编译表达式
func (m *ExprMatcher) Init(config types.Config, configuration types.Configuration) error {
	if err := maps.Map2Struct(configuration, &m.Config); err != nil {
		return err
	}
	program, err := expr.Compile(m.Config.Expr, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return err
	}
	m.program = program
	return nil
}

// Destroy 销毁
func (m *ExprMatcher) Destroy() {
}

func (m *ExprMatcher) Matches(method types.Method, targetType reflect.Type) bool {
	if m.Config.Runtime {
		// 运行时匹配器的静态阶段放行，真正的决定在 MatchesArgs
		return true
	}
	return m.eval(method, targetType, nil)
}

func (m *ExprMatcher) MatchesArgs(method types.Method, targetType reflect.Type, args []interface{}) bool {
	return m.eval(method, targetType, args)
}

func (m *ExprMatcher) IsRuntime() bool {
	return m.Config.Runtime
}

func (m *ExprMatcher) eval(method types.Method, targetType reflect.Type, args []interface{}) bool {
	if m.program == nil {
		return false
	}
	signature := ""
	if method.Type != nil {
		signature = method.Type.String()
	}
	targetName := ""
	if targetType != nil {
		targetName = targetType.String()
	}
	env := map[string]interface{}{
		"method": map[string]interface{}{
			"name":      method.Name,
			"signature": signature,
		},
		"target": targetName,
		"args":   args,
	}
	out, err := vm.Run(m.program, env)
	if err != nil {
		return false
	}
	result, ok := out.(bool)
	return ok && result
}

// NewExprMatcher 创建表达式匹配器，表达式非法返回错误
func NewExprMatcher(expression string, runtime bool) (*ExprMatcher, error) {
	m := &ExprMatcher{}
	if err := m.Init(types.Config{}, types.Configuration{"expr": expression, "runtime": runtime}); err != nil {
		return nil, err
	}
	return m, nil
}
