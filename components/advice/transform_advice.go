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

package advice

//织入DSL顾问配置示例：
//{
//   "id": "a4",
//   "type": "transform",
//   "configuration": {
//     "argsExpr": "[upper(args[0])]",
//     "resultExpr": "results"
//   }
//}
import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/maps"
)

// 注册组件
func init() {
	Registry.Add(&TransformAdvice{})
}

// TransformAdviceConfiguration 组件配置
type TransformAdviceConfiguration struct {
	//ArgsExpr 实参变换表达式，在调用前求值。内置变量: method、target、args。
	//返回数组时替换实参，为空表示不变换
	ArgsExpr string
	//ResultExpr 结果变换表达式，在正常返回后求值。内置变量: method、target、args、results。
	//返回数组时替换全部结果，返回其他值时替换第一个结果，为空表示不变换
	ResultExpr string
}

// TransformAdvice 变换通知
// 环绕拦截器：用 expr 表达式改写实参或者结果。出错返回时不做结果变换
type TransformAdvice struct {
	//Config 组件配置
	Config TransformAdviceConfiguration

	argsProgram   *vm.Program
	resultProgram *vm.Program
}

// Type 组件类型
func (a *TransformAdvice) Type() string {
	return "transform"
}

func (a *TransformAdvice) New() types.Component {
	return &TransformAdvice{}
}

// Init 初始化，预编译表达式
func (a *TransformAdvice) Init(config types.Config, configuration types.Configuration) error {
	if err := maps.Map2Struct(configuration, &a.Config); err != nil {
		return err
	}
	if a.Config.ArgsExpr != "" {
		program, err := expr.Compile(a.Config.ArgsExpr, expr.AllowUndefinedVariables())
		if err != nil {
			return err
		}
		a.argsProgram = program
	}
	if a.Config.ResultExpr != "" {
		program, err := expr.Compile(a.Config.ResultExpr, expr.AllowUndefinedVariables())
		if err != nil {
			return err
		}
		a.resultProgram = program
	}
	return nil
}

// Destroy 销毁
func (a *TransformAdvice) Destroy() {
}

// Invoke 变换实参，放行，再变换结果
func (a *TransformAdvice) Invoke(invocation types.Invocation) ([]interface{}, error) {
	if a.argsProgram != nil {
		out, err := vm.Run(a.argsProgram, a.env(invocation, nil))
		if err != nil {
			return nil, err
		}
		if newArgs, ok := out.([]interface{}); ok {
			invocation.SetArguments(newArgs...)
		}
	}
	results, err := invocation.Proceed()
	if err != nil {
		return results, err
	}
	if a.resultProgram != nil {
		out, evalErr := vm.Run(a.resultProgram, a.env(invocation, results))
		if evalErr != nil {
			return nil, evalErr
		}
		if newResults, ok := out.([]interface{}); ok {
			results = newResults
		} else if len(results) > 0 {
			results[0] = out
		} else {
			results = []interface{}{out}
		}
	}
	return results, nil
}

func (a *TransformAdvice) env(invocation types.Invocation, results []interface{}) map[string]interface{} {
	method := invocation.Method()
	env := map[string]interface{}{
		"method": map[string]interface{}{
			"name":      method.Name,
			"signature": method.String(),
		},
		"target": invocation.Target(),
		"args":   invocation.Arguments(),
	}
	if results != nil {
		env["results"] = results
	}
	return env
}
