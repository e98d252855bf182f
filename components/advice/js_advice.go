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
//   "id": "a3",
//   "type": "js",
//   "configuration": {
//     "jsScript": "if (args.length > 0 && args[0] === '') { return false; } return args;"
//   }
//}
import (
	"errors"
	"fmt"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/js"
	"github.com/weavego/weavego/utils/maps"
)

// JsAdviseFuncName JS脚本入口函数名
const JsAdviseFuncName = "Advise"

// JsAdviseFuncTemplate JS脚本模板
const JsAdviseFuncTemplate = "function Advise(method, target, args) { %s }"

// ErrScriptRejected 脚本返回 false 时中止调用
var ErrScriptRejected = errors.New("invocation rejected by script")

// 注册组件
func init() {
	Registry.Add(&JsAdvice{})
}

// JsAdviceConfiguration 组件配置
type JsAdviceConfiguration struct {
	//JsScript 脚本体，内置变量:
	//method: {name:string, signature:string}
	//target: 目标实例
	//args: 实参列表
	//返回数组：替换实参后放行；返回 false：中止调用；其他返回值：原样放行
	JsScript string
}

// JsAdvice JS脚本通知
// 通过 goja 在目标方法调用前执行脚本，可以改写实参或者否决调用。
// 脚本里可以调用 Config.Udf 注册的函数和 global 全局属性
type JsAdvice struct {
	//Config 组件配置
	Config JsAdviceConfiguration
	//jsEngine JS执行引擎
	jsEngine *js.GojaJsEngine
}

// Type 组件类型
func (a *JsAdvice) Type() string {
	return "js"
}

func (a *JsAdvice) New() types.Component {
	return &JsAdvice{Config: JsAdviceConfiguration{
		JsScript: "return args;",
	}}
}

// Init 初始化
func (a *JsAdvice) Init(config types.Config, configuration types.Configuration) error {
	if err := maps.Map2Struct(configuration, &a.Config); err != nil {
		return err
	}
	jsScript := fmt.Sprintf(JsAdviseFuncTemplate, a.Config.JsScript)
	engine, err := js.NewGojaJsEngine(config, jsScript, nil)
	if err != nil {
		return err
	}
	a.jsEngine = engine
	return nil
}

// Destroy 销毁
func (a *JsAdvice) Destroy() {
	if a.jsEngine != nil {
		a.jsEngine.Stop()
	}
}

// Invoke 执行脚本后放行
func (a *JsAdvice) Invoke(invocation types.Invocation) ([]interface{}, error) {
	method := invocation.Method()
	out, err := a.jsEngine.Execute(invocation.Context(), JsAdviseFuncName,
		map[string]interface{}{
			"name":      method.Name,
			"signature": method.String(),
		},
		invocation.Target(),
		invocation.Arguments(),
	)
	if err != nil {
		return nil, err
	}
	switch v := out.(type) {
	case bool:
		if !v {
			return nil, ErrScriptRejected
		}
	case []interface{}:
		invocation.SetArguments(v...)
	}
	return invocation.Proceed()
}
