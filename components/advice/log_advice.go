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

package advice

//织入DSL顾问配置示例：
//{
//   "id": "a1",
//   "type": "log",
//   "configuration": {
//     "template": "call ${method}"
//   }
//}
import (
	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/maps"
	"github.com/weavego/weavego/utils/str"
)

// 注册组件
func init() {
	Registry.Add(&LogAdvice{})
}

// LogAdviceConfiguration 组件配置
type LogAdviceConfiguration struct {
	//Template 日志模版，${method}替换为方法名，${target}替换为目标类型名
	Template string
}

// LogAdvice 日志通知
// 进入时记录方法和实参，退出时记录结果或者错误
type LogAdvice struct {
	//Config 组件配置
	Config LogAdviceConfiguration
	logger types.Logger
}

// Type 组件类型
func (a *LogAdvice) Type() string {
	return "log"
}

func (a *LogAdvice) New() types.Component {
	return &LogAdvice{Config: LogAdviceConfiguration{
		Template: "${method}",
	}}
}

// Init 初始化
func (a *LogAdvice) Init(config types.Config, configuration types.Configuration) error {
	a.logger = types.NewLogger(config.Logger)
	return maps.Map2Struct(configuration, &a.Config)
}

// Destroy 销毁
func (a *LogAdvice) Destroy() {
}

func (a *LogAdvice) render(invocation types.Invocation) string {
	return str.SprintfDict(a.Config.Template, map[string]string{
		"method": invocation.Method().Name,
		"target": invocation.TargetType().String(),
	})
}

// Before 进入日志
func (a *LogAdvice) Before(invocation types.Invocation) error {
	a.logger.Printf("ENTER %s args=%v", a.render(invocation), invocation.Arguments())
	return nil
}

// AfterReturning 正常退出日志
func (a *LogAdvice) AfterReturning(results []interface{}, invocation types.Invocation) error {
	a.logger.Printf("EXIT  %s results=%v", a.render(invocation), results)
	return nil
}

// AfterThrowing 异常退出日志，保留原错误
func (a *LogAdvice) AfterThrowing(err error, invocation types.Invocation) error {
	a.logger.Printf("FAIL  %s err=%v", a.render(invocation), err)
	return nil
}
