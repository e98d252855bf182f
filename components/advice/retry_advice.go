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
//   "type": "retry",
//   "configuration": {
//     "maxAttempts": 3,
//     "backoff": "100ms"
//   }
//}
import (
	"time"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/maps"
)

// 注册组件
func init() {
	Registry.Add(&RetryAdvice{})
}

// RetryAdviceConfiguration 组件配置
type RetryAdviceConfiguration struct {
	//MaxAttempts 总尝试次数（含首次），默认3
	MaxAttempts int
	//Backoff 重试间隔时长，例如"100ms"，空表示不等待
	Backoff string
}

// RetryAdvice 重试通知
// 环绕拦截器：失败后在调用副本上重复 proceed，每个副本游标独立归零，
// 拿到成功结果立即返回，重试耗尽返回最后一次的错误
type RetryAdvice struct {
	//Config 组件配置
	Config  RetryAdviceConfiguration
	backoff time.Duration
}

// Type 组件类型
func (a *RetryAdvice) Type() string {
	return "retry"
}

func (a *RetryAdvice) New() types.Component {
	return &RetryAdvice{Config: RetryAdviceConfiguration{
		MaxAttempts: 3,
	}}
}

// Init 初始化
func (a *RetryAdvice) Init(config types.Config, configuration types.Configuration) error {
	if err := maps.Map2Struct(configuration, &a.Config); err != nil {
		return err
	}
	if a.Config.MaxAttempts < 1 {
		a.Config.MaxAttempts = 1
	}
	if a.Config.Backoff != "" {
		backoff, err := time.ParseDuration(a.Config.Backoff)
		if err != nil {
			return err
		}
		a.backoff = backoff
	}
	return nil
}

// Destroy 销毁
func (a *RetryAdvice) Destroy() {
}

// retryActiveKey 附件标记：副本从链头重走时告诉自己不要再次重试
const retryActiveKey = "$retryActive"

// Invoke 环绕重试
// 副本从链头重新走链，附件表随副本传递，用它挡住自身的重复重试
func (a *RetryAdvice) Invoke(invocation types.Invocation) ([]interface{}, error) {
	if _, active := invocation.Attachment(retryActiveKey); active {
		return invocation.Proceed()
	}
	invocation.SetAttachment(retryActiveKey, true)
	results, err := invocation.Proceed()
	for attempt := 1; err != nil && attempt < a.Config.MaxAttempts; attempt++ {
		if a.backoff > 0 {
			time.Sleep(a.backoff)
		}
		// 原调用的游标已经走完，重试走游标归零的副本
		results, err = invocation.Clone().Proceed()
	}
	return results, err
}
