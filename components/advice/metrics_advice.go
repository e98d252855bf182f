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

import (
	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/api/types/metrics"
)

// 注册组件
func init() {
	Registry.Add(&MetricsAdvice{})
}

// MetricsAdvice 指标通知
// 统计经过本顾问的调用次数和成败，独立于代理自身的调用指标：
// 代理指标覆盖全部方法，本组件只统计切入点命中的方法
type MetricsAdvice struct {
	metrics *metrics.InvocationMetrics
}

// Type 组件类型
func (a *MetricsAdvice) Type() string {
	return "metrics"
}

func (a *MetricsAdvice) New() types.Component {
	return &MetricsAdvice{metrics: metrics.NewInvocationMetrics()}
}

// Init 初始化
func (a *MetricsAdvice) Init(config types.Config, configuration types.Configuration) error {
	if a.metrics == nil {
		a.metrics = metrics.NewInvocationMetrics()
	}
	return nil
}

// Destroy 销毁
func (a *MetricsAdvice) Destroy() {
	if a.metrics != nil {
		a.metrics.Reset()
	}
}

// Invoke 环绕统计
func (a *MetricsAdvice) Invoke(invocation types.Invocation) ([]interface{}, error) {
	a.metrics.IncrementCurrent()
	a.metrics.IncrementTotal()
	defer a.metrics.DecrementCurrent()
	results, err := invocation.Proceed()
	if err != nil {
		a.metrics.IncrementFailed()
	} else {
		a.metrics.IncrementSuccess()
	}
	return results, err
}

// Metrics 指标快照
func (a *MetricsAdvice) Metrics() metrics.InvocationMetrics {
	return a.metrics.Get()
}
