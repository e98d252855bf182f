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
//   "id": "a6",
//   "type": "mqttAudit",
//   "configuration": {
//     "server": "127.0.0.1:1883",
//     "topic": "/audit/invocation"
//   }
//}
import (
	"context"
	"errors"
	"time"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/json"
	"github.com/weavego/weavego/utils/maps"
	"github.com/weavego/weavego/utils/mqtt"
)

// 注册组件
func init() {
	Registry.Add(&MqttAuditAdvice{})
}

// MqttAuditAdviceConfiguration 组件配置
type MqttAuditAdviceConfiguration struct {
	//Topic 审计事件发布主题
	Topic string
	//Server mqtt broker 地址
	Server string
	//Username 用户名
	Username string
	//Password 密码
	Password string
	//MaxReconnectInterval 重连重试间隔，单位秒
	MaxReconnectInterval int
	QOS                  uint8
	CleanSession         bool
	ClientID             string
	CAFile               string
	CertFile             string
	CertKeyFile          string
}

// AuditEvent 审计事件负荷
type AuditEvent struct {
	//TargetType 目标类型
	TargetType string `json:"targetType"`
	//Method 方法名
	Method string `json:"method"`
	//Args 实参
	Args []interface{} `json:"args"`
	//Error 错误消息，成功时为空
	Error string `json:"error,omitempty"`
	//DurationMs 耗时毫秒
	DurationMs int64 `json:"durationMs"`
	//Ts 事件时间戳
	Ts int64 `json:"ts"`
}

// MqttAuditAdvice mqtt审计通知
// 环绕拦截器：调用结束后把审计事件以JSON发布到broker。
// 发布失败只记日志，不影响调用结果
type MqttAuditAdvice struct {
	//Config 组件配置
	Config MqttAuditAdviceConfiguration
	//客户端
	client *mqtt.Client
	logger types.Logger
}

// Type 组件类型
func (a *MqttAuditAdvice) Type() string {
	return "mqttAudit"
}

func (a *MqttAuditAdvice) New() types.Component {
	return &MqttAuditAdvice{Config: MqttAuditAdviceConfiguration{
		Topic:                "/audit/invocation",
		Server:               "127.0.0.1:1883",
		QOS:                  0,
		MaxReconnectInterval: 60,
	}}
}

// Init 初始化组件
func (a *MqttAuditAdvice) Init(config types.Config, configuration types.Configuration) error {
	if err := maps.Map2Struct(configuration, &a.Config); err != nil {
		return err
	}
	if a.Config.Topic == "" {
		return errors.New("topic can not empty")
	}
	a.logger = types.NewLogger(config.Logger)

	ctx, cancel := context.WithTimeout(context.TODO(), 4*time.Second)
	defer cancel()
	client, err := mqtt.NewClient(ctx, mqtt.Config{
		Server:               a.Config.Server,
		Username:             a.Config.Username,
		Password:             a.Config.Password,
		MaxReconnectInterval: time.Duration(a.Config.MaxReconnectInterval) * time.Second,
		QOS:                  a.Config.QOS,
		CleanSession:         a.Config.CleanSession,
		ClientID:             a.Config.ClientID,
		CAFile:               a.Config.CAFile,
		CertFile:             a.Config.CertFile,
		CertKeyFile:          a.Config.CertKeyFile,
	})
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

// Destroy 销毁组件
func (a *MqttAuditAdvice) Destroy() {
	if a.client != nil {
		_ = a.client.Close()
		a.client = nil
	}
}

// Invoke 放行后发布审计事件
func (a *MqttAuditAdvice) Invoke(invocation types.Invocation) ([]interface{}, error) {
	start := time.Now()
	results, err := invocation.Proceed()
	event := AuditEvent{
		TargetType: invocation.TargetType().String(),
		Method:     invocation.Method().Name,
		Args:       invocation.Arguments(),
		DurationMs: time.Since(start).Milliseconds(),
		Ts:         time.Now().UnixMilli(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	a.publish(event)
	return results, err
}

func (a *MqttAuditAdvice) publish(event AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		a.logger.Printf("marshal audit event error: %s", err.Error())
		return
	}
	if err = a.client.Publish(a.Config.Topic, a.Config.QOS, data); err != nil {
		a.logger.Printf("publish audit event error: %s", err.Error())
	}
}
