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
//   "id": "a7",
//   "type": "webhook",
//   "configuration": {
//     "url": "http://127.0.0.1:9090/audit",
//     "headers": {"Authorization": "Bearer xx"}
//   }
//}
import (
	"bytes"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/json"
	"github.com/weavego/weavego/utils/maps"
)

// 注册组件
func init() {
	Registry.Add(&WebhookAdvice{})
}

// WebhookAdviceConfiguration 组件配置
type WebhookAdviceConfiguration struct {
	//Url 回调地址
	Url string
	//Headers 请求头
	Headers map[string]string
	//ReadTimeoutMs 请求超时，单位毫秒，默认2000
	ReadTimeoutMs int
	//InsecureSkipVerify 是否跳过证书校验
	InsecureSkipVerify bool
	//ProxyScheme 代理协议，支持socks5
	ProxyScheme string
	//ProxyHost 代理主机
	ProxyHost string
	//ProxyPort 代理端口
	ProxyPort int
	//ProxyUser 代理用户名
	ProxyUser string
	//ProxyPassword 代理密码
	ProxyPassword string
}

// WebhookAdvice HTTP回调通知
// 环绕拦截器：调用结束后把审计事件POST到回调地址。回调失败只记日志，
// 不影响调用结果。支持 socks5 代理
type WebhookAdvice struct {
	//Config 组件配置
	Config WebhookAdviceConfiguration
	client *http.Client
	logger types.Logger
}

// Type 组件类型
func (a *WebhookAdvice) Type() string {
	return "webhook"
}

func (a *WebhookAdvice) New() types.Component {
	return &WebhookAdvice{Config: WebhookAdviceConfiguration{
		ReadTimeoutMs: 2000,
		Headers:       map[string]string{"Content-Type": "application/json"},
	}}
}

// Init 初始化组件
func (a *WebhookAdvice) Init(config types.Config, configuration types.Configuration) error {
	if err := maps.Map2Struct(configuration, &a.Config); err != nil {
		return err
	}
	if a.Config.Url == "" {
		return errors.New("url can not empty")
	}
	if _, err := url.Parse(a.Config.Url); err != nil {
		return err
	}
	a.logger = types.NewLogger(config.Logger)
	a.client = a.newClient()
	return nil
}

// Destroy 销毁组件
func (a *WebhookAdvice) Destroy() {
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
}

// Invoke 放行后回调
func (a *WebhookAdvice) Invoke(invocation types.Invocation) ([]interface{}, error) {
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
	a.post(event)
	return results, err
}

func (a *WebhookAdvice) post(event AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		a.logger.Printf("marshal webhook event error: %s", err.Error())
		return
	}
	req, err := http.NewRequest(http.MethodPost, a.Config.Url, bytes.NewReader(data))
	if err != nil {
		a.logger.Printf("build webhook request error: %s", err.Error())
		return
	}
	for k, v := range a.Config.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Printf("webhook call error: %s", err.Error())
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		a.logger.Printf("webhook call status: %s", resp.Status)
	}
}

func (a *WebhookAdvice) newClient() *http.Client {
	transport := &http.Transport{}
	if a.Config.ProxyScheme == "socks5" && a.Config.ProxyHost != "" && a.Config.ProxyPort > 0 {
		var auth *proxy.Auth
		if a.Config.ProxyUser != "" {
			auth = &proxy.Auth{User: a.Config.ProxyUser, Password: a.Config.ProxyPassword}
		}
		addr := net.JoinHostPort(a.Config.ProxyHost, strconv.Itoa(a.Config.ProxyPort))
		transport.Dial = func(network, targetAddr string) (net.Conn, error) {
			dialer, err := proxy.SOCKS5(network, addr, auth, proxy.Direct)
			if err != nil {
				return nil, err
			}
			return dialer.Dial(network, targetAddr)
		}
	}
	timeout := time.Duration(a.Config.ReadTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}
