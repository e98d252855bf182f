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

// Package mqtt provides the MQTT publisher used to ship audit events to a
// broker. It wraps the Paho MQTT library with connection retry, TLS support
// and a connection-state guard so publishing against a lost connection fails
// fast instead of blocking.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/weavego/weavego/utils/str"
)

// ErrNotConnected 客户端未连接
var ErrNotConnected = errors.New("MQTT client is not connected")

// Config 客户端配置
type Config struct {
	//mqtt broker 地址
	Server string
	//用户名
	Username string
	//密码
	Password string
	//重连重试间隔
	MaxReconnectInterval time.Duration
	QOS                  uint8
	CleanSession         bool
	//client Id
	ClientID    string
	CAFile      string
	CertFile    string
	CertKeyFile string
}

// Client 发布端mqtt客户端
type Client struct {
	client      paho.Client
	isConnected int32
}

// NewClient 创建一个MQTT客户端实例，阻塞直到连上broker或者ctx结束
func NewClient(ctx context.Context, conf Config) (*Client, error) {
	b := &Client{}

	opts := paho.NewClientOptions()
	opts.AddBroker(conf.Server)
	opts.SetUsername(conf.Username)
	opts.SetPassword(conf.Password)
	opts.SetCleanSession(conf.CleanSession)
	if conf.ClientID == "" {
		//随机clientId
		opts.SetClientID("weavego/" + str.RandomStr(8))
	} else {
		opts.SetClientID(conf.ClientID)
	}
	opts.SetOnConnectHandler(b.onConnected)
	opts.SetConnectionLostHandler(b.onConnectionLost)
	if conf.MaxReconnectInterval <= 0 {
		conf.MaxReconnectInterval = time.Second * 60
	}
	opts.SetMaxReconnectInterval(conf.MaxReconnectInterval)

	tlsconfig, err := newTLSConfig(conf.CAFile, conf.CertFile, conf.CertKeyFile)
	if err != nil {
		return nil, fmt.Errorf("error loading mqtt certificate files,ca_cert=%s,tls_cert=%s,tls_key=%s", conf.CAFile, conf.CertFile, conf.CertKeyFile)
	}
	if tlsconfig != nil {
		opts.SetTLSConfig(tlsconfig)
	}
	b.client = paho.NewClient(opts)

	for {
		if token := b.client.Connect(); token.Wait() && token.Error() != nil {
			select {
			case <-ctx.Done():
				//context被取消或超时，返回错误
				return nil, token.Error()
			case <-time.After(2 * time.Second):
				//定时器到期，继续重试
			}
		} else {
			break
		}
	}

	return b, nil
}

// IsConnected 当前是否连上broker
func (b *Client) IsConnected() bool {
	return atomic.LoadInt32(&b.isConnected) == 1
}

// Publish 发布数据
func (b *Client) Publish(topic string, qos byte, data []byte) error {
	if !b.IsConnected() {
		return ErrNotConnected
	}
	if token := b.client.Publish(topic, qos, false, data); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Close 断开连接
func (b *Client) Close() error {
	if b.client != nil {
		b.client.Disconnect(500)
	}
	atomic.StoreInt32(&b.isConnected, 0)
	return nil
}

func (b *Client) onConnected(c paho.Client) {
	atomic.StoreInt32(&b.isConnected, 1)
}

func (b *Client) onConnectionLost(c paho.Client, reason error) {
	atomic.StoreInt32(&b.isConnected, 0)
}

func newTLSConfig(CAFile, certFile, certKeyFile string) (*tls.Config, error) {
	if CAFile == "" && certFile == "" && certKeyFile == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{}

	if CAFile != "" {
		caCert, err := os.ReadFile(CAFile)
		if err != nil {
			return nil, err
		}
		certPool := x509.NewCertPool()
		certPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = certPool
	}

	if certFile != "" && certKeyFile != "" {
		kp, err := tls.LoadX509KeyPair(certFile, certKeyFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{kp}
	}
	return tlsConfig, nil
}
