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

// Package websocket streams runtime trace events to connected clients.
// 包 websocket 把运行时追踪事件推送给已连接的客户端。
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/json"
)

// traceMessage TraceEvent的线上形态，Err渲染为字符串
type traceMessage struct {
	ProxyId      string `json:"proxyId"`
	InvocationId string `json:"invocationId"`
	Method       string `json:"method"`
	Phase        string `json:"phase"`
	AdvisorId    string `json:"advisorId,omitempty"`
	Error        string `json:"error,omitempty"`
	DurationMs   int64  `json:"durationMs"`
	Ts           int64  `json:"ts"`
}

// TraceStream 追踪事件广播器，实现http.Handler
// 通过 Hook 挂到 Config.OnTrace，每条事件以JSON文本帧推送到所有连接
type TraceStream struct {
	//Upgrader websocket升级配置
	Upgrader websocket.Upgrader
	//Logger 日志，nil使用默认日志
	Logger types.Logger

	sync.RWMutex
	clients map[*websocket.Conn]struct{}
	next    func(trace types.TraceEvent)
}

// NewTraceStream 创建追踪事件广播器
func NewTraceStream() *TraceStream {
	return &TraceStream{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Hook 返回可赋给 Config.OnTrace 的回调，并链式保留原回调
// 例如：config.OnTrace = stream.Hook(config.OnTrace)
func (s *TraceStream) Hook(next func(trace types.TraceEvent)) func(trace types.TraceEvent) {
	s.next = next
	return func(trace types.TraceEvent) {
		s.broadcast(trace)
		if s.next != nil {
			s.next(trace)
		}
	}
}

// ServeHTTP 把HTTP连接升级为websocket并保持到对端关闭
func (s *TraceStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger().Printf("websocket upgrade error: %v", err)
		return
	}
	s.Lock()
	s.clients[conn] = struct{}{}
	s.Unlock()

	// 读循环只为感知对端关闭，入站数据被丢弃
	go func() {
		defer s.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close 关闭所有连接
func (s *TraceStream) Close() {
	s.Lock()
	defer s.Unlock()
	for conn := range s.clients {
		_ = conn.Close()
		delete(s.clients, conn)
	}
}

func (s *TraceStream) broadcast(trace types.TraceEvent) {
	msg := traceMessage{
		ProxyId:      trace.ProxyId,
		InvocationId: trace.InvocationId,
		Method:       trace.Method,
		Phase:        trace.Phase,
		AdvisorId:    trace.AdvisorId,
		DurationMs:   trace.Duration.Milliseconds(),
		Ts:           time.Now().UnixMilli(),
	}
	if trace.Err != nil {
		msg.Error = trace.Err.Error()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger().Printf("websocket marshal trace error: %v", err)
		return
	}
	s.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.RUnlock()
	for _, conn := range conns {
		if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.remove(conn)
		}
	}
}

func (s *TraceStream) remove(conn *websocket.Conn) {
	_ = conn.Close()
	s.Lock()
	delete(s.clients, conn)
	s.Unlock()
}

func (s *TraceStream) logger() types.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return types.DefaultLogger()
}
