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

// Package schedule drives proxied methods on cron expressions.
// 包 schedule 按cron表达式定时触发代理方法。
package schedule

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/engine"
	"github.com/weavego/weavego/utils/runtime"
)

// Job 一个定时触发的代理调用
type Job struct {
	//Cron cron表达式，支持秒字段，例如 "*/1 * * * * *" 每隔1秒执行一次
	Cron string
	//WeaveId 织入单元ID
	WeaveId string
	//ProxyId 代理ID，空使用根代理
	ProxyId string
	//Method 方法名
	Method string
	//Args 实参列表
	Args []interface{}
}

// Schedule 定时端点，把池内代理方法挂到cron调度器上
type Schedule struct {
	//Pool 引擎池，nil使用默认池
	Pool *engine.Pool
	//Logger 日志，nil使用默认日志
	Logger types.Logger

	cron    *cron.Cron
	started bool
	lock    sync.Mutex
}

// New 创建定时端点
func New(pool *engine.Pool) *Schedule {
	if pool == nil {
		pool = engine.DefaultPool
	}
	return &Schedule{
		Pool: pool,
		cron: cron.New(cron.WithSeconds()),
	}
}

// AddJob 注册定时任务，返回任务ID用于移除
func (s *Schedule) AddJob(job Job) (cron.EntryID, error) {
	if job.Cron == "" {
		return 0, fmt.Errorf("cron expression can not be empty")
	}
	if job.Method == "" {
		return 0, fmt.Errorf("method can not be empty")
	}
	return s.cron.AddFunc(job.Cron, func() {
		s.run(job)
	})
}

// RemoveJob 移除定时任务
func (s *Schedule) RemoveJob(id cron.EntryID) {
	s.cron.Remove(id)
}

// Start 启动调度器
func (s *Schedule) Start() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop 停止调度器，已在执行的任务跑完
func (s *Schedule) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.started {
		s.cron.Stop()
		s.started = false
	}
}

func (s *Schedule) run(job Job) {
	defer func() {
		if e := recover(); e != nil {
			s.logger().Printf("schedule job panic: weave=%s proxy=%s method=%s error=%v\n%s",
				job.WeaveId, job.ProxyId, job.Method, e, runtime.Stack())
		}
	}()
	e, ok := s.Pool.Get(job.WeaveId)
	if !ok {
		s.logger().Printf("schedule job skipped: weave %s not found", job.WeaveId)
		return
	}
	var proxy types.Proxy
	if job.ProxyId == "" {
		proxy = e.RootProxy()
	} else {
		proxy, ok = e.Proxy(job.ProxyId)
		if !ok {
			s.logger().Printf("schedule job skipped: proxy %s not found in weave %s", job.ProxyId, job.WeaveId)
			return
		}
	}
	if proxy == nil {
		s.logger().Printf("schedule job skipped: weave %s has no proxies", job.WeaveId)
		return
	}
	if _, err := proxy.Invoke(job.Method, job.Args...); err != nil {
		s.logger().Printf("schedule job error: weave=%s proxy=%s method=%s error=%v",
			job.WeaveId, job.ProxyId, job.Method, err)
	}
}

func (s *Schedule) logger() types.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return types.DefaultLogger()
}
