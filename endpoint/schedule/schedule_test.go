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

package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/weavego/weavego/engine"
	"github.com/weavego/weavego/test/assert"
)

type heartbeatService struct {
	beats int64
}

func (s *heartbeatService) Beat() {
	atomic.AddInt64(&s.beats, 1)
}

const heartbeatDsl = `{
  "weave": {"id": "heartbeat"},
  "metadata": {
    "advisors": [],
    "proxies": [
      {"id": "p1", "target": "ref://scheduleHeartbeatService"}
    ]
  }
}`

func newTestSchedule(t *testing.T) (*Schedule, *heartbeatService) {
	t.Helper()
	service := &heartbeatService{}
	engine.Instances.Register("scheduleHeartbeatService", service)
	t.Cleanup(func() { engine.Instances.Unregister("scheduleHeartbeatService") })

	pool := engine.NewPool()
	t.Cleanup(pool.Stop)
	_, err := pool.New("", []byte(heartbeatDsl))
	assert.Nil(t, err)

	s := New(pool)
	t.Cleanup(s.Stop)
	return s, service
}

func TestAddJobValidation(t *testing.T) {
	s, _ := newTestSchedule(t)

	_, err := s.AddJob(Job{Method: "Beat"})
	assert.NotNil(t, err)

	_, err = s.AddJob(Job{Cron: "*/1 * * * * *"})
	assert.NotNil(t, err)

	// 非法cron表达式
	_, err = s.AddJob(Job{Cron: "not a cron", Method: "Beat"})
	assert.NotNil(t, err)

	id, err := s.AddJob(Job{Cron: "*/1 * * * * *", WeaveId: "heartbeat", Method: "Beat"})
	assert.Nil(t, err)
	s.RemoveJob(id)
}

func TestScheduledInvocation(t *testing.T) {
	s, service := newTestSchedule(t)

	_, err := s.AddJob(Job{Cron: "*/1 * * * * *", WeaveId: "heartbeat", Method: "Beat"})
	assert.Nil(t, err)
	s.Start()
	// 重复启动无副作用
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && atomic.LoadInt64(&service.beats) == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	s.Stop()
	assert.True(t, atomic.LoadInt64(&service.beats) > 0)
}

func TestJobAgainstMissingWeave(t *testing.T) {
	s, service := newTestSchedule(t)

	// 找不到织入单元时跳过执行，不触发调用
	_, err := s.AddJob(Job{Cron: "*/1 * * * * *", WeaveId: "missing", Method: "Beat"})
	assert.Nil(t, err)
	s.Start()
	time.Sleep(1200 * time.Millisecond)
	s.Stop()
	assert.Equal(t, int64(0), atomic.LoadInt64(&service.beats))
}
