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

package engine

import (
	"errors"
	"testing"

	"github.com/weavego/weavego/test/assert"
)

// lifecycleService 记录容器生命周期回调的调用次数
type lifecycleService struct {
	inits    int
	destroys int
	initErr  error
}

func (s *lifecycleService) OnInit() error {
	s.inits++
	return s.initErr
}

func (s *lifecycleService) OnDestroy() {
	s.destroys++
}

func TestInstanceRegistryLifecycle(t *testing.T) {
	registry := new(InstanceRegistry)

	service := &lifecycleService{}
	err := registry.Register("lifecycleService", service)
	assert.Nil(t, err)
	assert.Equal(t, 1, service.inits)

	instance, ok := registry.Get("lifecycleService")
	assert.True(t, ok)
	assert.True(t, instance.(*lifecycleService) == service)

	registry.Unregister("lifecycleService")
	assert.Equal(t, 1, service.destroys)
	_, ok = registry.Get("lifecycleService")
	assert.False(t, ok)

	// 重复删除不再触发销毁
	registry.Unregister("lifecycleService")
	assert.Equal(t, 1, service.destroys)
}

func TestInstanceRegistryInitFailure(t *testing.T) {
	registry := new(InstanceRegistry)

	boom := errors.New("init boom")
	service := &lifecycleService{initErr: boom}
	err := registry.Register("brokenService", service)
	assert.True(t, errors.Is(err, boom))

	// 初始化失败的实例不登记
	_, ok := registry.Get("brokenService")
	assert.False(t, ok)
}

func TestInstanceRegistryResolve(t *testing.T) {
	registry := new(InstanceRegistry)
	service := &lifecycleService{}
	assert.Nil(t, registry.Register("resolveService", service))
	defer registry.Unregister("resolveService")

	instance, err := registry.Resolve("ref://resolveService")
	assert.Nil(t, err)
	assert.True(t, instance.(*lifecycleService) == service)

	_, err = registry.Resolve("ref://missing")
	assert.NotNil(t, err)

	_, err = registry.Resolve("ref://")
	assert.NotNil(t, err)
}
