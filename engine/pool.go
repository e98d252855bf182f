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
	"log"
	"strings"
	"sync"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/fs"
	"github.com/weavego/weavego/utils/str"
)

var _ types.ProxyEnginePool = (*Pool)(nil)

// DefaultPool 引擎池的默认全局实例
var DefaultPool = &Pool{}

// Pool 代理引擎实例池
// 集中管理多个织入引擎：从文件系统批量加载、按ID存取、
// 批量重载和停机。条目存取是并发安全的
type Pool struct {
	//entries ID到*ProxyEngine的并发映射
	entries sync.Map
	//Callbacks 生命周期回调钩子
	Callbacks types.Callbacks
}

// NewPool 创建引擎池
func NewPool() *Pool {
	return &Pool{}
}

// Load 从指定文件夹及其子文件夹加载所有织入定义到池中
// 引擎ID取自定义文件的weave.id
func (g *Pool) Load(folderPath string, opts ...types.ProxyEngineOption) error {
	if !strings.HasSuffix(folderPath, "*.json") && !strings.HasSuffix(folderPath, "*.JSON") {
		if strings.HasSuffix(folderPath, "/") || strings.HasSuffix(folderPath, "\\") {
			folderPath = folderPath + "*.json"
		} else if folderPath == "" {
			folderPath = "./*.json"
		} else {
			folderPath = folderPath + "/*.json"
		}
	}
	paths, err := fs.GetFilePaths(folderPath)
	if err != nil {
		return err
	}
	for _, path := range paths {
		b := fs.LoadFile(path)
		if b != nil {
			if e, err := g.New("", b, opts...); err != nil {
				log.Println("Load weave error:", err)
			} else {
				if g.Callbacks.OnNew != nil {
					g.Callbacks.OnNew(e.Id(), b)
				}
			}
		}
	}
	return nil
}

// New 创建引擎并存入池。id为空时使用weave.id
func (g *Pool) New(id string, dsl []byte, opts ...types.ProxyEngineOption) (types.ProxyEngine, error) {
	if v, ok := g.entries.Load(id); ok {
		return v.(*ProxyEngine), nil
	}
	engine, err := NewProxyEngine(id, dsl, opts...)
	if err != nil {
		return nil, err
	}
	if engine.Id() != "" {
		g.entries.Store(engine.Id(), engine)
	}
	if g.Callbacks.OnUpdated != nil {
		engine.OnUpdated = g.Callbacks.OnUpdated
	}
	if g.Callbacks.OnNew != nil {
		g.Callbacks.OnNew(engine.Id(), dsl)
	}
	return engine, nil
}

// Get 按ID取引擎
func (g *Pool) Get(id string) (types.ProxyEngine, bool) {
	v, ok := g.entries.Load(id)
	if ok {
		return v.(*ProxyEngine), ok
	}
	return nil, false
}

// Del 按ID停止并删除引擎
func (g *Pool) Del(id string) {
	v, ok := g.entries.Load(id)
	if ok {
		v.(*ProxyEngine).Stop()
		g.entries.Delete(id)
		if g.Callbacks.OnDeleted != nil {
			g.Callbacks.OnDeleted(id)
		}
	}
}

// Stop 停止并释放池内所有引擎
func (g *Pool) Stop() {
	g.entries.Range(func(key, value any) bool {
		if item, ok := value.(*ProxyEngine); ok {
			item.Stop()
		}
		g.entries.Delete(key)
		if g.Callbacks.OnDeleted != nil {
			g.Callbacks.OnDeleted(str.ToString(key))
		}
		return true
	})
}

// Range 遍历池内所有引擎
func (g *Pool) Range(f func(key, value any) bool) {
	g.entries.Range(f)
}

// Reload 重载池内所有引擎
func (g *Pool) Reload(opts ...types.ProxyEngineOption) {
	g.entries.Range(func(key, value any) bool {
		_ = value.(*ProxyEngine).Reload(opts...)
		return true
	})
}

// SetCallbacks 设置生命周期回调
func (g *Pool) SetCallbacks(callbacks types.Callbacks) {
	g.Callbacks = callbacks
}

// Load 加载指定文件夹的织入定义到默认池
func Load(folderPath string, opts ...types.ProxyEngineOption) error {
	return DefaultPool.Load(folderPath, opts...)
}

// New 在默认池创建引擎
func New(id string, dsl []byte, opts ...types.ProxyEngineOption) (types.ProxyEngine, error) {
	return DefaultPool.New(id, dsl, opts...)
}

// Get 从默认池按ID取引擎
func Get(id string) (types.ProxyEngine, bool) {
	return DefaultPool.Get(id)
}

// Del 从默认池按ID删除引擎
func Del(id string) {
	DefaultPool.Del(id)
}

// Stop 释放默认池内所有引擎
func Stop() {
	DefaultPool.Stop()
}

// Reload 重载默认池内所有引擎
func Reload(opts ...types.ProxyEngineOption) {
	DefaultPool.Reload(opts...)
}

// Range 遍历默认池内所有引擎
func Range(f func(key, value any) bool) {
	DefaultPool.Range(f)
}
