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
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/fs"
)

// Watcher 织入定义文件监听器
// 监听文件夹里的json定义文件，变更后把新定义热重载进池。
// 编辑器保存经常触发连续多个事件，按文件做去抖
type Watcher struct {
	//pool 变更应用到的引擎池
	pool *Pool
	//config 新建引擎使用的配置
	config types.Config
	//watcher 底层文件系统监听器
	watcher *fsnotify.Watcher
	//debounce 去抖时长
	debounce time.Duration
	//timers 文件路径到去抖定时器
	timers sync.Map
	//stopOnce 保证Stop幂等
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWatcher 创建监听器，folderPath 必须已经被 pool.Load 加载过或者即将加载
func NewWatcher(pool *Pool, config types.Config) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = DefaultPool
	}
	if config.Parser == nil {
		config.Parser = &JsonParser{}
	}
	if config.Logger == nil {
		config.Logger = types.DefaultLogger()
	}
	return &Watcher{
		pool:     pool,
		config:   config,
		watcher:  fsWatcher,
		debounce: time.Second,
		stopCh:   make(chan struct{}),
	}, nil
}

// Watch 开始监听文件夹，非阻塞
func (w *Watcher) Watch(folderPath string) error {
	if err := w.watcher.Add(folderPath); err != nil {
		return err
	}
	go w.watchLoop()
	return nil
}

// Stop 停止监听
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isWeaveFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.scheduleReload(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("weave watcher error: %s", err.Error())
		case <-w.stopCh:
			return
		}
	}
}

// scheduleReload 去抖后重载一个定义文件
func (w *Watcher) scheduleReload(path string) {
	if v, ok := w.timers.Load(path); ok {
		v.(*time.Timer).Stop()
	}
	timer := time.AfterFunc(w.debounce, func() {
		w.timers.Delete(path)
		w.reloadFile(path)
	})
	w.timers.Store(path, timer)
}

func (w *Watcher) reloadFile(path string) {
	dsl := fs.LoadFile(path)
	if dsl == nil {
		return
	}
	def, err := w.config.Parser.DecodeWeave(w.config, dsl)
	if err != nil {
		w.config.Logger.Printf("weave watcher decode %s error: %s", path, err.Error())
		return
	}
	if engine, ok := w.pool.Get(def.Weave.ID); ok {
		err = engine.ReloadSelf(dsl)
	} else {
		_, err = w.pool.New(def.Weave.ID, dsl, types.WithConfig(w.config))
	}
	if err != nil {
		w.config.Logger.Printf("weave watcher reload %s error: %s", path, err.Error())
	}
}

func isWeaveFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".json"
}
