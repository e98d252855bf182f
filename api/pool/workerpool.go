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

package pool

import (
	"errors"
	"runtime"
	"sync"
	"time"
)

// ErrPoolStopped is returned when a task is submitted to a stopped pool.
var ErrPoolStopped = errors.New("worker pool is stopped")

// WorkerPool 协程池，复用worker goroutine执行任务
// 空闲worker按LIFO保存，定期清理超过MaxIdleWorkerDuration未使用的worker
type WorkerPool struct {
	//MaxWorkersCount 最大worker数量，0表示不限制
	MaxWorkersCount int
	//MaxIdleWorkerDuration worker空闲回收时间，默认10秒
	MaxIdleWorkerDuration time.Duration

	lock         sync.Mutex
	workersCount int
	mustStop     bool
	ready        []*workerChan
	stopCh       chan struct{}
	workerPool   sync.Pool
}

type workerChan struct {
	lastUseTime time.Time
	ch          chan func()
}

// Start 启动协程池和空闲worker清理协程
func (wp *WorkerPool) Start() {
	if wp.stopCh != nil {
		return
	}
	wp.stopCh = make(chan struct{})
	stopCh := wp.stopCh
	wp.workerPool.New = func() interface{} {
		return &workerChan{
			ch: make(chan func(), workerChanCap),
		}
	}
	go func() {
		var scratch []*workerChan
		for {
			wp.clean(&scratch)
			select {
			case <-stopCh:
				return
			default:
				time.Sleep(wp.maxIdleWorkerDuration())
			}
		}
	}()
}

// Stop 停止协程池，空闲worker退出，正在执行的任务完成后worker退出
func (wp *WorkerPool) Stop() {
	if wp.stopCh == nil {
		return
	}
	close(wp.stopCh)
	wp.stopCh = nil

	wp.lock.Lock()
	ready := wp.ready
	for i := range ready {
		ready[i].ch <- nil
		ready[i] = nil
	}
	wp.ready = ready[:0]
	wp.mustStop = true
	wp.lock.Unlock()
}

// Release 实现 types.Pool 接口
func (wp *WorkerPool) Release() {
	wp.Stop()
}

// Submit 提交一个任务，协程池满时返回错误
func (wp *WorkerPool) Submit(task func()) error {
	ch := wp.getCh()
	if ch == nil {
		if wp.mustStop {
			return ErrPoolStopped
		}
		return errors.New("worker pool is full")
	}
	ch.ch <- task
	return nil
}

var workerChanCap = func() int {
	// Use blocking workerChan if GOMAXPROCS=1.
	if runtime.GOMAXPROCS(0) == 1 {
		return 0
	}
	return 1
}()

func (wp *WorkerPool) maxIdleWorkerDuration() time.Duration {
	if wp.MaxIdleWorkerDuration <= 0 {
		return 10 * time.Second
	}
	return wp.MaxIdleWorkerDuration
}

func (wp *WorkerPool) clean(scratch *[]*workerChan) {
	maxIdleWorkerDuration := wp.maxIdleWorkerDuration()
	criticalTime := time.Now().Add(-maxIdleWorkerDuration)

	wp.lock.Lock()
	ready := wp.ready
	n := len(ready)
	i := 0
	for i < n && criticalTime.After(ready[i].lastUseTime) {
		i++
	}
	*scratch = append((*scratch)[:0], ready[:i]...)
	if i > 0 {
		m := copy(ready, ready[i:])
		for i = m; i < n; i++ {
			ready[i] = nil
		}
		wp.ready = ready[:m]
	}
	wp.lock.Unlock()

	tmp := *scratch
	for i := range tmp {
		tmp[i].ch <- nil
		tmp[i] = nil
	}
}

func (wp *WorkerPool) getCh() *workerChan {
	var ch *workerChan
	createWorker := false

	wp.lock.Lock()
	ready := wp.ready
	n := len(ready) - 1
	if n < 0 {
		if !wp.mustStop && (wp.MaxWorkersCount <= 0 || wp.workersCount < wp.MaxWorkersCount) {
			createWorker = true
			wp.workersCount++
		}
	} else {
		ch = ready[n]
		ready[n] = nil
		wp.ready = ready[:n]
	}
	wp.lock.Unlock()

	if ch == nil {
		if !createWorker {
			return nil
		}
		vch := wp.workerPool.Get()
		ch = vch.(*workerChan)
		go func() {
			wp.workerFunc(ch)
			wp.workerPool.Put(vch)
		}()
	}
	return ch
}

func (wp *WorkerPool) release(ch *workerChan) bool {
	ch.lastUseTime = time.Now()
	wp.lock.Lock()
	if wp.mustStop {
		wp.lock.Unlock()
		return false
	}
	wp.ready = append(wp.ready, ch)
	wp.lock.Unlock()
	return true
}

func (wp *WorkerPool) workerFunc(ch *workerChan) {
	for task := range ch.ch {
		if task == nil {
			break
		}
		task()
		if !wp.release(ch) {
			break
		}
	}
	wp.lock.Lock()
	wp.workersCount--
	wp.lock.Unlock()
}
