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
	"math"
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolSubmit(t *testing.T) {
	wp := &WorkerPool{MaxWorkersCount: math.MaxInt32}
	wp.Start()
	defer wp.Stop()

	var sum int64
	var wg sync.WaitGroup
	runTimes := 1000
	wg.Add(runTimes)
	for i := 0; i < runTimes; i++ {
		err := wp.Submit(func() {
			atomic.AddInt64(&sum, 1)
			wg.Done()
		})
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	wg.Wait()
	if got := atomic.LoadInt64(&sum); got != int64(runTimes) {
		t.Fatalf("expected %d tasks executed, got %d", runTimes, got)
	}
}

func TestWorkerPoolStop(t *testing.T) {
	wp := &WorkerPool{MaxWorkersCount: 4}
	wp.Start()
	wp.Stop()
	if err := wp.Submit(func() {}); !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("expected ErrPoolStopped after stop, got %v", err)
	}
}

func BenchmarkWorkerPoolSubmit(b *testing.B) {
	wp := &WorkerPool{MaxWorkersCount: math.MaxInt32}
	wp.Start()
	defer wp.Stop()
	b.ResetTimer()

	var wg sync.WaitGroup
	wg.Add(b.N)
	for i := 0; i < b.N; i++ {
		_ = wp.Submit(func() {
			wg.Done()
		})
	}
	wg.Wait()
}
