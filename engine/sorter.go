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

package engine

import (
	"sort"

	"github.com/weavego/weavego/api/types"
)

// SortAdvisors 按偏序约束拓扑排序顾问
//
// 约束来源有两条：同一切面内的顾问按声明顺序排列；不同切面的顾问按
// Order 排列，Order 小的在前（更靠近调用方）。两条约束都不覆盖的顾问
// 对保持输入相对顺序。约束之间可能拼出环，拼出环时放弃拓扑排序，退化
// 为按 Order 的稳定排序
//
// 返回新切片，不修改输入
func SortAdvisors(advisors []*types.Advisor) []*types.Advisor {
	n := len(advisors)
	out := make([]*types.Advisor, n)
	copy(out, advisors)
	if n < 2 {
		return out
	}

	// 邻接矩阵和入度，n很小，O(n²)构建
	edges := make([][]bool, n)
	indegree := make([]int, n)
	for i := range edges {
		edges[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if precedes(advisors[i], advisors[j]) {
				if !edges[i][j] {
					edges[i][j] = true
					indegree[j]++
				}
			}
		}
	}

	// Kahn：就绪集合里取输入序号最小的，保证无约束对保持输入顺序
	sorted := make([]*types.Advisor, 0, n)
	done := make([]bool, n)
	for len(sorted) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			// 约束成环，退化为按 Order 的稳定排序
			fallback := make([]*types.Advisor, n)
			copy(fallback, advisors)
			sort.SliceStable(fallback, func(i, j int) bool {
				return fallback[i].Order < fallback[j].Order
			})
			return fallback
		}
		done[next] = true
		sorted = append(sorted, advisors[next])
		for j := 0; j < n; j++ {
			if edges[next][j] {
				edges[next][j] = false
				indegree[j]--
			}
		}
	}
	return sorted
}

// precedes a 是否必须排在 b 前面
// 同切面按声明顺序，跨切面按 Order；相等则无约束
func precedes(a, b *types.Advisor) bool {
	if a.Aspect != "" && a.Aspect == b.Aspect {
		return a.Declaration < b.Declaration
	}
	return a.Order < b.Order
}
