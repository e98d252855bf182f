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

package advice

//织入DSL顾问配置示例：
//{
//   "id": "a2",
//   "type": "cache",
//   "configuration": {
//     "ttl": "10m"
//   }
//}
import (
	"fmt"
	"time"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/cache"
	"github.com/weavego/weavego/utils/maps"
)

// 注册组件
func init() {
	Registry.Add(&CacheAdvice{})
}

// CacheAdviceConfiguration 组件配置
type CacheAdviceConfiguration struct {
	//Ttl 缓存过期时长，例如"10m"、"1h"，空或者"0"表示不过期
	Ttl string
	//Prefix 缓存键前缀，默认组件类型
	Prefix string
}

// CacheAdvice 缓存通知
// 环绕拦截器：命中缓存时零次 proceed 短路返回，未命中时放行并在成功
// 返回后写缓存。缓存键由目标类型、方法名和实参拼出。错误不缓存
type CacheAdvice struct {
	//Config 组件配置
	Config CacheAdviceConfiguration
	store  types.Cache
}

// Type 组件类型
func (a *CacheAdvice) Type() string {
	return "cache"
}

func (a *CacheAdvice) New() types.Component {
	return &CacheAdvice{Config: CacheAdviceConfiguration{
		Prefix: "cache",
	}}
}

// Init 初始化
// 优先使用全局缓存，未配置时退化为组件私有的内存缓存
// 通过命名空间隔离本组件写入的键，共享缓存时互不干扰
func (a *CacheAdvice) Init(config types.Config, configuration types.Configuration) error {
	if err := maps.Map2Struct(configuration, &a.Config); err != nil {
		return err
	}
	base := config.Cache
	if base == nil {
		base = cache.NewMemoryCache(time.Minute * 5)
	}
	a.store = cache.NewNamespaceCache(base, a.Config.Prefix+":")
	return nil
}

// Destroy 销毁，清掉本组件命名空间下的所有键
func (a *CacheAdvice) Destroy() {
	if a.store != nil {
		_ = a.store.DeleteByPrefix("")
	}
}

// Invoke 环绕缓存
func (a *CacheAdvice) Invoke(invocation types.Invocation) ([]interface{}, error) {
	key := a.cacheKey(invocation)
	if cached := a.store.Get(key); cached != nil {
		if results, ok := cached.([]interface{}); ok {
			// 短路：不 proceed，直接返回缓存结果
			return results, nil
		}
	}
	results, err := invocation.Proceed()
	if err != nil {
		return results, err
	}
	_ = a.store.Set(key, results, a.Config.Ttl)
	return results, nil
}

func (a *CacheAdvice) cacheKey(invocation types.Invocation) string {
	return fmt.Sprintf("%s.%s(%v)", invocation.TargetType().String(), invocation.Method().Name, invocation.Arguments())
}
