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

package types

// Weave 织入定义
// 一个织入单元由一组顾问和一组代理组成，通过JSON DSL描述
type Weave struct {
	//织入基础信息定义
	Weave WeaveBaseInfo `json:"weave"`
	//包含了织入单元中顾问和代理的信息
	Metadata WeaveMetadata `json:"metadata"`
}

// WeaveBaseInfo 织入基础信息定义
type WeaveBaseInfo struct {
	//织入单元ID
	ID string `json:"id"`
	//Name 织入单元的名称
	Name string `json:"name"`
	//Root 表示这个织入单元是否是根单元。(只做标记使用，非应用在实际逻辑)
	Root bool `json:"root"`
	//Disabled 表示这个织入单元是否被禁用
	Disabled bool `json:"disabled,omitempty"`
	//Configuration 织入单元配置信息，vars/secrets 配置放这里
	Configuration Configuration `json:"configuration,omitempty"`
	//扩展字段
	AdditionalInfo map[string]interface{} `json:"additionalInfo,omitempty"`
}

// WeaveMetadata 织入元数据定义，包含了织入单元中顾问和代理的信息
type WeaveMetadata struct {
	//代理入口序号，默认:0
	FirstProxyIndex int `json:"firstProxyIndex"`
	//顾问定义
	//每个对象代表织入单元中的一个顾问
	Advisors []*AdvisorDsl `json:"advisors"`
	//代理定义
	//每个对象代表织入单元中的一个代理
	Proxies []*ProxyDsl `json:"proxies"`
}

// AdvisorDsl 顾问信息定义
type AdvisorDsl struct {
	//顾问的唯一标识符，可以是任意字符串
	Id string `json:"id"`
	//通知组件的类型，决定了通知的逻辑和行为。它应该与注册的组件类型之一匹配。
	//引介顾问不需要配置
	Type string `json:"type,omitempty"`
	//顾问的名称，可以是任意字符串
	Name string `json:"name,omitempty"`
	//Aspect 顾问所属切面名，同切面内按声明顺序排序
	Aspect string `json:"aspect,omitempty"`
	//Order 优先级，越小越先执行。不配置表示最低优先级
	Order *int `json:"order,omitempty"`
	//ExposeInvocation 通知是否需要读取环境里的当前调用
	ExposeInvocation bool `json:"exposeInvocation,omitempty"`
	//包含了通知组件的配置参数，具体内容取决于组件类型。
	//例如，一个Js通知组件可能有一个`beforeScript`字段，定义了参数变换逻辑。
	Configuration Configuration `json:"configuration,omitempty"`
	//Pointcut 切入点定义，不配置表示作用于所有方法
	Pointcut *PointcutDsl `json:"pointcut,omitempty"`
	//Introduction 引介定义，配置后该顾问是引介顾问
	Introduction *IntroductionDsl `json:"introduction,omitempty"`
}

// PointcutDsl 切入点信息定义
type PointcutDsl struct {
	//Types 目标类型名模式，支持`*`通配符，例如："*UserService"
	Types string `json:"types,omitempty"`
	//Methods 方法名模式列表，支持`*`通配符，例如：["Find*","Get*"]
	Methods []string `json:"methods,omitempty"`
	//Expr 表达式匹配，expr表达式语言，例如："method.name startsWith 'Find'"
	Expr string `json:"expr,omitempty"`
	//Runtime 表达式是否携带实参在每次调用时评估
	Runtime bool `json:"runtime,omitempty"`
	//Matcher 自定义匹配器组件类型，配置后忽略以上快捷字段
	Matcher string `json:"matcher,omitempty"`
	//MatcherConfiguration 自定义匹配器组件配置
	MatcherConfiguration Configuration `json:"matcherConfiguration,omitempty"`
}

// IntroductionDsl 引介信息定义
type IntroductionDsl struct {
	//Types 目标类型名模式，支持`*`通配符，不配置表示所有类型
	Types string `json:"types,omitempty"`
	//Interfaces 引介的接口名列表，接口必须已注册到接口注册表
	Interfaces []string `json:"interfaces"`
	//Delegate 引介委托对象引用，例如："ref://greeterDelegate"
	Delegate string `json:"delegate"`
}

// ProxyDsl 代理信息定义
type ProxyDsl struct {
	//代理的唯一标识符，可以是任意字符串
	Id string `json:"id"`
	//代理的名称，可以是任意字符串
	Name string `json:"name,omitempty"`
	//Target 目标对象引用，例如："ref://userService"
	Target string `json:"target"`
	//Strategy 代理策略：interface、subclass。不配置则自动选择
	Strategy string `json:"strategy,omitempty"`
	//Interfaces 接口策略暴露的接口名列表，不配置则使用目标实现的所有已注册接口
	Interfaces []string `json:"interfaces,omitempty"`
	//ExposeProxy 是否在调用期间通过上下文暴露代理自身
	ExposeProxy bool `json:"exposeProxy,omitempty"`
	//Advisors 采用的顾问ID列表，不配置表示采用织入单元内所有合格顾问
	Advisors []string `json:"advisors,omitempty"`
}

// Parser 织入DSL解析器接口
type Parser interface {
	// DecodeWeave 从描述文件解析织入结构体
	//parses a weave from an input source.
	DecodeWeave(config Config, dsl []byte) (Weave, error)
	// DecodeAdvisor 从描述文件解析顾问结构体
	//parses an advisor from an input source.
	DecodeAdvisor(config Config, dsl []byte) (AdvisorDsl, error)
	//EncodeWeave 把织入结构体转换成描述文件
	EncodeWeave(def interface{}) ([]byte, error)
	//EncodeAdvisor 把顾问结构体转换成描述文件
	EncodeAdvisor(def interface{}) ([]byte, error)
}
