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

import "errors"

const (
	Global = "global"
	// Vars weave dsl configuration vars key
	Vars = "vars"
	// Secrets weave dsl configuration secrets key
	Secrets = "secrets"
)

const (
	// NamespaceSeparator defines the separator for namespace prefixes
	NamespaceSeparator = ":"
	// ConfigurationPrefixInstanceId 组件配置里引用池内注册对象的前缀，例如："ref://userService"
	ConfigurationPrefixInstanceId = "ref://"
)

var (
	// ErrEngineNotInitialized is the error returned when the weaving engine is not initialized
	ErrEngineNotInitialized = errors.New("weaving engine not initialized")
	// ErrEngineDslEmpty is returned when the weave dsl is empty.
	ErrEngineDslEmpty = errors.New("dsl can not empty")
	ErrCacheNotInitialized = errors.New("cache not initialized")
)
