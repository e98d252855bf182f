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

// ProxyEngineOption defines a function type for configuring a ProxyEngine.
type ProxyEngineOption func(ProxyEngine) error

// WithConfig creates a ProxyEngineOption to set the configuration of a ProxyEngine.
func WithConfig(config Config) ProxyEngineOption {
	return func(pe ProxyEngine) error {
		pe.SetConfig(config)
		return nil
	}
}

// ProxyEngine is the runtime of one weave definition: it owns the proxies the
// definition declares and supports hot reload of the definition.
type ProxyEngine interface {
	// Id returns the identifier of the ProxyEngine.
	Id() string
	// SetConfig sets the configuration for the ProxyEngine.
	SetConfig(config Config)
	// Reload reloads the ProxyEngine with the given options.
	Reload(opts ...ProxyEngineOption) error
	// ReloadSelf reloads the ProxyEngine itself with the given definition and options.
	ReloadSelf(def []byte, opts ...ProxyEngineOption) error
	// DSL returns the DSL representation of the ProxyEngine.
	DSL() []byte
	// Definition returns the weave definition.
	Definition() Weave
	// Proxy retrieves a woven proxy by its definition ID.
	Proxy(proxyId string) (Proxy, bool)
	// RootProxy returns the entry proxy, selected by firstProxyIndex.
	RootProxy() Proxy
	// Advised retrieves the management view of a proxy by its definition ID.
	Advised(proxyId string) (Advised, bool)
	// Initialized checks if the ProxyEngine is initialized.
	Initialized() bool
	// Stop stops the ProxyEngine and releases component resources.
	Stop()
}

// Callbacks 引擎池生命周期回调
type Callbacks struct {
	// OnNew is triggered after a new engine instance is created.
	OnNew func(id string, dsl []byte)
	// OnUpdated is triggered after an engine definition is reloaded.
	OnUpdated func(id string, dsl []byte)
	// OnDeleted is triggered after an engine instance is removed.
	OnDeleted func(id string)
}

// ProxyEnginePool is an interface for a pool of proxy engines.
type ProxyEnginePool interface {
	// Load loads all weave configurations from a specified folder and its subfolders into the proxy engine instance pool.
	Load(folderPath string, opts ...ProxyEngineOption) error
	// New creates a new ProxyEngine and stores it in the pool.
	New(id string, dsl []byte, opts ...ProxyEngineOption) (ProxyEngine, error)
	// Get retrieves a ProxyEngine by its ID.
	Get(id string) (ProxyEngine, bool)
	// Del deletes a ProxyEngine instance by its ID.
	Del(id string)
	// Stop stops and releases all ProxyEngine instances.
	Stop()
	// Reload reloads all ProxyEngine instances.
	Reload(opts ...ProxyEngineOption)
	// Range iterates over all ProxyEngine instances.
	Range(f func(key, value any) bool)
}
