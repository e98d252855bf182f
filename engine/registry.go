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
	"errors"
	"fmt"
	"plugin"
	"strings"
	"sync"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/components/advice"
	"github.com/weavego/weavego/components/matcher"
)

// PluginsSymbol is the symbol used to identify plugins in a Go plugin file.
const PluginsSymbol = "Plugins"

// Registry is the default registry for advice and matcher components.
var Registry = new(WeaveComponentRegistry)

// init registers default components to the default component registry.
func init() {
	var components []types.Component
	components = append(components, advice.Registry.Components()...)
	components = append(components, matcher.Registry.Components()...)

	for _, component := range components {
		_ = Registry.Register(component)
	}
}

// WeaveComponentRegistry 组件注册器
// 登记通知组件和匹配器组件，织入DSL按 type 字段创建组件实例
type WeaveComponentRegistry struct {
	// components is a map of registered components.
	components map[string]types.Component
	// plugins is a map of plugin components.
	plugins map[string][]types.Component
	sync.RWMutex
}

// Register adds a component to the registry.
func (r *WeaveComponentRegistry) Register(component types.Component) error {
	r.Lock()
	defer r.Unlock()
	if r.components == nil {
		r.components = make(map[string]types.Component)
	}
	if _, ok := r.components[component.Type()]; ok {
		return errors.New("the component already exists. componentType=" + component.Type())
	}
	r.components[component.Type()] = component
	return nil
}

// RegisterPlugin adds components from a Go plugin file.
func (r *WeaveComponentRegistry) RegisterPlugin(name string, file string) error {
	builder := &PluginComponentRegistry{name: name, file: file}
	if err := builder.Init(); err != nil {
		return err
	}
	components := builder.Components()

	r.Lock()
	defer r.Unlock()

	for _, component := range components {
		if _, ok := r.components[component.Type()]; ok {
			return errors.New("the component already exists. componentType=" + component.Type())
		}
	}
	if r.components == nil {
		r.components = make(map[string]types.Component)
	}
	if r.plugins == nil {
		r.plugins = make(map[string][]types.Component)
	}
	for _, component := range components {
		r.components[component.Type()] = component
	}
	r.plugins[name] = components
	return nil
}

// Unregister removes a component from the registry by its type or plugin name.
func (r *WeaveComponentRegistry) Unregister(componentType string) error {
	r.Lock()
	defer r.Unlock()
	var removed = false

	if components, ok := r.plugins[componentType]; ok {
		for _, component := range components {
			delete(r.components, component.Type())
		}
		delete(r.plugins, componentType)
		removed = true
	}
	if _, ok := r.components[componentType]; ok {
		delete(r.components, componentType)
		removed = true
	}

	if !removed {
		return fmt.Errorf("component not found. componentType=%s", componentType)
	}
	return nil
}

// NewComponent creates a new instance of a component by its type.
func (r *WeaveComponentRegistry) NewComponent(componentType string) (types.Component, error) {
	r.RLock()
	defer r.RUnlock()
	if component, ok := r.components[componentType]; ok {
		return component.New(), nil
	}
	return nil, fmt.Errorf("component not found. componentType=%s", componentType)
}

// GetComponents returns a map of all registered components.
func (r *WeaveComponentRegistry) GetComponents() map[string]types.Component {
	r.RLock()
	defer r.RUnlock()
	var components = map[string]types.Component{}
	for k, v := range r.components {
		components[k] = v
	}
	return components
}

// PluginComponentRegistry is an initializer for Go plugin components.
type PluginComponentRegistry struct {
	name     string
	file     string
	registry types.PluginRegistry
}

// Init initializes the plugin component registry by loading the plugin from a file.
func (p *PluginComponentRegistry) Init() error {
	pluginRegistry, err := loadPlugin(p.file)
	if err != nil {
		return err
	}
	p.registry = pluginRegistry
	return nil
}

// Components returns a slice of components provided by the plugin.
func (p *PluginComponentRegistry) Components() []types.Component {
	if p.registry != nil {
		return p.registry.Components()
	}
	return nil
}

// loadPlugin loads a plugin from a file
func loadPlugin(file string) (types.PluginRegistry, error) {
	p, err := plugin.Open(file)
	if err != nil {
		return nil, err
	}
	sym, err := p.Lookup(PluginsSymbol)
	if err != nil {
		return nil, err
	}
	pluginRegistry, ok := sym.(types.PluginRegistry)
	if !ok {
		return nil, errors.New("invalid plugin")
	}
	return pluginRegistry, nil
}

// Instances 实例注册表
// 织入DSL通过 "ref://name" 引用这里登记的目标对象和引介委托对象
var Instances = new(InstanceRegistry)

// InstanceRegistry 命名实例注册表
type InstanceRegistry struct {
	instances sync.Map
}

// Register 登记命名实例，重名覆盖
// 实现 types.Initializable 的实例先完成初始化，初始化失败不登记
func (r *InstanceRegistry) Register(name string, instance interface{}) error {
	if initializable, ok := instance.(types.Initializable); ok {
		if err := initializable.OnInit(); err != nil {
			return err
		}
	}
	r.instances.Store(name, instance)
	return nil
}

// Get 按名字取实例
func (r *InstanceRegistry) Get(name string) (interface{}, bool) {
	return r.instances.Load(name)
}

// Unregister 删除命名实例，实现 types.Disposable 的实例删除时销毁
func (r *InstanceRegistry) Unregister(name string) {
	if instance, ok := r.instances.LoadAndDelete(name); ok {
		if disposable, ok := instance.(types.Disposable); ok {
			disposable.OnDestroy()
		}
	}
}

// Resolve 解析 "ref://name" 形式的实例引用
func (r *InstanceRegistry) Resolve(ref string) (interface{}, error) {
	name := strings.TrimPrefix(ref, types.ConfigurationPrefixInstanceId)
	if name == "" {
		return nil, fmt.Errorf("empty instance reference: %q", ref)
	}
	if instance, ok := r.Get(name); ok {
		return instance, nil
	}
	return nil, fmt.Errorf("instance not found. name=%s", name)
}
