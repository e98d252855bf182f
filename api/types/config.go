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

package types

import (
	"math"
	"time"

	"github.com/weavego/weavego/api/pool"
)

// OnTrace is a global trace callback for weaving runtime events.
var OnTrace func(trace TraceEvent)

// Config defines the configuration for the weaving engine.
type Config struct {
	// OnTrace is a callback function for weaving runtime events. It is called
	// when an invocation enters a proxy (Phase=In) and when it unwinds
	// (Phase=Out, with Err and Duration populated).
	OnTrace func(trace TraceEvent)
	// ScriptMaxExecutionTime is the maximum execution time for scripts, defaulting to 2000 milliseconds.
	ScriptMaxExecutionTime time.Duration
	// Pool is the interface for a coroutine pool. If not configured, the go func method is used by default.
	// The default implementation is `pool.WorkerPool`. It is compatible with ants coroutine pool and can be implemented using ants.
	// Example:
	//   pool, _ := ants.NewPool(math.MaxInt32)
	//   config := weavego.NewConfig(types.WithPool(pool))
	Pool Pool
	// ComponentsRegistry is the advice/matcher component registry, defaulting to `weavego.Registry`.
	ComponentsRegistry ComponentRegistry
	// Parser is the weave DSL parser interface, defaulting to `weavego.JsonParser`.
	Parser Parser
	// Logger is the logging interface, defaulting to `DefaultLogger()`.
	Logger Logger
	// Properties are global properties in key-value format.
	// Weave DSL component configurations can replace values with ${global.propertyKey}.
	// Replacement occurs during component initialization and only once.
	Properties Metadata
	// Udf is a map for registering custom Golang functions and native scripts that can be called at runtime by script engines like JavaScript.
	// Function names can be repeated for different script types.
	Udf map[string]interface{}
	// SecretKey is an AES-256 key of 32 characters in length, used for decrypting the `Secrets` configuration in the weave DSL.
	SecretKey string
	// Interfaces is the candidate interface registry consulted by the
	// interface proxy strategy and the applicability engine, defaulting to
	// `DefaultInterfaceSet`.
	Interfaces *InterfaceSet
	// Cache is a global cache instance shared across all proxies in the pool, used for storing runtime shared data.
	Cache Cache
}

// RegisterUdf registers a custom function. Function names can be repeated for different script types.
func (c *Config) RegisterUdf(name string, value interface{}) {
	if c.Udf == nil {
		c.Udf = make(map[string]interface{})
	}
	if script, ok := value.(Script); ok {
		// Resolve function name conflicts for different script types.
		name = script.Type + ScriptFuncSeparator + name
	}
	c.Udf[name] = value
}

// NewConfig creates a new Config with default values and applies the provided options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		ScriptMaxExecutionTime: time.Millisecond * 2000,
		Logger:                 DefaultLogger(),
		Properties:             NewMetadata(),
		Interfaces:             DefaultInterfaceSet,
	}

	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}

// DefaultPool provides a default coroutine pool.
func DefaultPool() Pool {
	wp := &pool.WorkerPool{MaxWorkersCount: math.MaxInt32}
	wp.Start()
	return wp
}
