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

// Package rest exposes the engine pool over HTTP: weave definition
// management, advisor inspection and dynamic proxy invocation.
// 包 rest 通过HTTP暴露引擎池：织入定义管理、顾问查看和动态代理调用。
package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/engine"
	"github.com/weavego/weavego/utils/json"
)

const (
	// ContentTypeKey 内容类型header键
	ContentTypeKey = "Content-Type"
	// JsonContextType json内容类型
	JsonContextType = "application/json"
)

// Rest HTTP管理端点
// 路由：
//
//	GET    /api/v1/weaves                         织入单元列表
//	POST   /api/v1/weaves/:id                     创建或者重载织入单元
//	GET    /api/v1/weaves/:id                     织入单元DSL
//	DELETE /api/v1/weaves/:id                     删除织入单元
//	GET    /api/v1/weaves/:id/proxies/:proxyId    代理的暴露面和顾问
//	POST   /api/v1/weaves/:id/proxies/:proxyId/invoke/:method  动态调用，body为JSON实参数组
type Rest struct {
	//Config 引擎配置
	Config types.Config
	//Pool 引擎池，nil使用默认池
	Pool *engine.Pool
	//Addr 服务地址，例如:":9090"
	Addr string

	router *httprouter.Router
	server *http.Server
}

// New 创建HTTP管理端点
func New(config types.Config, pool *engine.Pool, addr string) *Rest {
	if pool == nil {
		pool = engine.DefaultPool
	}
	r := &Rest{Config: config, Pool: pool, Addr: addr}
	r.router = httprouter.New()
	r.router.GET("/api/v1/weaves", r.listWeaves)
	r.router.GET("/api/v1/weaves/:id", r.getWeave)
	r.router.POST("/api/v1/weaves/:id", r.upsertWeave)
	r.router.DELETE("/api/v1/weaves/:id", r.deleteWeave)
	r.router.GET("/api/v1/weaves/:id/proxies/:proxyId", r.getProxy)
	r.router.POST("/api/v1/weaves/:id/proxies/:proxyId/invoke/:method", r.invoke)
	return r
}

// Router 底层路由器，用于挂载额外路由
func (r *Rest) Router() *httprouter.Router {
	return r.router
}

// Start 启动HTTP服务，阻塞直到服务退出
func (r *Rest) Start() error {
	r.server = &http.Server{
		Addr:              r.Addr,
		Handler:           r.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := r.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown 优雅停机
func (r *Rest) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

func (r *Rest) listWeaves(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	var ids []string
	r.Pool.Range(func(key, _ any) bool {
		if id, ok := key.(string); ok {
			ids = append(ids, id)
		}
		return true
	})
	writeJson(w, http.StatusOK, map[string]interface{}{"weaves": ids})
}

func (r *Rest) getWeave(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	e, ok := r.Pool.Get(params.ByName("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "weave not found")
		return
	}
	w.Header().Set(ContentTypeKey, JsonContextType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.DSL())
}

func (r *Rest) upsertWeave(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	dsl, err := io.ReadAll(req.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := params.ByName("id")
	if e, ok := r.Pool.Get(id); ok {
		err = e.ReloadSelf(dsl)
	} else {
		_, err = r.Pool.New(id, dsl, types.WithConfig(r.Config))
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (r *Rest) deleteWeave(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	r.Pool.Del(params.ByName("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (r *Rest) getProxy(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	e, ok := r.Pool.Get(params.ByName("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "weave not found")
		return
	}
	proxy, ok := e.Proxy(params.ByName("proxyId"))
	if !ok {
		writeError(w, http.StatusNotFound, "proxy not found")
		return
	}
	var methods []string
	for _, method := range proxy.Surface() {
		methods = append(methods, method.String())
	}
	var advisors []map[string]interface{}
	if advised, advisedOk := e.Advised(params.ByName("proxyId")); advisedOk {
		for _, advisor := range advised.Advisors() {
			advisors = append(advisors, map[string]interface{}{
				"id":     advisor.Id,
				"kind":   advisor.Kind,
				"aspect": advisor.Aspect,
				"order":  advisor.Order,
			})
		}
	}
	writeJson(w, http.StatusOK, map[string]interface{}{
		"id":       proxy.ID(),
		"kind":     proxy.Kind(),
		"target":   proxy.TargetType().String(),
		"methods":  methods,
		"advisors": advisors,
	})
}

func (r *Rest) invoke(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	e, ok := r.Pool.Get(params.ByName("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "weave not found")
		return
	}
	if !e.Initialized() {
		writeError(w, http.StatusServiceUnavailable, types.ErrEngineNotInitialized.Error())
		return
	}
	proxy, ok := e.Proxy(params.ByName("proxyId"))
	if !ok {
		writeError(w, http.StatusNotFound, "proxy not found")
		return
	}
	var args []interface{}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body) > 0 {
		if err = json.Unmarshal(body, &args); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	results, err := proxy.InvokeContext(req.Context(), params.ByName("method"), args...)
	if err != nil {
		writeJson(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"results": results,
			"error":   err.Error(),
		})
		return
	}
	writeJson(w, http.StatusOK, map[string]interface{}{"results": results})
}

func writeJson(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set(ContentTypeKey, JsonContextType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set(ContentTypeKey, JsonContextType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":` + encodeString(message) + `}`))
}

func encodeString(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return `"internal error"`
	}
	return string(data)
}
