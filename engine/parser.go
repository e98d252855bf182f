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

package engine

import (
	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/json"
)

// JsonParser Json织入DSL解析器
type JsonParser struct {
}

// DecodeWeave 通过json解析织入结构体
func (p *JsonParser) DecodeWeave(config types.Config, dsl []byte) (types.Weave, error) {
	var def types.Weave
	err := json.Unmarshal(dsl, &def)
	return def, err
}

// DecodeAdvisor 通过json解析顾问结构体
func (p *JsonParser) DecodeAdvisor(config types.Config, dsl []byte) (types.AdvisorDsl, error) {
	var def types.AdvisorDsl
	err := json.Unmarshal(dsl, &def)
	return def, err
}

func (p *JsonParser) EncodeWeave(def interface{}) ([]byte, error) {
	if v, err := json.Marshal(def); err != nil {
		return nil, err
	} else {
		//格式化Json
		return json.Format(v)
	}
}

func (p *JsonParser) EncodeAdvisor(def interface{}) ([]byte, error) {
	if v, err := json.Marshal(def); err != nil {
		return nil, err
	} else {
		//格式化Json
		return json.Format(v)
	}
}
