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
//   "id": "a8",
//   "type": "auth",
//   "configuration": {
//     "users": {"admin": "$2a$10$N9qo8uLOickgx2ZMRZoMye..."}
//   }
//}
import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/maps"
)

const (
	//PrincipalAttachmentKey 主体名在调用附件里的键
	PrincipalAttachmentKey = "$principal"
	//CredentialAttachmentKey 凭据在调用附件里的键
	CredentialAttachmentKey = "$credential"
)

// ErrUnauthenticated 调用未携带主体或者凭据
var ErrUnauthenticated = errors.New("unauthenticated invocation")

// ErrUnauthorized 主体未知或者凭据校验失败
var ErrUnauthorized = errors.New("unauthorized invocation")

// 注册组件
func init() {
	Registry.Add(&AuthAdvice{})
}

// AuthAdviceConfiguration 组件配置
type AuthAdviceConfiguration struct {
	//Users 主体名到bcrypt摘要的映射
	Users map[string]string
}

// AuthAdvice 鉴权通知
// 前置通知：从调用附件取主体和凭据，用bcrypt摘要校验。
// 校验失败时中止调用，目标方法不会执行
type AuthAdvice struct {
	//Config 组件配置
	Config AuthAdviceConfiguration
}

// Type 组件类型
func (a *AuthAdvice) Type() string {
	return "auth"
}

func (a *AuthAdvice) New() types.Component {
	return &AuthAdvice{}
}

// Init 初始化组件
func (a *AuthAdvice) Init(config types.Config, configuration types.Configuration) error {
	if err := maps.Map2Struct(configuration, &a.Config); err != nil {
		return err
	}
	if len(a.Config.Users) == 0 {
		return errors.New("users can not empty")
	}
	return nil
}

// Destroy 销毁组件
func (a *AuthAdvice) Destroy() {
}

// Before 调用前校验主体凭据
func (a *AuthAdvice) Before(invocation types.Invocation) error {
	principal, ok := attachmentString(invocation, PrincipalAttachmentKey)
	if !ok {
		return ErrUnauthenticated
	}
	credential, ok := attachmentString(invocation, CredentialAttachmentKey)
	if !ok {
		return ErrUnauthenticated
	}
	digest, ok := a.Config.Users[principal]
	if !ok {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(credential)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// HashCredential 生成凭据的bcrypt摘要，方便配置Users
func HashCredential(credential string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func attachmentString(invocation types.Invocation, key string) (string, bool) {
	if v, ok := invocation.Attachment(key); ok {
		if s, sOk := v.(string); sOk && s != "" {
			return s, true
		}
	}
	return "", false
}
