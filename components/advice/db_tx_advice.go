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
//   "id": "a5",
//   "type": "dbTx",
//   "configuration": {
//     "driverName": "mysql",
//     "dsn": "root:root@tcp(127.0.0.1:3306)/test"
//   }
//}
import (
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/weavego/weavego/api/types"
	"github.com/weavego/weavego/utils/maps"
)

// TxAttachmentKey 事务在调用附件里的键，内层通过 CurrentTx 读取
const TxAttachmentKey = "$tx"

// 注册组件
func init() {
	Registry.Add(&DbTxAdvice{})
}

// DbTxAdviceConfiguration 组件配置
type DbTxAdviceConfiguration struct {
	// DriverName 数据库驱动名称，mysql或postgres
	DriverName string
	// Dsn 数据库连接配置，参考sql.Open参数
	Dsn string
	// PoolSize 连接池大小
	PoolSize int
}

// DbTxAdvice 数据库事务通知
// 环绕拦截器：放行前 Begin，正常返回后 Commit，出错或者 panic 时 Rollback。
// 事务通过附件传给目标方法和内层通知。已经处于事务中时直接放行，
// 即事务向内层调用传播而不嵌套开启
type DbTxAdvice struct {
	//Config 组件配置
	Config DbTxAdviceConfiguration
	client *sql.DB
}

// Type 组件类型
func (a *DbTxAdvice) Type() string {
	return "dbTx"
}

func (a *DbTxAdvice) New() types.Component {
	return &DbTxAdvice{Config: DbTxAdviceConfiguration{
		DriverName: "mysql",
		Dsn:        "root:root@tcp(127.0.0.1:3306)/test",
	}}
}

// Init 初始化组件
func (a *DbTxAdvice) Init(config types.Config, configuration types.Configuration) error {
	if err := maps.Map2Struct(configuration, &a.Config); err != nil {
		return err
	}
	if a.Config.DriverName == "" {
		a.Config.DriverName = "mysql"
	}
	if a.Config.Dsn == "" {
		return errors.New("dsn can not empty")
	}
	client, err := sql.Open(a.Config.DriverName, a.Config.Dsn)
	if err != nil {
		return err
	}
	if a.Config.PoolSize > 0 {
		client.SetMaxOpenConns(a.Config.PoolSize)
		client.SetMaxIdleConns(a.Config.PoolSize / 2)
	}
	a.client = client
	return nil
}

// Destroy 销毁组件
func (a *DbTxAdvice) Destroy() {
	if a.client != nil {
		_ = a.client.Close()
		a.client = nil
	}
}

// Invoke 事务环绕
func (a *DbTxAdvice) Invoke(invocation types.Invocation) (results []interface{}, err error) {
	if _, ok := invocation.Attachment(TxAttachmentKey); ok {
		// 已经在事务里，直接传播
		return invocation.Proceed()
	}
	tx, err := a.client.BeginTx(invocation.Context(), nil)
	if err != nil {
		return nil, err
	}
	invocation.SetAttachment(TxAttachmentKey, tx)
	defer func() {
		if caught := recover(); caught != nil {
			_ = tx.Rollback()
			panic(caught)
		}
	}()
	results, err = invocation.Proceed()
	if err != nil {
		_ = tx.Rollback()
		return results, err
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return nil, commitErr
	}
	return results, nil
}

// CurrentTx 从调用里取当前事务，没有开启事务时返回 false
func CurrentTx(invocation types.Invocation) (*sql.Tx, bool) {
	if v, ok := invocation.Attachment(TxAttachmentKey); ok {
		if tx, txOk := v.(*sql.Tx); txOk {
			return tx, true
		}
	}
	return nil, false
}
