package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL 错误码
const (
	mysqlErrDuplicateKey    = 1062 // 唯一键冲突
	mysqlErrLockNowait      = 3572 // NOWAIT 拿不到行锁
	mysqlErrLockWaitTimeout = 1205 // 行锁等待超时
)

// IsDuplicateKey 判断是否唯一键冲突
// 兑换签名的 (wallet, nonce) 并发保护依赖这里：输家不报错，回读赢家
func IsDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDuplicateKey
	}
	return false
}

// IsLockUnavailable 判断是否行锁竞争失败
// 挖矿事务全部使用 FOR UPDATE NOWAIT，竞争方立即失败而不是排队
func IsLockUnavailable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrLockNowait || myErr.Number == mysqlErrLockWaitTimeout
	}
	return false
}
