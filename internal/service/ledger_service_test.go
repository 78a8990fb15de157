package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 缓存刷新的求和必须带 created_at <= 水位线：
// 求和执行期间并发提交的流水只能进后续增量，不能同时进快照
func TestRefreshCacheSumBoundedByWatermark(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewLedgerService(db, testServiceConfig())

	mock.ExpectQuery("SELECT resource_type.*FROM `resource_events` WHERE player_id = \\? AND created_at <= \\?").
		WithArgs(int64(7), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"resource_type", "total"}).AddRow("nickel", 12))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `players` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.RefreshCache(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 缓存口径 = 快照 + 水位线之后的增量，增量查询的水位线必须取
// 玩家行里存的 cache_at
func TestGetBalancesCachedAddsDeltaSinceCacheAt(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewLedgerService(db, testServiceConfig())

	cacheAt := time.Now().Add(-time.Hour)
	playerRows := sqlmock.NewRows([]string{"id", "wallet", "cached_balances", "cache_at"}).
		AddRow(7, testWallet, `{"nickel":5}`, cacheAt)
	mock.ExpectQuery("SELECT \\* FROM `players` WHERE id = \\?").
		WithArgs(int64(7)).
		WillReturnRows(playerRows)

	mock.ExpectQuery("SELECT resource_type.*FROM `resource_events` WHERE player_id = \\? AND created_at > \\?").
		WithArgs(int64(7), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"resource_type", "total"}).AddRow("nickel", 2))

	snapshot, err := svc.GetBalances(context.Background(), 7, false)
	require.NoError(t, err)
	assert.False(t, snapshot.Live)
	assert.Equal(t, int64(7), snapshot.Balances["nickel"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
