package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 快照求和必须以水位线为上界截断（created_at <= ?）：
// 水位线之后提交的流水只归增量查询管，两边各算一次、谁也不重复
func TestSumByPlayerUntilBoundsByWatermark(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)

	until := time.Now()
	mock.ExpectQuery("SELECT resource_type.*FROM `resource_events` WHERE player_id = \\? AND created_at <= \\? GROUP BY").
		WithArgs(int64(7), until).
		WillReturnRows(sqlmock.NewRows([]string{"resource_type", "total"}).
			AddRow("nickel", 12).
			AddRow("gold", 2))

	balances, err := repo.SumByPlayerUntil(context.Background(), 7, until)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"nickel": 12, "gold": 2}, balances)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 增量求和是严格大于（created_at > ?），与快照的 <= 恰好拼成全量
func TestSumByPlayerSinceExcludesWatermark(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)

	since := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT resource_type.*FROM `resource_events` WHERE player_id = \\? AND created_at > \\? GROUP BY").
		WithArgs(int64(7), since).
		WillReturnRows(sqlmock.NewRows([]string{"resource_type", "total"}).
			AddRow("nickel", 3))

	delta, err := repo.SumByPlayerSince(context.Background(), 7, since)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"nickel": 3}, delta)
	assert.NoError(t, mock.ExpectationsWereMet())
}
