package repository

import (
	"context"
	"testing"
	"time"

	"minegame/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 节点锁定必须走 FOR UPDATE NOWAIT：竞争方拿不到锁时立即失败，
// 同一节点同一时刻最多一个赢家
func TestClaimForUpdateLockBusy(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNodeRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `resource_nodes` WHERE node_no = \\?.*FOR UPDATE NOWAIT").
		WithArgs("NODE001").
		WillReturnError(&mysql.MySQLError{Number: 3572, Message: "Statement aborted because lock(s) could not be acquired"})

	_, err := repo.ClaimForUpdate(context.Background(), db, "NODE001", 7, time.Now())
	assert.ErrorIs(t, err, ErrNodeLockBusy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimForUpdateNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNodeRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `resource_nodes` WHERE node_no = \\?.*FOR UPDATE NOWAIT").
		WithArgs("NODE404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.ClaimForUpdate(context.Background(), db, "NODE404", 7, time.Now())
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 拿到锁但状态已不是 AVAILABLE（赢家先一步锁定并提交）：
// 立即拒绝，不产生任何写入
func TestClaimForUpdateRejectsNonAvailable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNodeRepository(db)

	rows := sqlmock.NewRows([]string{"id", "node_no", "status", "resource_type", "amount"}).
		AddRow(1, "NODE001", model.NodeStatusClaimed, "nickel", 3)
	mock.ExpectQuery("SELECT \\* FROM `resource_nodes` WHERE node_no = \\?.*FOR UPDATE NOWAIT").
		WithArgs("NODE001").
		WillReturnRows(rows)

	_, err := repo.ClaimForUpdate(context.Background(), db, "NODE001", 7, time.Now())
	assert.ErrorIs(t, err, ErrNodeNotAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimForUpdateClaimsAvailableNode(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNodeRepository(db)

	rows := sqlmock.NewRows([]string{"id", "node_no", "status", "resource_type", "amount"}).
		AddRow(1, "NODE001", model.NodeStatusAvailable, "nickel", 3)
	mock.ExpectQuery("SELECT \\* FROM `resource_nodes` WHERE node_no = \\?.*FOR UPDATE NOWAIT").
		WithArgs("NODE001").
		WillReturnRows(rows)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `resource_nodes` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	node, err := repo.ClaimForUpdate(context.Background(), db, "NODE001", 7, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.NodeStatusClaimed, node.Status)
	assert.Equal(t, int64(7), node.ClaimedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}
