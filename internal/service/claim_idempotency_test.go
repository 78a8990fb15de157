package service

import (
	"context"
	"testing"
	"time"

	"minegame/internal/model"
	"minegame/pkg/signer"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试专用私钥，不要用于任何真实环境
const testClaimSignerKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newTestClaimService(t *testing.T) (*ClaimService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	cs, err := signer.NewClaimSigner(testClaimSignerKey)
	require.NoError(t, err)
	return NewClaimService(db, testServiceConfig(), fixedNonceReader{nonce: 5}, cs), mock
}

// 并发签发输家：INSERT 撞 (wallet, nonce) 唯一索引后整体回滚，
// 回读赢家的行并原样返回——同一个 nonce 永远只对应一份签名数据
func TestMintClaimConcurrentLoserReturnsWinnerSignature(t *testing.T) {
	svc, mock := newTestClaimService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT resource_type.*FROM `resource_events` WHERE player_id = \\?").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"resource_type", "total"}).AddRow("nickel", 10))
	mock.ExpectExec("INSERT INTO `claim_signatures`").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uk_wallet_nonce'"})
	mock.ExpectRollback()

	winner := sqlmock.NewRows([]string{"id", "claim_id", "wallet", "nonce", "amount", "signature", "message_hash", "used", "expires_at"}).
		AddRow(1, "CLM-WINNER", testWallet, 5, 10, "0xfeedface", "0xdigest", false, time.Now().Add(time.Hour))
	mock.ExpectQuery("SELECT \\* FROM `claim_signatures` WHERE wallet = \\? AND nonce = \\?").
		WithArgs(testWallet, uint64(5)).
		WillReturnRows(winner)

	player := &model.Player{ID: 7, Wallet: testWallet}
	result, err := svc.mintClaim(context.Background(), player, 5)
	require.NoError(t, err)
	assert.Equal(t, "CLM-WINNER", result.ClaimID)
	assert.Equal(t, "0xfeedface", result.Signature)
	assert.Equal(t, uint64(5), result.Nonce)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 临过期被链上消费、回调迟到的签名：确认必须成立，
// 否则清理任务会把已兑付的资源再退回一次
func TestConfirmClaimAfterExpiryStillMarksUsed(t *testing.T) {
	svc, mock := newTestClaimService(t)

	row := sqlmock.NewRows([]string{"id", "claim_id", "wallet", "used", "expires_at"}).
		AddRow(1, "CLM-LATE", testWallet, false, time.Now().Add(-5*time.Minute))
	mock.ExpectQuery("SELECT \\* FROM `claim_signatures` WHERE claim_id = \\?").
		WithArgs("CLM-LATE").
		WillReturnRows(row)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `claim_signatures` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.ConfirmClaim(context.Background(), "CLM-LATE", "0xtxref"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmClaimAlreadyUsed(t *testing.T) {
	svc, mock := newTestClaimService(t)

	row := sqlmock.NewRows([]string{"id", "claim_id", "wallet", "used", "expires_at"}).
		AddRow(1, "CLM-USED", testWallet, true, time.Now().Add(time.Hour))
	mock.ExpectQuery("SELECT \\* FROM `claim_signatures` WHERE claim_id = \\?").
		WithArgs("CLM-USED").
		WillReturnRows(row)

	err := svc.ConfirmClaim(context.Background(), "CLM-USED", "0xtxref")
	assert.ErrorIs(t, err, ErrClaimUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
