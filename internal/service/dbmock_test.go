package service

import (
	"context"
	"testing"

	"minegame/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWallet = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

// newMockDB 在 sqlmock 连接上构造 gorm 实例，SQL 按正则断言
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func testServiceConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				MiningResult:  "test.mining.result",
				SuspicionFlag: "test.anticheat.flag",
			},
		},
		Game: config.GameConfig{
			Mining: config.MiningConfig{
				MaxDistance:         50,
				CooldownSeconds:     2,
				RespawnDelaySeconds: 60,
				Resources: []config.ResourceRule{
					{Type: "nickel", DropRate: 0.8, MinAmount: 1, MaxAmount: 5},
				},
			},
			RateLimit: config.RateLimitConfig{WalletPerMinute: 30, IPPerMinute: 60},
			AntiCheat: config.AntiCheatConfig{MinSampleSize: 50, SuccessRateMargin: 0.15, MaxMoveSpeed: 20},
			Claim:     config.ClaimConfig{ExpireMinutes: 30, MaxPerClaim: 100000, TokenRates: map[string]int64{"nickel": 1}},
		},
	}
}

// fixedNonceReader 固定返回同一个 nonce 的测试实现
type fixedNonceReader struct {
	nonce uint64
}

func (r fixedNonceReader) NonceOf(ctx context.Context, wallet common.Address) (uint64, error) {
	return r.nonce, nil
}
