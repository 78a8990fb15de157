package service

import (
	"testing"
	"time"

	"minegame/internal/config"
	"minegame/internal/infrastructure/ratelimit"
	"minegame/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAntiCheatConfig() *config.AntiCheatConfig {
	return &config.AntiCheatConfig{
		MinSampleSize:     50,
		SuccessRateMargin: 0.15,
		MaxMoveSpeed:      20,
	}
}

func TestEvaluateStatsSuccessRate(t *testing.T) {
	ac := testAntiCheatConfig()
	now := time.Now()

	t.Run("样本量不足不判定", func(t *testing.T) {
		// 10 连胜，样本量远低于下限
		prev := &ratelimit.WalletStats{Attempts: 9, Successes: 9}
		hits := evaluateStats(ac, 0.8, prev, true, 0, 0, now)
		assert.Empty(t, hits)
	})

	t.Run("成功率超阈值标记", func(t *testing.T) {
		// 100 次尝试全部成功，远超 0.8 + 0.15
		prev := &ratelimit.WalletStats{Attempts: 99, Successes: 99}
		hits := evaluateStats(ac, 0.8, prev, true, 0, 0, now)
		require.Len(t, hits, 1)
		assert.Equal(t, model.SuspicionReasonSuccessRate, hits[0].Reason)
	})

	t.Run("成功率在容差内不标记", func(t *testing.T) {
		// 100 次尝试成功 85 次，恰好不超过 0.8 + 0.15
		prev := &ratelimit.WalletStats{Attempts: 99, Successes: 85}
		hits := evaluateStats(ac, 0.8, prev, false, 0, 0, now)
		assert.Empty(t, hits)
	})
}

func TestEvaluateStatsMoveSpeed(t *testing.T) {
	ac := testAntiCheatConfig()
	now := time.Now()

	t.Run("瞬移标记", func(t *testing.T) {
		// 1 秒内移动 1000 个单位，远超 20 单位/秒
		prev := &ratelimit.WalletStats{
			Attempts: 1,
			LastX:    0, LastY: 0,
			LastAt: now.Add(-time.Second).UnixMilli(),
		}
		hits := evaluateStats(ac, 0.8, prev, false, 1000, 0, now)
		require.Len(t, hits, 1)
		assert.Equal(t, model.SuspicionReasonMoveSpeed, hits[0].Reason)
	})

	t.Run("正常移动不标记", func(t *testing.T) {
		prev := &ratelimit.WalletStats{
			Attempts: 1,
			LastX:    0, LastY: 0,
			LastAt: now.Add(-time.Second).UnixMilli(),
		}
		hits := evaluateStats(ac, 0.8, prev, false, 10, 0, now)
		assert.Empty(t, hits)
	})

	t.Run("首次尝试没有位移基准", func(t *testing.T) {
		prev := &ratelimit.WalletStats{}
		hits := evaluateStats(ac, 0.8, prev, false, 99999, 99999, now)
		assert.Empty(t, hits)
	})
}

// 两条规则互相独立，可以同时命中
func TestEvaluateStatsBothRules(t *testing.T) {
	ac := testAntiCheatConfig()
	now := time.Now()

	prev := &ratelimit.WalletStats{
		Attempts:  99,
		Successes: 99,
		LastX:     0, LastY: 0,
		LastAt: now.Add(-time.Second).UnixMilli(),
	}
	hits := evaluateStats(ac, 0.8, prev, true, 5000, 0, now)
	require.Len(t, hits, 2)

	reasons := []string{hits[0].Reason, hits[1].Reason}
	assert.Contains(t, reasons, model.SuspicionReasonSuccessRate)
	assert.Contains(t, reasons, model.SuspicionReasonMoveSpeed)
}

func TestWalletStatsSuccessRate(t *testing.T) {
	s := &ratelimit.WalletStats{}
	assert.Zero(t, s.SuccessRate())

	s = &ratelimit.WalletStats{Attempts: 4, Successes: 3}
	assert.InDelta(t, 0.75, s.SuccessRate(), 1e-9)
}
