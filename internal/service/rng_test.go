package service

import (
	"testing"

	"minegame/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureFloatRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v, err := secureFloat()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestSecureInt64InRange(t *testing.T) {
	t.Run("闭区间", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			v, err := secureInt64InRange(1, 5)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, int64(1))
			assert.LessOrEqual(t, v, int64(5))
		}
	})

	t.Run("单点区间", func(t *testing.T) {
		v, err := secureInt64InRange(3, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	})

	t.Run("非法区间", func(t *testing.T) {
		_, err := secureInt64InRange(5, 1)
		assert.Error(t, err)
	})
}

func TestSecureIndex(t *testing.T) {
	for i := 0; i < 200; i++ {
		v, err := secureIndex(4)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 4)
	}

	_, err := secureIndex(0)
	assert.Error(t, err)
}

// 出矿判定的统计口径：成功率应落在配置掉率附近，
// 成功时产出必须落在配置区间内
func TestDrawOutcomeDistribution(t *testing.T) {
	rule := config.ResourceRule{
		Type:      "nickel",
		DropRate:  0.8,
		MinAmount: 1,
		MaxAmount: 5,
	}

	const draws = 5000
	successes := 0
	for i := 0; i < draws; i++ {
		ok, amount, err := drawOutcome(rule)
		require.NoError(t, err)
		if ok {
			successes++
			assert.GreaterOrEqual(t, amount, rule.MinAmount)
			assert.LessOrEqual(t, amount, rule.MaxAmount)
		} else {
			assert.Zero(t, amount)
		}
	}

	rate := float64(successes) / float64(draws)
	// 5000 次采样下 3σ ≈ 0.017，放宽到 ±0.05 防止偶发抖动
	assert.InDelta(t, rule.DropRate, rate, 0.05)
}

func TestDrawOutcomeExtremes(t *testing.T) {
	t.Run("零掉率永不出矿", func(t *testing.T) {
		rule := config.ResourceRule{Type: "gold", DropRate: 0, MinAmount: 1, MaxAmount: 1}
		for i := 0; i < 100; i++ {
			ok, _, err := drawOutcome(rule)
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("满掉率必定出矿", func(t *testing.T) {
		rule := config.ResourceRule{Type: "nickel", DropRate: 1.0, MinAmount: 2, MaxAmount: 2}
		for i := 0; i < 100; i++ {
			ok, amount, err := drawOutcome(rule)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, int64(2), amount)
		}
	})
}
