package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeClaimAmount(t *testing.T) {
	rates := map[string]int64{
		"nickel":   1,
		"cobalt":   5,
		"titanium": 20,
		"gold":     100,
	}

	t.Run("多种资源折算", func(t *testing.T) {
		balances := map[string]int64{
			"nickel": 10, // 10
			"gold":   2,  // 200
		}
		total, breakdown := computeClaimAmount(rates, balances)
		assert.Equal(t, int64(210), total)
		assert.Equal(t, map[string]int64{"nickel": 10, "gold": 2}, breakdown)
	})

	t.Run("零余额资源不进明细", func(t *testing.T) {
		balances := map[string]int64{"nickel": 0, "cobalt": 3}
		total, breakdown := computeClaimAmount(rates, balances)
		assert.Equal(t, int64(15), total)
		assert.NotContains(t, breakdown, "nickel")
	})

	t.Run("负余额资源不折算", func(t *testing.T) {
		// 理论上不会出现，但折算必须只认正余额
		balances := map[string]int64{"nickel": -5, "cobalt": 2}
		total, breakdown := computeClaimAmount(rates, balances)
		assert.Equal(t, int64(10), total)
		assert.NotContains(t, breakdown, "nickel")
	})

	t.Run("未配置比率的资源不折算", func(t *testing.T) {
		total, breakdown := computeClaimAmount(map[string]int64{"gold": 100}, map[string]int64{"nickel": 99})
		assert.Zero(t, total)
		assert.Empty(t, breakdown)
	})

	t.Run("空余额", func(t *testing.T) {
		total, breakdown := computeClaimAmount(rates, map[string]int64{})
		assert.Zero(t, total)
		assert.Empty(t, breakdown)
	})
}
