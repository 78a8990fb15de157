package service

import (
	"math"
	"testing"

	"minegame/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 0.0, distance(1, 1, 1, 1))
	assert.Equal(t, 5.0, distance(0, 0, 3, 4))
	assert.Equal(t, 5.0, distance(3, 4, 0, 0)) // 对称
	assert.InDelta(t, math.Sqrt2, distance(0, 0, 1, 1), 1e-9)
}

func TestValidPosition(t *testing.T) {
	assert.True(t, validPosition(0, 0))
	assert.True(t, validPosition(-123.5, 9999.9))

	// NaN/Inf 一律按恶意输入拒绝
	assert.False(t, validPosition(math.NaN(), 0))
	assert.False(t, validPosition(0, math.NaN()))
	assert.False(t, validPosition(math.Inf(1), 0))
	assert.False(t, validPosition(0, math.Inf(-1)))
}

func TestReplayResult(t *testing.T) {
	attempt := &model.MiningAttempt{
		AttemptID:     "ATT001",
		Success:       true,
		GrantedType:   "nickel",
		GrantedAmount: 3,
	}
	result := replayResult(attempt)

	assert.Equal(t, attempt.AttemptID, result.AttemptID)
	assert.True(t, result.Success)
	assert.Equal(t, "nickel", result.ResourceType)
	assert.Equal(t, int64(3), result.Amount)
	assert.True(t, result.Replayed)
}
