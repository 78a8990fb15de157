package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"可采集到锁定", NodeStatusAvailable, NodeStatusClaimed, true},
		{"锁定到采空", NodeStatusClaimed, NodeStatusDepleted, true},
		{"锁定回退可采集", NodeStatusClaimed, NodeStatusAvailable, true},
		{"采空到等待刷新", NodeStatusDepleted, NodeStatusRespawning, true},
		{"等待刷新到可采集", NodeStatusRespawning, NodeStatusAvailable, true},
		{"可采集不能直接采空", NodeStatusAvailable, NodeStatusDepleted, false},
		{"采空不能回到锁定", NodeStatusDepleted, NodeStatusClaimed, false},
		{"等待刷新不能被锁定", NodeStatusRespawning, NodeStatusClaimed, false},
		{"未知状态", "UNKNOWN", NodeStatusAvailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, NodeCanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestIsValidResourceType(t *testing.T) {
	for _, rt := range ResourceTypes() {
		assert.True(t, IsValidResourceType(rt), "枚举内类型应当合法: %s", rt)
	}

	assert.False(t, IsValidResourceType("diamond"))
	assert.False(t, IsValidResourceType(""))
	assert.False(t, IsValidResourceType("Nickel")) // 大小写敏感
	assert.False(t, IsValidResourceType("nickel; DROP TABLE players"))
}
