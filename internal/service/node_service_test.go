package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundsValid(t *testing.T) {
	assert.True(t, Bounds{MinX: 0, MaxX: 100, MinY: 0, MaxY: 100}.valid())
	assert.True(t, Bounds{MinX: -50, MaxX: 50, MinY: -50, MaxY: 50}.valid())

	// 退化区域一律拒绝
	assert.False(t, Bounds{}.valid())
	assert.False(t, Bounds{MinX: 10, MaxX: 10, MinY: 0, MaxY: 100}.valid())
	assert.False(t, Bounds{MinX: 100, MaxX: 0, MinY: 0, MaxY: 100}.valid())
	assert.False(t, Bounds{MinX: 0, MaxX: 100, MinY: 100, MaxY: 0}.valid())
}
