package service

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"minegame/internal/config"
)

// ============================================================================
// 服务端安全随机
// ============================================================================
//
// 【关键点】出矿判定的随机数只能来自服务端 CSPRNG，客户端提交的任何
// 随机性输入一律不采信——否则客户端可以挑选对自己有利的种子。
//
// ============================================================================

// 53 位精度，够把 [0,1) 切得足够细
var floatScale = int64(1) << 53

// secureFloat 返回 [0,1) 区间的安全随机浮点数
func secureFloat() (float64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(floatScale))
	if err != nil {
		return 0, fmt.Errorf("读取随机源失败: %w", err)
	}
	return float64(n.Int64()) / float64(floatScale), nil
}

// secureInt64InRange 返回 [min, max] 闭区间内的安全随机整数
func secureInt64InRange(min, max int64) (int64, error) {
	if min > max {
		return 0, fmt.Errorf("随机区间不合法: [%d,%d]", min, max)
	}
	if min == max {
		return min, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, fmt.Errorf("读取随机源失败: %w", err)
	}
	return min + n.Int64(), nil
}

// secureIndex 返回 [0, n) 内的安全随机下标
func secureIndex(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("随机下标上界不合法: %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("读取随机源失败: %w", err)
	}
	return int(v.Int64()), nil
}

// drawOutcome 按掉落规则判定一次出矿：是否成功、成功时的产出数量
func drawOutcome(rule config.ResourceRule) (bool, int64, error) {
	roll, err := secureFloat()
	if err != nil {
		return false, 0, err
	}
	if roll >= rule.DropRate {
		return false, 0, nil
	}
	amount, err := secureInt64InRange(rule.MinAmount, rule.MaxAmount)
	if err != nil {
		return false, 0, err
	}
	return true, amount, nil
}
