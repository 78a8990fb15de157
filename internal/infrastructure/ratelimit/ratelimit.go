package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 滑动窗口限流 + 成功冷却
// ============================================================================
//
// 【为什么用 Redis 而不是进程内计数器？】
//
// 服务可以水平扩容，同一个钱包的请求可能打到不同实例上。
// 计数必须在所有实例间共享，Redis 是现成的共享计数器。
//
// 【滑动窗口原理】
//
// 每次尝试往 ZSet 里塞一个 member，score = 纳秒时间戳：
//   1. ZREMRANGEBYSCORE 删掉窗口之前的旧记录
//   2. ZCARD 数一下窗口内还有多少条
//   3. 超过上限 -> 拒绝；否则 ZADD 记录本次
// 窗口是连续滑动的，不存在固定窗口边界上的双倍突刺问题。
//
// 三步必须在一个 Lua 脚本里原子执行：拆成"先数再加"两趟的话，
// N 个并发请求会同时数到上限以下、然后全部记录进去，窗口被击穿。
//
// ============================================================================

// KEYS[1] 窗口键；ARGV: 窗口起点、上限、本次 score、member、键 TTL（毫秒）
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// memberSeq 进程内序号，拼进 member 里保证同一纳秒的并发请求互不覆盖
var memberSeq uint64

type Limiter struct {
	client *redis.Client
	window time.Duration
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{
		client: client,
		window: time.Minute,
	}
}

func walletWindowKey(wallet string) string {
	return fmt.Sprintf("mine:rl:wallet:%s", wallet)
}

func ipWindowKey(ip string) string {
	return fmt.Sprintf("mine:rl:ip:%s", ip)
}

func cooldownKey(wallet string) string {
	return fmt.Sprintf("mine:cd:%s", wallet)
}

// AllowWallet 钱包维度滑动窗口判定
func (l *Limiter) AllowWallet(ctx context.Context, wallet string, limit int) (bool, error) {
	return l.allow(ctx, walletWindowKey(wallet), limit)
}

// AllowIP 连接维度滑动窗口判定
func (l *Limiter) AllowIP(ctx context.Context, ip string, limit int) (bool, error) {
	return l.allow(ctx, ipWindowKey(ip), limit)
}

func (l *Limiter) allow(ctx context.Context, key string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	now := time.Now()
	windowStart := now.Add(-l.window).UnixNano()
	// member 必须全局唯一：纳秒时间戳在并发下可能撞车，撞车的 ZADD
	// 会覆盖而不是追加，窗口计数偏低
	member := fmt.Sprintf("%d-%d", now.UnixNano(), atomic.AddUint64(&memberSeq, 1))
	ttlMillis := (l.window + 10*time.Second).Milliseconds()

	n, err := allowScript.Run(ctx, l.client, []string{key},
		windowStart, limit, now.UnixNano(), member, ttlMillis).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// OnCooldown 判断钱包是否还在成功冷却期内
// 冷却只在成功出矿后开始计（key 带 TTL，过期即冷却结束）
func (l *Limiter) OnCooldown(ctx context.Context, wallet string) (bool, error) {
	n, err := l.client.Exists(ctx, cooldownKey(wallet)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StartCooldown 成功出矿后启动冷却
func (l *Limiter) StartCooldown(ctx context.Context, wallet string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return l.client.Set(ctx, cooldownKey(wallet), time.Now().UnixMilli(), d).Err()
}

// ============================================================================
// 反作弊滚动统计
// ============================================================================

// WalletStats 单个钱包的滚动统计快照
type WalletStats struct {
	Attempts  int64   // 累计尝试数
	Successes int64   // 累计成功数
	LastX     float64 // 上一次尝试的坐标
	LastY     float64
	LastAt    int64 // 上一次尝试时间（毫秒）
}

// SuccessRate 滚动成功率
func (s *WalletStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

func statsKey(wallet string) string {
	return fmt.Sprintf("mine:stats:%s", wallet)
}

// RecordAttempt 更新滚动统计并返回更新前的快照
// 返回旧快照是为了让调用方用"上一次位置+时间"计算这一次的位移速度
func (l *Limiter) RecordAttempt(ctx context.Context, wallet string, success bool, x, y float64, at time.Time) (*WalletStats, error) {
	key := statsKey(wallet)

	vals, err := l.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	prev := parseStats(vals)

	pipe := l.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "attempts", 1)
	if success {
		pipe.HIncrBy(ctx, key, "successes", 1)
	}
	pipe.HSet(ctx, key, map[string]interface{}{
		"last_x":  x,
		"last_y":  y,
		"last_at": at.UnixMilli(),
	})
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	return prev, nil
}

func parseStats(vals map[string]string) *WalletStats {
	stats := &WalletStats{}
	if v, ok := vals["attempts"]; ok {
		stats.Attempts, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := vals["successes"]; ok {
		stats.Successes, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := vals["last_x"]; ok {
		stats.LastX, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := vals["last_y"]; ok {
		stats.LastY, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := vals["last_at"]; ok {
		stats.LastAt, _ = strconv.ParseInt(v, 10, 64)
	}
	return stats
}
