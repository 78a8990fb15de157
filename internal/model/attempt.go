package model

import (
	"time"
)

// ============================================================================
// 挖矿失败原因（对客户端暴露的机器码）
// ============================================================================

const (
	FailureReasonRateLimited     = "rate_limit_exceeded"  // 触发频率限制
	FailureReasonOnCooldown      = "on_cooldown"          // 冷却期未结束
	FailureReasonOutOfRange      = "out_of_range"         // 距离节点过远
	FailureReasonNodeNotFound    = "node_not_found"       // 节点不存在
	FailureReasonNodeClaimed     = "node_already_claimed" // 节点已被他人锁定
	FailureReasonConcurrent      = "concurrent_attempt"   // 同一玩家并发请求
	FailureReasonInvalidResource = "invalid_resource"     // 资源类型不在允许列表
	FailureReasonNoYield         = "no_yield"             // 判定未出矿（正常概率失败）
)

// ============================================================================
// 挖矿尝试实体
// ============================================================================

// MiningAttempt 挖矿尝试表
// 每一次挖矿请求（无论成败）都会落一条记录，是审计与幂等回放的依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. attempt_id 全局唯一 —— 同一 attempt_id 的重试直接回放历史结果
// 3. 记录判定输入（坐标、距离）—— 便于事后排查反作弊误判
type MiningAttempt struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AttemptID     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"attempt_id"` // 幂等键，客户端生成
	PlayerID      int64     `gorm:"index;not null" json:"player_id"`                         // 玩家ID
	Wallet        string    `gorm:"type:varchar(42);index;not null" json:"wallet"`           // 钱包地址
	SessionID     string    `gorm:"type:varchar(64);not null" json:"session_id"`             // 会话ID
	NodeNo        string    `gorm:"type:varchar(64);index;not null" json:"node_no"`          // 目标节点编号
	PosX          float64   `gorm:"not null" json:"pos_x"`                                   // 客户端上报坐标 X
	PosY          float64   `gorm:"not null" json:"pos_y"`                                   // 客户端上报坐标 Y
	Distance      float64   `gorm:"not null" json:"distance"`                                // 距节点距离
	Success       bool      `gorm:"not null" json:"success"`                                 // 是否出矿
	FailureReason string    `gorm:"type:varchar(32)" json:"failure_reason"`                  // 失败原因机器码
	GrantedType   string    `gorm:"type:varchar(20)" json:"granted_type"`                    // 产出资源类型
	GrantedAmount int64     `gorm:"not null;default:0" json:"granted_amount"`                // 产出数量
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (MiningAttempt) TableName() string {
	return "mining_attempts"
}

// ============================================================================
// 可疑行为标记实体
// ============================================================================

const (
	SuspicionReasonSuccessRate = "implausible_success_rate" // 成功率显著高于配置掉率
	SuspicionReasonMoveSpeed   = "implausible_move_speed"   // 两次尝试间位移速度超出合理上限
)

// SuspicionFlag 可疑行为标记表
// 反作弊只做标记不做拦截，记录原因供人工复核
// 尝试记录本身只追加不修改，所以标记单独落表，通过 attempt_id 关联
type SuspicionFlag struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Wallet    string    `gorm:"type:varchar(42);index;not null" json:"wallet"`
	AttemptID string    `gorm:"type:varchar(64);index;not null" json:"attempt_id"` // 触发标记的尝试
	Reason    string    `gorm:"type:varchar(40);not null" json:"reason"`           // 标记原因
	Detail    string    `gorm:"type:varchar(256)" json:"detail"`                   // 触发时的统计快照
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (SuspicionFlag) TableName() string {
	return "suspicion_flags"
}
