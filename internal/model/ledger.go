package model

import (
	"errors"
	"time"
)

// ============================================================================
// 资源流水事件类型
// ============================================================================

const (
	EventTypeMining     = "MINING"     // 挖矿入账（正数）
	EventTypeTradeBuy   = "TRADE_BUY"  // 交易买入（正数）
	EventTypeTradeSell  = "TRADE_SELL" // 交易卖出（负数）
	EventTypeClaim      = "CLAIM"      // 链上兑换扣减（负数）
	EventTypeAdjustment = "ADJUSTMENT" // 人工/系统调整（正负均可）
)

var (
	ErrEventInvalidType = errors.New("资源类型不在允许列表内")
	ErrEventInvalidSign = errors.New("流水金额正负与事件类型不匹配")
	ErrEventUnknownType = errors.New("未知的流水事件类型")
	ErrEventZeroAmount  = errors.New("流水金额不能为0")
)

// eventSign 事件类型对金额正负的约束：+1 只允许正数，-1 只允许负数，0 不限
var eventSign = map[string]int{
	EventTypeMining:     +1,
	EventTypeTradeBuy:   +1,
	EventTypeTradeSell:  -1,
	EventTypeClaim:      -1,
	EventTypeAdjustment: 0,
}

// ============================================================================
// 资源流水实体
// ============================================================================

// ResourceLedgerEvent 玩家资源流水表
// 记录玩家每一笔资源变动，余额 = 缓存快照 + 快照之后流水之和
//
// 【重要】流水表只追加，不修改，不删除；余额永远可以从全量流水重算出来
type ResourceLedgerEvent struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventNo      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"event_no"`                 // 流水号（全局唯一）
	PlayerID     int64     `gorm:"index:idx_player_created;not null" json:"player_id"`                    // 玩家ID
	Wallet       string    `gorm:"type:varchar(42);index;not null" json:"wallet"`                         // 钱包地址
	ResourceType string    `gorm:"type:varchar(20);not null" json:"resource_type"`                        // 资源类型
	Amount       int64     `gorm:"not null" json:"amount"`                                                // 变动量（正入负出）
	EventType    string    `gorm:"type:varchar(20);not null" json:"event_type"`                           // 事件类型
	SourceID     string    `gorm:"type:varchar(64);index" json:"source_id"`                               // 来源（attempt_id / claim_id 等）
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_player_created" json:"created_at"`
}

func (ResourceLedgerEvent) TableName() string {
	return "resource_events"
}

// Validate 入账前校验：资源类型必须在枚举内，金额正负必须匹配事件类型
func (e *ResourceLedgerEvent) Validate() error {
	if !IsValidResourceType(e.ResourceType) {
		return ErrEventInvalidType
	}
	sign, ok := eventSign[e.EventType]
	if !ok {
		return ErrEventUnknownType
	}
	if e.Amount == 0 {
		return ErrEventZeroAmount
	}
	if sign > 0 && e.Amount < 0 {
		return ErrEventInvalidSign
	}
	if sign < 0 && e.Amount > 0 {
		return ErrEventInvalidSign
	}
	return nil
}
