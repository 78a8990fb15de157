package model

import (
	"encoding/json"
	"time"
)

// Player 玩家表
// 缓存余额由后台任务批量刷新，不随每笔流水同步更新——
// 用一段有界的陈旧窗口换掉每次挖矿的一次余额写操作
type Player struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Wallet         string    `gorm:"type:varchar(42);uniqueIndex;not null" json:"wallet"` // 钱包地址（握手层已完成认证）
	CachedBalances string    `gorm:"type:text" json:"cached_balances"`                    // 各资源缓存余额（JSON）
	CacheAt        time.Time `gorm:"not null" json:"cache_at"`                            // 缓存快照时间
	Tier           int       `gorm:"not null;default:0" json:"tier"`                      // 玩家等级（预留）
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Player) TableName() string {
	return "players"
}

// Balances 反序列化缓存余额，缓存为空时返回空 map
func (p *Player) Balances() map[string]int64 {
	balances := make(map[string]int64)
	if p.CachedBalances == "" {
		return balances
	}
	// 缓存损坏按空快照处理，余额会退化为全量流水求和，结果仍然精确
	_ = json.Unmarshal([]byte(p.CachedBalances), &balances)
	return balances
}

// SetBalances 序列化并写入缓存余额快照
func (p *Player) SetBalances(balances map[string]int64, at time.Time) error {
	b, err := json.Marshal(balances)
	if err != nil {
		return err
	}
	p.CachedBalances = string(b)
	p.CacheAt = at
	return nil
}
