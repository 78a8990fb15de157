package model

import (
	"time"
)

const (
	ClaimTypeToken = "TOKEN" // 资源兑换代币
)

// ClaimSignature 链上兑换签名表
// 一条记录对应一次性、带过期时间的链上兑换授权
//
// 【关键点】(wallet, nonce) 上的联合唯一索引是防止同一 nonce 签出两个
// 不同金额的真正屏障：并发请求谁先插入谁赢，输家捕获唯一键冲突后
// 回读赢家的记录原样返回。应用层不加锁、不重试循环。
type ClaimSignature struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClaimID     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"claim_id"`              // 兑换单号
	Wallet      string     `gorm:"type:varchar(42);uniqueIndex:uk_wallet_nonce;not null" json:"wallet"` // 钱包地址
	Nonce       uint64     `gorm:"uniqueIndex:uk_wallet_nonce;not null" json:"nonce"`                   // 链上 nonce（外部权威）
	Amount      int64      `gorm:"not null" json:"amount"`                                              // 签名授权的代币数量
	Breakdown   string     `gorm:"type:text;not null" json:"breakdown"`                                 // 各资源扣减明细（JSON），过期退回时使用
	Signature   string     `gorm:"type:varchar(132);not null" json:"signature"`                         // 签名（hex）
	MessageHash string     `gorm:"type:varchar(66);not null" json:"message_hash"`                       // 被签消息摘要（hex）
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expires_at"`                                    // 过期时间，过期后签名作废
	Used        bool       `gorm:"not null;default:false" json:"used"`                                  // 是否已在链上消费
	UsedAt      *time.Time `json:"used_at"`                                                             // 链上确认时间
	TxRef       string     `gorm:"type:varchar(128)" json:"tx_ref"`                                     // 链上交易引用
	ClaimType   string     `gorm:"type:varchar(20);not null" json:"claim_type"`                         // 兑换类型
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (ClaimSignature) TableName() string {
	return "claim_signatures"
}

// Expired 判断签名是否已过期
func (c *ClaimSignature) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Redeemable 未使用且未过期的签名才可以返回给客户端
func (c *ClaimSignature) Redeemable(now time.Time) bool {
	return !c.Used && !c.Expired(now)
}
