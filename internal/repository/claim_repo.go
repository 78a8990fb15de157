package repository

import (
	"context"
	"errors"
	"time"

	"minegame/internal/model"

	"gorm.io/gorm"
)

var (
	ErrClaimNotFound    = errors.New("兑换记录不存在")
	ErrClaimDuplicate   = errors.New("该 (wallet, nonce) 已存在兑换签名")
	ErrClaimNotUnusable = errors.New("兑换签名不处于可确认状态")
)

type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Create 插入兑换签名
//
// 【关键点】并发守卫是 (wallet, nonce) 联合唯一索引，不是锁。
// 两个并发请求同时走到这里，数据库保证只有一个 INSERT 成功，
// 输家拿到 ErrClaimDuplicate 后回读赢家的行原样返回。
func (r *ClaimRepository) Create(ctx context.Context, tx *gorm.DB, claim *model.ClaimSignature) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(claim).Error
	if err != nil {
		if IsDuplicateKey(err) {
			return ErrClaimDuplicate
		}
		return err
	}
	return nil
}

func (r *ClaimRepository) GetByClaimID(ctx context.Context, claimID string) (*model.ClaimSignature, error) {
	var claim model.ClaimSignature
	err := r.db.WithContext(ctx).Where("claim_id = ?", claimID).First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return &claim, nil
}

// GetByWalletNonce 按 (wallet, nonce) 查签名，没有返回 nil
func (r *ClaimRepository) GetByWalletNonce(ctx context.Context, wallet string, nonce uint64) (*model.ClaimSignature, error) {
	var claim model.ClaimSignature
	err := r.db.WithContext(ctx).
		Where("wallet = ? AND nonce = ?", wallet, nonce).
		First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &claim, nil
}

// MarkUsed 链上确认后把签名标记为已消费
// WHERE used = false 保证 unused -> used 只发生一次；
// RowsAffected=0 说明已被并发确认过或记录不存在
func (r *ClaimRepository) MarkUsed(ctx context.Context, claimID string, txRef string, usedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.ClaimSignature{}).
		Where("claim_id = ? AND used = ?", claimID, false).
		Updates(map[string]interface{}{
			"used":    true,
			"used_at": usedAt,
			"tx_ref":  txRef,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClaimNotUnusable
	}
	return nil
}

// GetExpiredUnused 查出已过期且未消费的签名，供后台清理任务处理
func (r *ClaimRepository) GetExpiredUnused(ctx context.Context, now time.Time, limit int) ([]*model.ClaimSignature, error) {
	var claims []*model.ClaimSignature
	err := r.db.WithContext(ctx).
		Where("used = ? AND expires_at < ?", false, now).
		Limit(limit).
		Find(&claims).Error
	return claims, err
}

// Delete 清理任务专用：删除一条过期未消费的签名
// WHERE 条件重复带上 used/expires_at，防止误删并发间隙里刚被确认的行
func (r *ClaimRepository) Delete(ctx context.Context, tx *gorm.DB, claimID string, now time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Where("claim_id = ? AND used = ? AND expires_at < ?", claimID, false, now).
		Delete(&model.ClaimSignature{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClaimNotUnusable
	}
	return nil
}
