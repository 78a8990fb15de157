package repository

import (
	"context"
	"errors"

	"minegame/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create 落一条尝试记录
// attempt_id 上有唯一索引：并发提交同一 attempt_id 时只有一条能落库，
// 输家通过 IsDuplicateKey 识别冲突后回读已存结果
func (r *AttemptRepository) Create(ctx context.Context, tx *gorm.DB, attempt *model.MiningAttempt) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(attempt).Error
}

// GetByAttemptID 按幂等键查历史结果，没有返回 nil
func (r *AttemptRepository) GetByAttemptID(ctx context.Context, attemptID string) (*model.MiningAttempt, error) {
	var attempt model.MiningAttempt
	err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

// ListByWallet 按钱包查尝试历史（人工复核可疑标记时使用）
func (r *AttemptRepository) ListByWallet(ctx context.Context, wallet string, page, pageSize int) ([]*model.MiningAttempt, int64, error) {
	var attempts []*model.MiningAttempt
	var total int64

	query := r.db.WithContext(ctx).Model(&model.MiningAttempt{}).Where("wallet = ?", wallet)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&attempts).Error

	return attempts, total, err
}

// ============================================================
// 可疑标记
// ============================================================

type SuspicionRepository struct {
	db *gorm.DB
}

func NewSuspicionRepository(db *gorm.DB) *SuspicionRepository {
	return &SuspicionRepository{db: db}
}

func (r *SuspicionRepository) Create(ctx context.Context, tx *gorm.DB, flag *model.SuspicionFlag) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(flag).Error
}

func (r *SuspicionRepository) ListByWallet(ctx context.Context, wallet string, limit int) ([]*model.SuspicionFlag, error) {
	var flags []*model.SuspicionFlag
	err := r.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("created_at DESC").
		Limit(limit).
		Find(&flags).Error
	return flags, err
}
