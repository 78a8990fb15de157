package repository

import (
	"context"
	"time"

	"minegame/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create 追加一条流水
// 流水表只有 INSERT，天然无锁；校验失败是唯一的拒绝理由
func (r *LedgerRepository) Create(ctx context.Context, tx *gorm.DB, event *model.ResourceLedgerEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(event).Error
}

type balanceRow struct {
	ResourceType string
	Total        int64
}

// SumByPlayer 全量流水求和，按资源类型分组
// live 余额的计算入口——兑换金额校验前必须走这里，绝不能用缓存
func (r *LedgerRepository) SumByPlayer(ctx context.Context, tx *gorm.DB, playerID int64) (map[string]int64, error) {
	if tx == nil {
		tx = r.db
	}
	var rows []balanceRow
	err := tx.WithContext(ctx).
		Model(&model.ResourceLedgerEvent{}).
		Select("resource_type, COALESCE(SUM(amount), 0) AS total").
		Where("player_id = ?", playerID).
		Group("resource_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToBalances(rows), nil
}

// SumByPlayerUntil 水位线之前的全量求和（含水位线）
// 缓存刷新专用：快照必须以 until 为上界截断，否则水位线之后、求和
// 执行之前提交的流水会同时进快照和增量，被计两次
func (r *LedgerRepository) SumByPlayerUntil(ctx context.Context, playerID int64, until time.Time) (map[string]int64, error) {
	var rows []balanceRow
	err := r.db.WithContext(ctx).
		Model(&model.ResourceLedgerEvent{}).
		Select("resource_type, COALESCE(SUM(amount), 0) AS total").
		Where("player_id = ? AND created_at <= ?", playerID, until).
		Group("resource_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToBalances(rows), nil
}

// SumByPlayerSince 快照时间之后的增量求和
// 缓存余额 + 这里的增量 = 精确余额；快照只决定要扫多少行，不影响正确性
func (r *LedgerRepository) SumByPlayerSince(ctx context.Context, playerID int64, since time.Time) (map[string]int64, error) {
	var rows []balanceRow
	err := r.db.WithContext(ctx).
		Model(&model.ResourceLedgerEvent{}).
		Select("resource_type, COALESCE(SUM(amount), 0) AS total").
		Where("player_id = ? AND created_at > ?", playerID, since).
		Group("resource_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToBalances(rows), nil
}

func rowsToBalances(rows []balanceRow) map[string]int64 {
	balances := make(map[string]int64, len(rows))
	for _, row := range rows {
		balances[row.ResourceType] = row.Total
	}
	return balances
}

// ListByPlayer 按玩家查流水（审计接口）
func (r *LedgerRepository) ListByPlayer(ctx context.Context, playerID int64, page, pageSize int) ([]*model.ResourceLedgerEvent, int64, error) {
	var events []*model.ResourceLedgerEvent
	var total int64

	query := r.db.WithContext(ctx).Model(&model.ResourceLedgerEvent{}).Where("player_id = ?", playerID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&events).Error

	return events, total, err
}
