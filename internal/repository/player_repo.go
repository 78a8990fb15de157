package repository

import (
	"context"
	"errors"
	"time"

	"minegame/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPlayerNotFound = errors.New("玩家不存在")
	ErrPlayerLockBusy = errors.New("玩家已有进行中的挖矿事务")
)

type PlayerRepository struct {
	db *gorm.DB
}

func NewPlayerRepository(db *gorm.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) GetByID(ctx context.Context, playerID int64) (*model.Player, error) {
	var player model.Player
	err := r.db.WithContext(ctx).Where("id = ?", playerID).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

func (r *PlayerRepository) GetByWallet(ctx context.Context, wallet string) (*model.Player, error) {
	var player model.Player
	err := r.db.WithContext(ctx).Where("wallet = ?", wallet).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

// GetOrCreateByWallet 首次出现的钱包自动建档
// OnConflict DoNothing 保证并发首跳不会重复建行
func (r *PlayerRepository) GetOrCreateByWallet(ctx context.Context, wallet string) (*model.Player, error) {
	player, err := r.GetByWallet(ctx, wallet)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, ErrPlayerNotFound) {
		return nil, err
	}

	newPlayer := &model.Player{
		Wallet:         wallet,
		CachedBalances: "{}",
		CacheAt:        time.Now(),
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wallet"}},
			DoNothing: true,
		}).
		Create(newPlayer).Error
	if err != nil {
		return nil, err
	}

	return r.GetByWallet(ctx, wallet)
}

// GetForUpdate 对玩家行加排他非阻塞锁
//
// 【关键点】玩家行锁保证同一玩家同一时刻至多一个在途挖矿事务。
// NOWAIT 语义下，重复点击的第二个请求立即收到 ErrPlayerLockBusy，
// 不会在数据库里排队。
func (r *PlayerRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, playerID int64) (*model.Player, error) {
	var player model.Player
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		Where("id = ?", playerID).
		First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayerNotFound
		}
		if IsLockUnavailable(err) {
			return nil, ErrPlayerLockBusy
		}
		return nil, err
	}
	return &player, nil
}

// UpdateCache 写入新的余额快照
func (r *PlayerRepository) UpdateCache(ctx context.Context, playerID int64, cachedBalances string, cacheAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Player{}).
		Where("id = ?", playerID).
		Updates(map[string]interface{}{
			"cached_balances": cachedBalances,
			"cache_at":        cacheAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// GetStaleCachePlayers 查出缓存快照过旧的玩家，供后台刷新任务批量处理
func (r *PlayerRepository) GetStaleCachePlayers(ctx context.Context, before time.Time, limit int) ([]*model.Player, error) {
	var players []*model.Player
	err := r.db.WithContext(ctx).
		Where("cache_at < ?", before).
		Limit(limit).
		Find(&players).Error
	return players, err
}
