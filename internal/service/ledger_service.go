package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"minegame/internal/config"
	"minegame/internal/model"
	"minegame/internal/repository"

	"gorm.io/gorm"
)

// LedgerService 玩家资源账本
// 流水只追加；余额有两种口径：
//   live  —— 全量流水重算，兑换金额校验前必须用这个
//   cached —— 缓存快照 + 快照后增量，数值同样精确，只是少扫很多行
type LedgerService struct {
	db         *gorm.DB
	cfg        *config.Config
	ledgerRepo *repository.LedgerRepository
	playerRepo *repository.PlayerRepository
}

func NewLedgerService(db *gorm.DB, cfg *config.Config) *LedgerService {
	return &LedgerService{
		db:         db,
		cfg:        cfg,
		ledgerRepo: repository.NewLedgerRepository(db),
		playerRepo: repository.NewPlayerRepository(db),
	}
}

// BalanceSnapshot 余额查询结果
type BalanceSnapshot struct {
	Balances map[string]int64 `json:"balances_by_type"`
	AsOf     time.Time        `json:"as_of"`
	Live     bool             `json:"live"`
}

// Append 追加一条流水（校验在 repository 层，失败即拒绝）
func (s *LedgerService) Append(ctx context.Context, event *model.ResourceLedgerEvent) error {
	return s.ledgerRepo.Create(ctx, nil, event)
}

// TouchPlayer 钱包首次触达时建档（无注册流程，钱包即身份）
// 并发首触由 wallet 唯一索引兜底，重复调用幂等返回同一玩家
func (s *LedgerService) TouchPlayer(ctx context.Context, wallet string) (*model.Player, error) {
	return s.playerRepo.GetOrCreateByWallet(ctx, wallet)
}

// GetBalances 查询玩家余额
// live=true 全量重算；live=false 缓存快照 + 增量，两种口径数值一致
func (s *LedgerService) GetBalances(ctx context.Context, playerID int64, live bool) (*BalanceSnapshot, error) {
	now := time.Now()

	if live {
		balances, err := s.ledgerRepo.SumByPlayer(ctx, nil, playerID)
		if err != nil {
			return nil, fmt.Errorf("全量重算余额失败: %w", err)
		}
		return &BalanceSnapshot{Balances: balances, AsOf: now, Live: true}, nil
	}

	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	balances := player.Balances()
	delta, err := s.ledgerRepo.SumByPlayerSince(ctx, playerID, player.CacheAt)
	if err != nil {
		return nil, fmt.Errorf("增量求和失败: %w", err)
	}
	for resourceType, amount := range delta {
		balances[resourceType] += amount
	}

	return &BalanceSnapshot{Balances: balances, AsOf: now, Live: false}, nil
}

// RefreshCache 重算并写入单个玩家的余额快照
// 求和必须以快照时间为上界截断：水位线之后提交的流水只能由增量查询
// 负责，否则同一笔会先进快照、再进 cache_at 之后的增量，余额虚高
func (s *LedgerService) RefreshCache(ctx context.Context, playerID int64) error {
	snapshotAt := time.Now()
	balances, err := s.ledgerRepo.SumByPlayerUntil(ctx, playerID, snapshotAt)
	if err != nil {
		return fmt.Errorf("重算余额失败: %w", err)
	}

	player := &model.Player{}
	if err := player.SetBalances(balances, snapshotAt); err != nil {
		return err
	}
	return s.playerRepo.UpdateCache(ctx, playerID, player.CachedBalances, snapshotAt)
}

// RefreshStaleCaches 批量刷新过旧的缓存快照（后台任务入口）
func (s *LedgerService) RefreshStaleCaches(ctx context.Context, threshold time.Duration, batchSize int) (int, error) {
	before := time.Now().Add(-threshold)
	players, err := s.playerRepo.GetStaleCachePlayers(ctx, before, batchSize)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, player := range players {
		if err := s.RefreshCache(ctx, player.ID); err != nil {
			log.Printf("[LedgerService] 刷新余额缓存失败: playerID=%d, err=%v", player.ID, err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// ListEvents 流水审计接口
func (s *LedgerService) ListEvents(ctx context.Context, playerID int64, page, pageSize int) ([]*model.ResourceLedgerEvent, int64, error) {
	return s.ledgerRepo.ListByPlayer(ctx, playerID, page, pageSize)
}
