package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"minegame/internal/config"
	"minegame/internal/infrastructure/chain"
	"minegame/internal/model"
	"minegame/internal/repository"
	"minegame/pkg/idgen"
	"minegame/pkg/signer"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

var (
	ErrNothingToClaim   = errors.New("没有可兑换的资源")
	ErrAmountExceedsMax = errors.New("兑换金额超过单次上限")
	ErrNonceMismatch    = errors.New("链上 nonce 读取过期，请稍后重试")
	ErrClaimUsed        = errors.New("兑换签名已被消费")
)

// ClaimService 兑换签名服务
// 把账本余额转成一次性、带过期时间的链上兑换授权
//
// 【关键点】并发守卫是 claim_signatures 上的 (wallet, nonce) 唯一索引，
// 不是锁也不是重试循环：并发请求都走到签名这一步没关系，INSERT 只会
// 成功一个，输家回读赢家的签名原样返回。于是同一个 nonce 永远只对应
// 一份签名数据，客户端无从在两份签名里挑肥拣瘦。
type ClaimService struct {
	db          *gorm.DB
	cfg         *config.Config
	nonceReader chain.NonceReader
	claimSigner *signer.ClaimSigner
	claimRepo   *repository.ClaimRepository
	ledgerRepo  *repository.LedgerRepository
	playerRepo  *repository.PlayerRepository
}

func NewClaimService(db *gorm.DB, cfg *config.Config, nonceReader chain.NonceReader, claimSigner *signer.ClaimSigner) *ClaimService {
	return &ClaimService{
		db:          db,
		cfg:         cfg,
		nonceReader: nonceReader,
		claimSigner: claimSigner,
		claimRepo:   repository.NewClaimRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		playerRepo:  repository.NewPlayerRepository(db),
	}
}

// ClaimResult 返回给客户端、提交给链上合约的授权数据
type ClaimResult struct {
	ClaimID   string `json:"claim_id"`
	Wallet    string `json:"wallet"`
	Amount    int64  `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
	ExpiresAt int64  `json:"expires_at"`
}

// computeClaimAmount 按配置比率把各资源余额折算成代币总额
// 返回值里带上扣减明细，签名过期未消费时按明细原路退回
func computeClaimAmount(rates map[string]int64, balances map[string]int64) (int64, map[string]int64) {
	total := int64(0)
	breakdown := make(map[string]int64)
	for resourceType, balance := range balances {
		rate, ok := rates[resourceType]
		if !ok || rate <= 0 || balance <= 0 {
			continue
		}
		total += balance * rate
		breakdown[resourceType] = balance
	}
	return total, breakdown
}

// ClaimTokens 为钱包签发（或回放）一份兑换授权
func (s *ClaimService) ClaimTokens(ctx context.Context, wallet string) (*ClaimResult, error) {
	if !common.IsHexAddress(wallet) {
		return nil, ErrWalletInvalid
	}

	player, err := s.playerRepo.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}

	// nonce 的权威来源在链上，每次签发前实时读取
	nonce, err := s.nonceReader.NonceOf(ctx, common.HexToAddress(wallet))
	if err != nil {
		return nil, err
	}

	// 幂等：该 (wallet, nonce) 已有签名时原样返回，绝不签第二份
	existing, err := s.claimRepo.GetByWalletNonce(ctx, wallet, nonce)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.replayExisting(ctx, existing)
	}

	return s.mintClaim(ctx, player, nonce)
}

// replayExisting 处理 (wallet, nonce) 已有记录的三种情况
func (s *ClaimService) replayExisting(ctx context.Context, existing *model.ClaimSignature) (*ClaimResult, error) {
	now := time.Now()
	if existing.Used {
		// 该 nonce 已在链上消费过但外部读数还停在旧值，说明这次读取过期了
		return nil, ErrNonceMismatch
	}
	if existing.Expired(now) {
		// 过期未消费：先退回资源再删行，然后为同一 nonce 重新签发
		if err := s.purgeOne(ctx, existing, now); err != nil {
			return nil, fmt.Errorf("清理过期签名失败: %w", err)
		}
		player, err := s.playerRepo.GetByWallet(ctx, existing.Wallet)
		if err != nil {
			return nil, err
		}
		return s.mintClaim(ctx, player, existing.Nonce)
	}
	return claimToResult(existing), nil
}

// mintClaim 基于 live 余额签发新授权
// 签名行与资源扣减流水落在同一个事务里，唯一索引冲突时整体回滚
func (s *ClaimService) mintClaim(ctx context.Context, player *model.Player, nonce uint64) (*ClaimResult, error) {
	var minted *model.ClaimSignature

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		// 兑换金额校验前必须全量重算，缓存口径一律不采信
		balances, err := s.ledgerRepo.SumByPlayer(ctx, tx, player.ID)
		if err != nil {
			return fmt.Errorf("重算余额失败: %w", err)
		}

		total, breakdown := computeClaimAmount(s.cfg.Game.Claim.TokenRates, balances)
		if total <= 0 {
			return ErrNothingToClaim
		}
		if total > s.cfg.Game.Claim.MaxPerClaim {
			return ErrAmountExceedsMax
		}

		expiresAt := time.Now().Add(time.Duration(s.cfg.Game.Claim.ExpireMinutes) * time.Minute)
		sig, digest, err := s.claimSigner.SignClaim(common.HexToAddress(player.Wallet), total, nonce, expiresAt.Unix())
		if err != nil {
			return err
		}

		breakdownJSON, err := json.Marshal(breakdown)
		if err != nil {
			return err
		}

		claim := &model.ClaimSignature{
			ClaimID:     idgen.GenerateClaimNo(),
			Wallet:      player.Wallet,
			Nonce:       nonce,
			Amount:      total,
			Breakdown:   string(breakdownJSON),
			Signature:   "0x" + hex.EncodeToString(sig),
			MessageHash: "0x" + hex.EncodeToString(digest),
			ExpiresAt:   expiresAt,
			ClaimType:   model.ClaimTypeToken,
		}
		if err := s.claimRepo.Create(ctx, tx, claim); err != nil {
			return err
		}

		// 扣减资源：签名授权了多少就锁定多少，过期未消费由清理任务退回
		types := make([]string, 0, len(breakdown))
		for resourceType := range breakdown {
			types = append(types, resourceType)
		}
		sort.Strings(types)
		for _, resourceType := range types {
			event := &model.ResourceLedgerEvent{
				EventNo:      idgen.GenerateEventNo(),
				PlayerID:     player.ID,
				Wallet:       player.Wallet,
				ResourceType: resourceType,
				Amount:       -breakdown[resourceType],
				EventType:    model.EventTypeClaim,
				SourceID:     claim.ClaimID,
			}
			if err := s.ledgerRepo.Create(ctx, tx, event); err != nil {
				return fmt.Errorf("扣减流水失败: %w", err)
			}
		}

		minted = claim
		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, repository.ErrClaimDuplicate) {
			// 并发输家：回读赢家的签名原样返回
			winner, err := s.claimRepo.GetByWalletNonce(ctx, player.Wallet, nonce)
			if err != nil {
				return nil, err
			}
			if winner == nil {
				return nil, repository.ErrClaimNotFound
			}
			return s.replayExisting(ctx, winner)
		}
		return nil, txErr
	}

	log.Printf("[ClaimService] 签发兑换授权: claimID=%s, wallet=%s, amount=%d, nonce=%d",
		minted.ClaimID, minted.Wallet, minted.Amount, minted.Nonce)
	return claimToResult(minted), nil
}

// ConfirmClaim 链上确认回调：把签名标记为已消费
//
// 【关键点】过期不是拒绝理由。期限由链上合约在执行时强制，回调只是
// 事实的搬运工：临过期被消费、回调迟到的签名如果在这里被拒绝，
// 清理任务会把已在链上兑付的资源再退回一次，玩家两头都拿
func (s *ClaimService) ConfirmClaim(ctx context.Context, claimID, txRef string) error {
	claim, err := s.claimRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.Used {
		return ErrClaimUsed
	}
	now := time.Now()
	if err := s.claimRepo.MarkUsed(ctx, claimID, txRef, now); err != nil {
		if errors.Is(err, repository.ErrClaimNotUnusable) {
			return ErrClaimUsed
		}
		return err
	}
	if claim.Expired(now) {
		log.Printf("[ClaimService] 过期后确认（链上执行在期限内）: claimID=%s, txRef=%s", claimID, txRef)
	}
	log.Printf("[ClaimService] 兑换已确认: claimID=%s, txRef=%s", claimID, txRef)
	return nil
}

// GetClaim 查询兑换记录
func (s *ClaimService) GetClaim(ctx context.Context, claimID string) (*model.ClaimSignature, error) {
	return s.claimRepo.GetByClaimID(ctx, claimID)
}

// PurgeExpired 后台清理任务入口：退回并删除过期未消费的签名
func (s *ClaimService) PurgeExpired(ctx context.Context, batchSize int) (int, error) {
	now := time.Now()
	claims, err := s.claimRepo.GetExpiredUnused(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, claim := range claims {
		if err := s.purgeOne(ctx, claim, now); err != nil {
			log.Printf("[ClaimService] 清理过期签名失败: claimID=%s, err=%v", claim.ClaimID, err)
			continue
		}
		purged++
	}
	return purged, nil
}

// purgeOne 单条清理：按扣减明细退回资源，然后删行；同一事务
func (s *ClaimService) purgeOne(ctx context.Context, claim *model.ClaimSignature, now time.Time) error {
	player, err := s.playerRepo.GetByWallet(ctx, claim.Wallet)
	if err != nil {
		return err
	}

	breakdown := make(map[string]int64)
	if err := json.Unmarshal([]byte(claim.Breakdown), &breakdown); err != nil {
		return fmt.Errorf("解析扣减明细失败: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		// 先删行：Delete 的 WHERE 带 used/expires_at 条件，
		// 若签名在间隙里刚被确认消费，这里失败并放弃退回
		if err := s.claimRepo.Delete(ctx, tx, claim.ClaimID, now); err != nil {
			return err
		}

		types := make([]string, 0, len(breakdown))
		for resourceType := range breakdown {
			types = append(types, resourceType)
		}
		sort.Strings(types)
		for _, resourceType := range types {
			event := &model.ResourceLedgerEvent{
				EventNo:      idgen.GenerateEventNo(),
				PlayerID:     player.ID,
				Wallet:       player.Wallet,
				ResourceType: resourceType,
				Amount:       breakdown[resourceType],
				EventType:    model.EventTypeAdjustment,
				SourceID:     claim.ClaimID,
			}
			if err := s.ledgerRepo.Create(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

func claimToResult(claim *model.ClaimSignature) *ClaimResult {
	return &ClaimResult{
		ClaimID:   claim.ClaimID,
		Wallet:    claim.Wallet,
		Amount:    claim.Amount,
		Nonce:     claim.Nonce,
		Signature: claim.Signature,
		ExpiresAt: claim.ExpiresAt.Unix(),
	}
}
