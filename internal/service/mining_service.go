package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"minegame/internal/config"
	"minegame/internal/infrastructure/ratelimit"
	"minegame/internal/model"
	"minegame/internal/repository"
	"minegame/pkg/idgen"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrWalletInvalid   = errors.New("钱包地址不合法")
	ErrPositionInvalid = errors.New("坐标不合法")
	ErrWalletMismatch  = errors.New("钱包与玩家不匹配")
	errInvalidResource = errors.New("节点资源类型不在允许列表内")
)

// MiningService 挖矿事务引擎
// 一次挖矿 = 幂等回放 / 预检 / 原子体 / 提交后反作弊观察 四段
type MiningService struct {
	db          *gorm.DB
	cfg         *config.Config
	limiter     *ratelimit.Limiter
	nodeService *NodeService
	anticheat   *AntiCheatService
	playerRepo  *repository.PlayerRepository
	attemptRepo *repository.AttemptRepository
	ledgerRepo  *repository.LedgerRepository
	outboxRepo  *repository.OutboxRepository
}

func NewMiningService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *MiningService {
	return &MiningService{
		db:          db,
		cfg:         cfg,
		limiter:     ratelimit.NewLimiter(redisClient),
		nodeService: NewNodeService(db, cfg),
		anticheat:   NewAntiCheatService(db, redisClient, cfg),
		playerRepo:  repository.NewPlayerRepository(db),
		attemptRepo: repository.NewAttemptRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// MineRequest 一次挖矿请求
type MineRequest struct {
	AttemptID string  // 幂等键，客户端生成
	PlayerID  int64   // 玩家ID
	Wallet    string  // 钱包地址
	SessionID string  // 会话ID
	NodeNo    string  // 目标节点
	PosX      float64 // 客户端上报坐标
	PosY      float64
	ClientIP  string // 连接维度限流用
}

// MineResult 挖矿结果
// 判定失败（竞态、冷却、未出矿等）是正常业务结果而不是 error
type MineResult struct {
	AttemptID     string `json:"attempt_id"`
	Success       bool   `json:"success"`
	ResourceType  string `json:"resource_type,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	Replayed      bool   `json:"replayed,omitempty"` // 命中幂等回放
}

// distance 平面欧氏距离
func distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// validPosition 坐标必须是有限数，NaN/Inf 一律按恶意输入拒绝
func validPosition(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && !math.IsNaN(y) && !math.IsInf(y, 0)
}

// Mine 执行一次挖矿尝试
//
// 【关键点】整个引擎必须保证：
// 1. 幂等性：相同 attempt_id 永远回放同一个结果，绝不产生第二条流水
// 2. 原子性：节点流转、流水入账、尝试记录、发件箱消息同生共死
// 3. 并发安全：玩家行 + 节点行的 NOWAIT 排他锁，输家毫秒级失败不排队
func (s *MiningService) Mine(ctx context.Context, req *MineRequest) (*MineResult, error) {
	// 幂等回放：已记录过的 attempt_id 原样返回历史结果
	stored, err := s.attemptRepo.GetByAttemptID(ctx, req.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("查询尝试记录失败: %w", err)
	}
	if stored != nil {
		return replayResult(stored), nil
	}

	// 入参校验（任何锁之前，同步拒绝）
	if !common.IsHexAddress(req.Wallet) {
		return nil, ErrWalletInvalid
	}
	if !validPosition(req.PosX, req.PosY) {
		return nil, ErrPositionInvalid
	}
	player, err := s.playerRepo.GetByID(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}
	if player.Wallet != req.Wallet {
		return nil, ErrWalletMismatch
	}

	// 预检按代价从低到高排列：限流 -> 冷却 -> 距离
	allowed, err := s.limiter.AllowWallet(ctx, req.Wallet, s.cfg.Game.RateLimit.WalletPerMinute)
	if err != nil {
		return nil, fmt.Errorf("限流判定失败: %w", err)
	}
	if allowed && req.ClientIP != "" {
		allowed, err = s.limiter.AllowIP(ctx, req.ClientIP, s.cfg.Game.RateLimit.IPPerMinute)
		if err != nil {
			return nil, fmt.Errorf("限流判定失败: %w", err)
		}
	}
	if !allowed {
		return s.recordFailure(ctx, req, 0, model.FailureReasonRateLimited)
	}

	onCooldown, err := s.limiter.OnCooldown(ctx, req.Wallet)
	if err != nil {
		return nil, fmt.Errorf("冷却判定失败: %w", err)
	}
	if onCooldown {
		return s.recordFailure(ctx, req, 0, model.FailureReasonOnCooldown)
	}

	node, err := s.nodeService.GetNode(ctx, req.NodeNo)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return s.recordFailure(ctx, req, 0, model.FailureReasonNodeNotFound)
		}
		return nil, err
	}
	dist := distance(req.PosX, req.PosY, node.PosX, node.PosY)
	if dist > s.cfg.Game.Mining.MaxDistance {
		return s.recordFailure(ctx, req, dist, model.FailureReasonOutOfRange)
	}

	// 原子体：步骤 1-5 任何一处失败整体回滚（包括锁效果）
	var outcome MineResult
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		// 1. 玩家行排他非阻塞锁：同一玩家至多一个在途挖矿事务
		if _, err := s.playerRepo.GetForUpdate(ctx, tx, player.ID); err != nil {
			return err
		}

		// 2. 节点行排他非阻塞锁 + 锁定
		lockedNode, err := s.nodeService.ClaimNode(ctx, tx, req.NodeNo, player.ID)
		if err != nil {
			return err
		}

		// 3. 资源类型封闭枚举校验（防御动态构造的类型字符串）
		rule, ok := s.cfg.Game.Mining.RuleFor(lockedNode.ResourceType)
		if !ok || !model.IsValidResourceType(lockedNode.ResourceType) {
			return errInvalidResource
		}

		// 4. 服务端 CSPRNG 判定
		success, drawn, err := drawOutcome(rule)
		if err != nil {
			return err
		}

		// 5. 按结果落账
		if !success {
			if err := s.nodeService.ReleaseNode(ctx, tx, req.NodeNo); err != nil {
				return err
			}
			attempt := s.buildAttempt(req, dist, false, "", 0, model.FailureReasonNoYield)
			if err := s.attemptRepo.Create(ctx, tx, attempt); err != nil {
				return err
			}
			outcome = *replayResult(attempt)
			outcome.Replayed = false
			return nil
		}

		granted := drawn
		if granted > lockedNode.Amount {
			granted = lockedNode.Amount // 节点是有限矿藏，产出不超过蕴含量
		}

		if err := s.nodeService.DepleteAndScheduleRespawn(ctx, tx, req.NodeNo); err != nil {
			return err
		}

		event := &model.ResourceLedgerEvent{
			EventNo:      idgen.GenerateEventNo(),
			PlayerID:     player.ID,
			Wallet:       player.Wallet,
			ResourceType: lockedNode.ResourceType,
			Amount:       granted,
			EventType:    model.EventTypeMining,
			SourceID:     req.AttemptID,
		}
		if err := s.ledgerRepo.Create(ctx, tx, event); err != nil {
			return fmt.Errorf("流水入账失败: %w", err)
		}

		attempt := s.buildAttempt(req, dist, true, lockedNode.ResourceType, granted, "")
		if err := s.attemptRepo.Create(ctx, tx, attempt); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"attempt_id":    req.AttemptID,
			"player_id":     player.ID,
			"wallet":        player.Wallet,
			"session_id":    req.SessionID,
			"node_no":       req.NodeNo,
			"resource_type": lockedNode.ResourceType,
			"amount":        granted,
			"mined_at":      time.Now().Format(time.RFC3339),
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: player.Wallet,
			Topic:      s.cfg.Kafka.Topic.MiningResult,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入发件箱失败: %w", err)
		}

		outcome = *replayResult(attempt)
		outcome.Replayed = false
		return nil
	})

	if txErr != nil {
		return s.handleTxFailure(ctx, req, dist, txErr)
	}

	// 提交之后：成功出矿启动冷却；反作弊观察异步跑，绝不阻塞响应
	if outcome.Success {
		cooldown := time.Duration(s.cfg.Game.Mining.CooldownSeconds) * time.Second
		if err := s.limiter.StartCooldown(ctx, req.Wallet, cooldown); err != nil {
			log.Printf("[MiningService] 启动冷却失败: wallet=%s, err=%v", req.Wallet, err)
		}
		log.Printf("[MiningService] 出矿: attemptID=%s, wallet=%s, type=%s, amount=%d",
			req.AttemptID, req.Wallet, outcome.ResourceType, outcome.Amount)
	}
	s.observeAsync(req, outcome.Success)

	return &outcome, nil
}

// handleTxFailure 把原子体里的失败分类落账
// 竞态类失败是预期内的业务结果：记录尝试后正常返回；
// 基础设施失败整体失败关闭，不落任何账
func (s *MiningService) handleTxFailure(ctx context.Context, req *MineRequest, dist float64, txErr error) (*MineResult, error) {
	var reason string
	switch {
	case errors.Is(txErr, repository.ErrPlayerLockBusy):
		reason = model.FailureReasonConcurrent
	case errors.Is(txErr, repository.ErrNodeLockBusy), errors.Is(txErr, repository.ErrNodeNotAvailable):
		reason = model.FailureReasonNodeClaimed
	case errors.Is(txErr, repository.ErrNodeNotFound):
		reason = model.FailureReasonNodeNotFound
	case errors.Is(txErr, errInvalidResource):
		reason = model.FailureReasonInvalidResource
	default:
		return nil, fmt.Errorf("挖矿事务失败: %w", txErr)
	}
	return s.recordFailure(ctx, req, dist, reason)
}

// recordFailure 在事务之外落一条失败尝试（预检失败和竞态失败走这里）
// 并发提交同一 attempt_id 时唯一索引兜底：冲突方回读已存结果
func (s *MiningService) recordFailure(ctx context.Context, req *MineRequest, dist float64, reason string) (*MineResult, error) {
	attempt := s.buildAttempt(req, dist, false, "", 0, reason)
	err := s.attemptRepo.Create(ctx, nil, attempt)
	if err != nil {
		if repository.IsDuplicateKey(err) {
			stored, getErr := s.attemptRepo.GetByAttemptID(ctx, req.AttemptID)
			if getErr != nil {
				return nil, getErr
			}
			if stored != nil {
				return replayResult(stored), nil
			}
		}
		return nil, fmt.Errorf("记录尝试失败: %w", err)
	}
	s.observeAsync(req, false)

	result := replayResult(attempt)
	result.Replayed = false
	return result, nil
}

func (s *MiningService) buildAttempt(req *MineRequest, dist float64, success bool, grantedType string, grantedAmount int64, reason string) *model.MiningAttempt {
	return &model.MiningAttempt{
		AttemptID:     req.AttemptID,
		PlayerID:      req.PlayerID,
		Wallet:        req.Wallet,
		SessionID:     req.SessionID,
		NodeNo:        req.NodeNo,
		PosX:          req.PosX,
		PosY:          req.PosY,
		Distance:      dist,
		Success:       success,
		FailureReason: reason,
		GrantedType:   grantedType,
		GrantedAmount: grantedAmount,
	}
}

// ListAttempts 挖矿历史审计接口
func (s *MiningService) ListAttempts(ctx context.Context, wallet string, page, pageSize int) ([]*model.MiningAttempt, int64, error) {
	return s.attemptRepo.ListByWallet(ctx, wallet, page, pageSize)
}

// observeAsync 提交后的反作弊观察，独立 goroutine，失败只记日志
func (s *MiningService) observeAsync(req *MineRequest, success bool) {
	go func() {
		obsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.anticheat.Observe(obsCtx, req.Wallet, req.AttemptID, success, req.PosX, req.PosY); err != nil {
			log.Printf("[MiningService] 反作弊观察失败: wallet=%s, err=%v", req.Wallet, err)
		}
	}()
}

func replayResult(attempt *model.MiningAttempt) *MineResult {
	return &MineResult{
		AttemptID:     attempt.AttemptID,
		Success:       attempt.Success,
		ResourceType:  attempt.GrantedType,
		Amount:        attempt.GrantedAmount,
		FailureReason: attempt.FailureReason,
		Replayed:      true,
	}
}
