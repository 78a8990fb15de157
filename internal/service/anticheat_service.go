package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"minegame/internal/config"
	"minegame/internal/infrastructure/ratelimit"
	"minegame/internal/model"
	"minegame/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// AntiCheatService 反作弊监控
// 只标记、不拦截：命中阈值的钱包落一条可疑记录并发一条 Kafka 消息
// 供风控侧复核，挖矿主链路完全不受影响
type AntiCheatService struct {
	db            *gorm.DB
	cfg           *config.Config
	limiter       *ratelimit.Limiter
	suspicionRepo *repository.SuspicionRepository
	outboxRepo    *repository.OutboxRepository
}

func NewAntiCheatService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *AntiCheatService {
	return &AntiCheatService{
		db:            db,
		cfg:           cfg,
		limiter:       ratelimit.NewLimiter(redisClient),
		suspicionRepo: repository.NewSuspicionRepository(db),
		outboxRepo:    repository.NewOutboxRepository(db),
	}
}

// suspicionHit 一次阈值命中
type suspicionHit struct {
	Reason string
	Detail string
}

// evaluateStats 纯判定逻辑：基于更新前快照 + 本次结果评估是否可疑
//
// 两条规则：
// 1. 成功率：样本量达到下限后，滚动成功率超过「最高配置掉率 + 容差」即标记
// 2. 位移速度：与上一次尝试的位置差 / 时间差超过合理移动速度上限即标记
func evaluateStats(ac *config.AntiCheatConfig, maxDropRate float64, prev *ratelimit.WalletStats, success bool, x, y float64, at time.Time) []suspicionHit {
	var hits []suspicionHit

	attempts := prev.Attempts + 1
	successes := prev.Successes
	if success {
		successes++
	}

	if int(attempts) >= ac.MinSampleSize {
		rate := float64(successes) / float64(attempts)
		ceiling := maxDropRate + ac.SuccessRateMargin
		if rate > ceiling {
			hits = append(hits, suspicionHit{
				Reason: model.SuspicionReasonSuccessRate,
				Detail: fmt.Sprintf("rate=%.4f ceiling=%.4f attempts=%d", rate, ceiling, attempts),
			})
		}
	}

	if prev.LastAt > 0 && ac.MaxMoveSpeed > 0 {
		elapsed := float64(at.UnixMilli()-prev.LastAt) / 1000.0
		if elapsed > 0 {
			moved := distance(prev.LastX, prev.LastY, x, y)
			speed := moved / elapsed
			if speed > ac.MaxMoveSpeed {
				hits = append(hits, suspicionHit{
					Reason: model.SuspicionReasonMoveSpeed,
					Detail: fmt.Sprintf("speed=%.2f max=%.2f moved=%.2f elapsed=%.3fs", speed, ac.MaxMoveSpeed, moved, elapsed),
				})
			}
		}
	}

	return hits
}

// Observe 挖矿提交后的观察入口
// 更新滚动统计，命中阈值时落标记 + 发件箱消息
func (s *AntiCheatService) Observe(ctx context.Context, wallet, attemptID string, success bool, x, y float64) error {
	now := time.Now()
	prev, err := s.limiter.RecordAttempt(ctx, wallet, success, x, y, now)
	if err != nil {
		return fmt.Errorf("更新滚动统计失败: %w", err)
	}

	hits := evaluateStats(&s.cfg.Game.AntiCheat, s.cfg.Game.Mining.MaxDropRate(), prev, success, x, y, now)
	for _, hit := range hits {
		if err := s.flag(ctx, wallet, attemptID, hit); err != nil {
			log.Printf("[AntiCheat] 落可疑标记失败: wallet=%s, reason=%s, err=%v", wallet, hit.Reason, err)
		}
	}
	return nil
}

func (s *AntiCheatService) flag(ctx context.Context, wallet, attemptID string, hit suspicionHit) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		flag := &model.SuspicionFlag{
			Wallet:    wallet,
			AttemptID: attemptID,
			Reason:    hit.Reason,
			Detail:    hit.Detail,
		}
		if err := s.suspicionRepo.Create(ctx, tx, flag); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"wallet":     wallet,
			"attempt_id": attemptID,
			"reason":     hit.Reason,
			"detail":     hit.Detail,
			"flagged_at": time.Now().Format(time.RFC3339),
		})
		msg := &model.OutboxMessage{
			MessageKey: wallet,
			Topic:      s.cfg.Kafka.Topic.SuspicionFlag,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		return s.outboxRepo.Create(ctx, tx, msg)
	})
}

// ListFlags 风控复核接口
func (s *AntiCheatService) ListFlags(ctx context.Context, wallet string, limit int) ([]*model.SuspicionFlag, error) {
	return s.suspicionRepo.ListByWallet(ctx, wallet, limit)
}
