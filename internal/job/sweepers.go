package job

import (
	"context"
	"log"
	"time"

	"minegame/internal/config"
	"minegame/internal/service"

	"gorm.io/gorm"
)

// ============================================================
// 节点刷新任务
// ============================================================

// NodeRespawnJob 周期性把刷新时间已到的节点重置为可采集
type NodeRespawnJob struct {
	nodeService *service.NodeService
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewNodeRespawnJob(db *gorm.DB, cfg *config.Config) *NodeRespawnJob {
	return &NodeRespawnJob{
		nodeService: service.NewNodeService(db, cfg),
		stopCh:      make(chan struct{}),
		interval:    5 * time.Second,
		batchSize:   200,
	}
}

func (j *NodeRespawnJob) Start(ctx context.Context) {
	log.Println("[NodeRespawnJob] 节点刷新任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[NodeRespawnJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[NodeRespawnJob] 任务停止")
			return
		case <-ticker.C:
			respawned, err := j.nodeService.RespawnDueNodes(ctx, j.batchSize)
			if err != nil {
				log.Printf("[NodeRespawnJob] 刷新节点失败: %v", err)
				continue
			}
			if respawned > 0 {
				log.Printf("[NodeRespawnJob] 本轮刷新 %d 个节点", respawned)
			}
		}
	}
}

func (j *NodeRespawnJob) Stop() {
	close(j.stopCh)
}

// ============================================================
// 余额缓存刷新任务
// ============================================================

// CacheRefreshJob 批量重算过旧的余额快照
// 缓存越旧，余额查询要扫的增量流水越多；这里控制陈旧窗口的上界
type CacheRefreshJob struct {
	ledgerService *service.LedgerService
	stopCh        chan struct{}
	interval      time.Duration
	threshold     time.Duration
	batchSize     int
}

func NewCacheRefreshJob(db *gorm.DB, cfg *config.Config) *CacheRefreshJob {
	return &CacheRefreshJob{
		ledgerService: service.NewLedgerService(db, cfg),
		stopCh:        make(chan struct{}),
		interval:      time.Minute,
		threshold:     5 * time.Minute,
		batchSize:     100,
	}
}

func (j *CacheRefreshJob) Start(ctx context.Context) {
	log.Println("[CacheRefreshJob] 余额缓存刷新任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[CacheRefreshJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[CacheRefreshJob] 任务停止")
			return
		case <-ticker.C:
			refreshed, err := j.ledgerService.RefreshStaleCaches(ctx, j.threshold, j.batchSize)
			if err != nil {
				log.Printf("[CacheRefreshJob] 批量刷新失败: %v", err)
				continue
			}
			if refreshed > 0 {
				log.Printf("[CacheRefreshJob] 本轮刷新 %d 个玩家缓存", refreshed)
			}
		}
	}
}

func (j *CacheRefreshJob) Stop() {
	close(j.stopCh)
}

// ============================================================
// 过期签名清理任务
// ============================================================

// ClaimPurgeJob 清理过期未消费的兑换签名并退回锁定的资源
type ClaimPurgeJob struct {
	claimService *service.ClaimService
	stopCh       chan struct{}
	interval     time.Duration
	batchSize    int
}

func NewClaimPurgeJob(claimService *service.ClaimService) *ClaimPurgeJob {
	return &ClaimPurgeJob{
		claimService: claimService,
		stopCh:       make(chan struct{}),
		interval:     time.Minute,
		batchSize:    50,
	}
}

func (j *ClaimPurgeJob) Start(ctx context.Context) {
	log.Println("[ClaimPurgeJob] 过期签名清理任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ClaimPurgeJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[ClaimPurgeJob] 任务停止")
			return
		case <-ticker.C:
			purged, err := j.claimService.PurgeExpired(ctx, j.batchSize)
			if err != nil {
				log.Printf("[ClaimPurgeJob] 清理失败: %v", err)
				continue
			}
			if purged > 0 {
				log.Printf("[ClaimPurgeJob] 本轮清理 %d 条过期签名", purged)
			}
		}
	}
}

func (j *ClaimPurgeJob) Stop() {
	close(j.stopCh)
}
