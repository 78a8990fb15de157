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
	ErrNodeNotFound      = errors.New("节点不存在")
	ErrNodeNotAvailable  = errors.New("节点不可采集")
	ErrNodeLockBusy      = errors.New("节点已被其他事务锁定")
	ErrNodeStatusInvalid = errors.New("节点状态流转不合法")
)

type NodeRepository struct {
	db *gorm.DB
}

func NewNodeRepository(db *gorm.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

// CreateBatch 会话开始时批量生成节点
func (r *NodeRepository) CreateBatch(ctx context.Context, nodes []*model.ResourceNode) error {
	if len(nodes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(nodes, 200).Error
}

func (r *NodeRepository) GetByNodeNo(ctx context.Context, nodeNo string) (*model.ResourceNode, error) {
	var node model.ResourceNode
	err := r.db.WithContext(ctx).Where("node_no = ?", nodeNo).First(&node).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}
	return &node, nil
}

// ClaimForUpdate 挖矿事务的核心原语：对节点行加排他非阻塞锁并锁定节点
//
// 【关键点】FOR UPDATE NOWAIT —— 竞争方拿不到锁时立即收到错误（毫秒级），
// 绝不排队等待。输掉竞争的请求直接得到 ErrNodeLockBusy，由客户端决定是否
// 换一个 attempt_id 重试。状态不是 AVAILABLE 的节点同样立即拒绝。
//
// 只允许在挖矿事务内部调用，tx 必须是一个进行中的事务。
func (r *NodeRepository) ClaimForUpdate(ctx context.Context, tx *gorm.DB, nodeNo string, playerID int64, now time.Time) (*model.ResourceNode, error) {
	var node model.ResourceNode
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		Where("node_no = ?", nodeNo).
		First(&node).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNodeNotFound
		}
		if IsLockUnavailable(err) {
			return nil, ErrNodeLockBusy
		}
		return nil, err
	}

	if node.Status != model.NodeStatusAvailable {
		return nil, ErrNodeNotAvailable
	}

	updates := map[string]interface{}{
		"status":     model.NodeStatusClaimed,
		"claimed_by": playerID,
		"claimed_at": now,
	}
	if err := tx.WithContext(ctx).Model(&node).Updates(updates).Error; err != nil {
		return nil, err
	}
	node.Status = model.NodeStatusClaimed
	node.ClaimedBy = playerID
	node.ClaimedAt = &now
	return &node, nil
}

// UpdateStatus 带状态机校验的条件更新
// WHERE 里带上 fromStatus，RowsAffected=0 说明状态已被并发修改，拒绝
func (r *NodeRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, nodeNo string, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.NodeCanTransitionTo(fromStatus, toStatus) {
		return ErrNodeStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.WithContext(ctx).
		Model(&model.ResourceNode{}).
		Where("node_no = ? AND status = ?", nodeNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNodeStatusInvalid
	}
	return nil
}

// ListBySession 列出会话内指定状态的节点（给客户端渲染世界用）
func (r *NodeRepository) ListBySession(ctx context.Context, sessionID string, status string, limit int) ([]*model.ResourceNode, error) {
	var nodes []*model.ResourceNode
	query := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Limit(limit).Find(&nodes).Error
	return nodes, err
}

// GetRespawnDue 查出刷新时间已到的节点，供后台刷新任务处理
func (r *NodeRepository) GetRespawnDue(ctx context.Context, now time.Time, limit int) ([]*model.ResourceNode, error) {
	var nodes []*model.ResourceNode
	err := r.db.WithContext(ctx).
		Where("status = ? AND respawn_at <= ?", model.NodeStatusRespawning, now).
		Limit(limit).
		Find(&nodes).Error
	return nodes, err
}

// Respawn 把到期节点重置为可采集，并写入重掷后的资源量
func (r *NodeRepository) Respawn(ctx context.Context, nodeNo string, amount int64) error {
	return r.UpdateStatus(ctx, nil, nodeNo, model.NodeStatusRespawning, model.NodeStatusAvailable, map[string]interface{}{
		"amount":     amount,
		"claimed_by": 0,
		"claimed_at": nil,
		"respawn_at": nil,
	})
}
