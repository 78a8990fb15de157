package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minegame/internal/config"
	"minegame/internal/model"
	"minegame/internal/repository"
	"minegame/pkg/idgen"

	"gorm.io/gorm"
)

var ErrBoundsInvalid = errors.New("生成区域不合法")

// Bounds 节点生成区域
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

func (b Bounds) valid() bool {
	return b.MaxX > b.MinX && b.MaxY > b.MinY
}

// NodeService 节点注册表
// 持有节点状态的唯一事实，所有节点变更都从这里走
type NodeService struct {
	db       *gorm.DB
	cfg      *config.Config
	nodeRepo *repository.NodeRepository
}

func NewNodeService(db *gorm.DB, cfg *config.Config) *NodeService {
	return &NodeService{
		db:       db,
		cfg:      cfg,
		nodeRepo: repository.NewNodeRepository(db),
	}
}

// GenerateNodes 会话开始时批量生成节点
// 类型、位置、资源量全部服务端随机，客户端只拿到结果
func (s *NodeService) GenerateNodes(ctx context.Context, sessionID string, count int, bounds Bounds) ([]*model.ResourceNode, error) {
	if count <= 0 {
		return nil, fmt.Errorf("节点数量必须大于0")
	}
	if !bounds.valid() {
		return nil, ErrBoundsInvalid
	}

	rules := s.cfg.Game.Mining.Resources
	nodes := make([]*model.ResourceNode, 0, count)
	for i := 0; i < count; i++ {
		idx, err := secureIndex(len(rules))
		if err != nil {
			return nil, err
		}
		rule := rules[idx]

		amount, err := secureInt64InRange(rule.MinAmount, rule.MaxAmount)
		if err != nil {
			return nil, err
		}
		x, err := secureFloat()
		if err != nil {
			return nil, err
		}
		y, err := secureFloat()
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, &model.ResourceNode{
			NodeNo:       idgen.GenerateNodeNo(),
			SessionID:    sessionID,
			ResourceType: rule.Type,
			Amount:       amount,
			PosX:         bounds.MinX + x*(bounds.MaxX-bounds.MinX),
			PosY:         bounds.MinY + y*(bounds.MaxY-bounds.MinY),
			Status:       model.NodeStatusAvailable,
		})
	}

	if err := s.nodeRepo.CreateBatch(ctx, nodes); err != nil {
		return nil, fmt.Errorf("批量生成节点失败: %w", err)
	}
	return nodes, nil
}

// GetNode 只读查询（距离预检用，不加锁）
func (s *NodeService) GetNode(ctx context.Context, nodeNo string) (*model.ResourceNode, error) {
	return s.nodeRepo.GetByNodeNo(ctx, nodeNo)
}

// ListAvailable 列出会话内可采集的节点
func (s *NodeService) ListAvailable(ctx context.Context, sessionID string, limit int) ([]*model.ResourceNode, error) {
	return s.nodeRepo.ListBySession(ctx, sessionID, model.NodeStatusAvailable, limit)
}

// ClaimNode 挖矿事务专用：非阻塞锁定节点
// 错误语义见 NodeRepository.ClaimForUpdate
func (s *NodeService) ClaimNode(ctx context.Context, tx *gorm.DB, nodeNo string, playerID int64) (*model.ResourceNode, error) {
	return s.nodeRepo.ClaimForUpdate(ctx, tx, nodeNo, playerID, time.Now())
}

// DepleteAndScheduleRespawn 成功出矿后：节点采空并排期刷新
// 两步状态流转（CLAIMED->DEPLETED->RESPAWNING）都在调用方的事务里
func (s *NodeService) DepleteAndScheduleRespawn(ctx context.Context, tx *gorm.DB, nodeNo string) error {
	if err := s.nodeRepo.UpdateStatus(ctx, tx, nodeNo, model.NodeStatusClaimed, model.NodeStatusDepleted, map[string]interface{}{
		"amount": 0,
	}); err != nil {
		return err
	}
	respawnAt := time.Now().Add(time.Duration(s.cfg.Game.Mining.RespawnDelaySeconds) * time.Second)
	return s.nodeRepo.UpdateStatus(ctx, tx, nodeNo, model.NodeStatusDepleted, model.NodeStatusRespawning, map[string]interface{}{
		"respawn_at": respawnAt,
	})
}

// ReleaseNode 出矿失败后把节点放回可采集，资源量不动
func (s *NodeService) ReleaseNode(ctx context.Context, tx *gorm.DB, nodeNo string) error {
	return s.nodeRepo.UpdateStatus(ctx, tx, nodeNo, model.NodeStatusClaimed, model.NodeStatusAvailable, map[string]interface{}{
		"claimed_by": 0,
		"claimed_at": nil,
	})
}

// RespawnDueNodes 后台刷新任务入口：把到期节点重置为可采集并重掷资源量
func (s *NodeService) RespawnDueNodes(ctx context.Context, limit int) (int, error) {
	nodes, err := s.nodeRepo.GetRespawnDue(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}

	respawned := 0
	for _, node := range nodes {
		rule, ok := s.cfg.Game.Mining.RuleFor(node.ResourceType)
		if !ok {
			// 掉落表里被运营下架的类型，节点保持 RESPAWNING 不动
			continue
		}
		amount, err := secureInt64InRange(rule.MinAmount, rule.MaxAmount)
		if err != nil {
			return respawned, err
		}
		if err := s.nodeRepo.Respawn(ctx, node.NodeNo, amount); err != nil {
			// 单个节点失败不影响本批其余节点
			continue
		}
		respawned++
	}
	return respawned, nil
}
