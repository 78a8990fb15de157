package model

import (
	"time"
)

// ============================================================================
// 资源节点状态常量
// ============================================================================

const (
	NodeStatusAvailable  = "AVAILABLE"  // 可采集
	NodeStatusClaimed    = "CLAIMED"    // 已被某次挖矿事务锁定
	NodeStatusDepleted   = "DEPLETED"   // 已采空
	NodeStatusRespawning = "RESPAWNING" // 等待刷新
)

// ValidNodeTransitions 节点状态机
// 节点的生命周期是一个环：可采集 -> 锁定 -> 采空 -> 等待刷新 -> 可采集
// 挖矿失败时允许 CLAIMED 直接回退到 AVAILABLE（节点未被消耗）
var ValidNodeTransitions = map[string][]string{
	NodeStatusAvailable:  {NodeStatusClaimed},
	NodeStatusClaimed:    {NodeStatusDepleted, NodeStatusAvailable},
	NodeStatusDepleted:   {NodeStatusRespawning},
	NodeStatusRespawning: {NodeStatusAvailable},
}

// NodeCanTransitionTo 校验节点状态流转是否合法
func NodeCanTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidNodeTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ============================================================================
// 资源类型（封闭枚举）
// ============================================================================
//
// 【重要】资源类型是封闭枚举，任何动态拼出来的类型字符串都必须先过
// IsValidResourceType 校验，绝不允许直接拼进查询条件，防止注入式滥用。

const (
	ResourceTypeNickel   = "nickel"
	ResourceTypeCobalt   = "cobalt"
	ResourceTypeTitanium = "titanium"
	ResourceTypeGold     = "gold"
)

var resourceTypeSet = map[string]struct{}{
	ResourceTypeNickel:   {},
	ResourceTypeCobalt:   {},
	ResourceTypeTitanium: {},
	ResourceTypeGold:     {},
}

// IsValidResourceType 校验资源类型是否在允许列表内
func IsValidResourceType(resourceType string) bool {
	_, ok := resourceTypeSet[resourceType]
	return ok
}

// ResourceTypes 返回全部合法资源类型
func ResourceTypes() []string {
	return []string{ResourceTypeNickel, ResourceTypeCobalt, ResourceTypeTitanium, ResourceTypeGold}
}

// ============================================================================
// 资源节点实体
// ============================================================================

// ResourceNode 资源节点表
// 会话开始时批量生成，所有变更必须经过 NodeRepository 的行锁原语，
// 保证同一节点同一时刻只会被一个挖矿事务持有
type ResourceNode struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	NodeNo       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"node_no"`                  // 节点编号（全局唯一）
	SessionID    string     `gorm:"type:varchar(64);index:idx_session_status;not null" json:"session_id"`  // 所属会话
	ResourceType string     `gorm:"type:varchar(20);not null" json:"resource_type"`                        // 资源类型
	Amount       int64      `gorm:"not null" json:"amount"`                                                // 蕴含资源量（AVAILABLE 时必须 > 0）
	PosX         float64    `gorm:"not null" json:"pos_x"`                                                 // 坐标 X
	PosY         float64    `gorm:"not null" json:"pos_y"`                                                 // 坐标 Y
	Status       string     `gorm:"type:varchar(20);index:idx_session_status;not null" json:"status"`      // 节点状态
	ClaimedBy    int64      `gorm:"not null;default:0" json:"claimed_by"`                                  // 锁定者玩家ID（0 表示无人）
	ClaimedAt    *time.Time `json:"claimed_at"`                                                            // 锁定时间
	RespawnAt    *time.Time `json:"respawn_at"`                                                            // 计划刷新时间
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ResourceNode) TableName() string {
	return "resource_nodes"
}
