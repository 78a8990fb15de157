package handler

import (
	"errors"
	"strconv"

	"minegame/internal/config"
	"minegame/internal/infrastructure/chain"
	"minegame/internal/repository"
	"minegame/internal/service"
	"minegame/pkg/response"
	"minegame/pkg/signer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	miningService    *service.MiningService
	nodeService      *service.NodeService
	ledgerService    *service.LedgerService
	claimService     *service.ClaimService
	antiCheatService *service.AntiCheatService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, nonceReader chain.NonceReader, claimSigner *signer.ClaimSigner) *Handler {
	return &Handler{
		miningService:    service.NewMiningService(db, rdb, cfg),
		nodeService:      service.NewNodeService(db, cfg),
		ledgerService:    service.NewLedgerService(db, cfg),
		claimService:     service.NewClaimService(db, cfg, nonceReader, claimSigner),
		antiCheatService: service.NewAntiCheatService(db, rdb, cfg),
	}
}

// ============================================================
// 挖矿相关接口
// ============================================================

// MineRequest 挖矿请求
type MineRequest struct {
	AttemptID string  `json:"attempt_id" binding:"required"` // 幂等ID，客户端生成
	PlayerID  int64   `json:"player_id" binding:"required"`
	Wallet    string  `json:"wallet" binding:"required"`
	SessionID string  `json:"session_id" binding:"required"`
	NodeNo    string  `json:"node_no" binding:"required"`
	PosX      float64 `json:"pos_x"`
	PosY      float64 `json:"pos_y"`
}

// Mine 执行一次挖矿尝试
// POST /api/v1/mine/execute
//
// 【关键点】挖矿是整个系统最核心的操作，需要保证：
// 1. 幂等性：相同的 attempt_id 只会产生一次账面效果
// 2. 原子性：节点流转、流水入账、尝试记录必须同时成功或同时失败
// 3. 并发安全：玩家行 + 节点行的非阻塞排他锁，输家立即收到明确结果
func (h *Handler) Mine(c *gin.Context) {
	var req MineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	mineReq := &service.MineRequest{
		AttemptID: req.AttemptID,
		PlayerID:  req.PlayerID,
		Wallet:    req.Wallet,
		SessionID: req.SessionID,
		NodeNo:    req.NodeNo,
		PosX:      req.PosX,
		PosY:      req.PosY,
		ClientIP:  c.ClientIP(),
	}

	result, err := h.miningService.Mine(c.Request.Context(), mineReq)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWalletInvalid),
			errors.Is(err, service.ErrPositionInvalid),
			errors.Is(err, service.ErrWalletMismatch):
			response.ParamError(c, err.Error())
		case errors.Is(err, repository.ErrPlayerNotFound):
			response.BusinessError(c, response.CodePlayerNotFound, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, result)
}

// ============================================================
// 节点相关接口
// ============================================================

// GenerateNodesRequest 生成节点请求（会话层在开局时调用）
type GenerateNodesRequest struct {
	SessionID string         `json:"session_id" binding:"required"`
	Count     int            `json:"count" binding:"required,gt=0"`
	Bounds    service.Bounds `json:"bounds" binding:"required"`
}

// GenerateNodes 批量生成节点
// POST /api/v1/session/nodes
func (h *Handler) GenerateNodes(c *gin.Context) {
	var req GenerateNodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	nodes, err := h.nodeService.GenerateNodes(c.Request.Context(), req.SessionID, req.Count, req.Bounds)
	if err != nil {
		if errors.Is(err, service.ErrBoundsInvalid) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"session_id": req.SessionID,
		"count":      len(nodes),
		"nodes":      nodes,
	})
}

// ListNodes 列出会话内可采集的节点
// GET /api/v1/session/nodes?session_id=xxx&limit=200
func (h *Handler) ListNodes(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.ParamError(c, "session_id 参数不能为空")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))

	nodes, err := h.nodeService.ListAvailable(c.Request.Context(), sessionID, limit)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"session_id": sessionID,
		"nodes":      nodes,
	})
}

// ============================================================
// 账本相关接口
// ============================================================

// GetPlayerResources 查询玩家资源余额
// GET /api/v1/player/resources?player_id=xxx&live=false
func (h *Handler) GetPlayerResources(c *gin.Context) {
	playerIDStr := c.Query("player_id")
	playerID, err := strconv.ParseInt(playerIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "player_id 参数错误")
		return
	}
	live := c.DefaultQuery("live", "false") == "true"

	snapshot, err := h.ledgerService.GetBalances(c.Request.Context(), playerID, live)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			response.BusinessError(c, response.CodePlayerNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, snapshot)
}

// TouchPlayerRequest 钱包建档请求
type TouchPlayerRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

// TouchPlayer 钱包首次触达建档（幂等，重复调用返回同一玩家）
// POST /api/v1/player/touch
func (h *Handler) TouchPlayer(c *gin.Context) {
	var req TouchPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Wallet) {
		response.ParamError(c, service.ErrWalletInvalid.Error())
		return
	}

	player, err := h.ledgerService.TouchPlayer(c.Request.Context(), req.Wallet)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, player)
}

// ListLedgerEvents 流水审计接口
// GET /api/v1/player/events?player_id=xxx&page=1&page_size=20
func (h *Handler) ListLedgerEvents(c *gin.Context) {
	playerID, err := strconv.ParseInt(c.Query("player_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "player_id 参数错误")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	events, total, err := h.ledgerService.ListEvents(c.Request.Context(), playerID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"total":  total,
		"events": events,
	})
}

// ListAttempts 挖矿历史审计接口
// GET /api/v1/mine/attempts?wallet=0x...&page=1&page_size=20
func (h *Handler) ListAttempts(c *gin.Context) {
	wallet := c.Query("wallet")
	if !common.IsHexAddress(wallet) {
		response.ParamError(c, service.ErrWalletInvalid.Error())
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	attempts, total, err := h.miningService.ListAttempts(c.Request.Context(), wallet, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"total":    total,
		"attempts": attempts,
	})
}

// ListSuspicionFlags 风控复核接口
// GET /api/v1/anticheat/flags?wallet=0x...&limit=50
func (h *Handler) ListSuspicionFlags(c *gin.Context) {
	wallet := c.Query("wallet")
	if !common.IsHexAddress(wallet) {
		response.ParamError(c, service.ErrWalletInvalid.Error())
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	flags, err := h.antiCheatService.ListFlags(c.Request.Context(), wallet, limit)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"wallet": wallet,
		"flags":  flags,
	})
}

// ============================================================
// 兑换相关接口
// ============================================================

// ClaimRequest 兑换请求
type ClaimRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

// ClaimTokens 签发（或回放）兑换授权
// POST /api/v1/claim/request
func (h *Handler) ClaimTokens(c *gin.Context) {
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.claimService.ClaimTokens(c.Request.Context(), req.Wallet)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWalletInvalid):
			response.ParamError(c, err.Error())
		case errors.Is(err, repository.ErrPlayerNotFound):
			response.BusinessError(c, response.CodePlayerNotFound, err.Error())
		case errors.Is(err, service.ErrNothingToClaim):
			response.BusinessError(c, response.CodeNothingToClaim, err.Error())
		case errors.Is(err, service.ErrAmountExceedsMax):
			response.BusinessError(c, response.CodeAmountExceedsMax, err.Error())
		case errors.Is(err, service.ErrNonceMismatch):
			response.BusinessError(c, response.CodeNonceMismatch, err.Error())
		case errors.Is(err, chain.ErrNonceUnavailable):
			response.BusinessError(c, response.CodeChainUnavailable, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, result)
}

// ConfirmClaimRequest 链上确认回调
type ConfirmClaimRequest struct {
	ClaimID string `json:"claim_id" binding:"required"`
	TxRef   string `json:"tx_ref" binding:"required"` // 链上交易引用
}

// ConfirmClaim 标记兑换签名已在链上消费
// POST /api/v1/claim/confirm
func (h *Handler) ConfirmClaim(c *gin.Context) {
	var req ConfirmClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.claimService.ConfirmClaim(c.Request.Context(), req.ClaimID, req.TxRef)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrClaimNotFound):
			response.BusinessError(c, response.CodeClaimNotFound, err.Error())
		case errors.Is(err, service.ErrClaimUsed):
			response.BusinessError(c, response.CodeClaimAlreadyUsed, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"claim_id": req.ClaimID,
		"message":  "兑换已确认",
	})
}

// GetClaim 查询兑换记录
// GET /api/v1/claim/detail?claim_id=xxx
func (h *Handler) GetClaim(c *gin.Context) {
	claimID := c.Query("claim_id")
	if claimID == "" {
		response.ParamError(c, "claim_id 参数不能为空")
		return
	}

	claim, err := h.claimService.GetClaim(c.Request.Context(), claimID)
	if err != nil {
		if errors.Is(err, repository.ErrClaimNotFound) {
			response.BusinessError(c, response.CodeClaimNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, claim)
}
